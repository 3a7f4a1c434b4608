package apiclient

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/crucial707/pickem/internal/models"
)

// ListUsers returns every account. Admin only.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var out struct {
		Users []models.User `json:"users"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/admin/users", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// CreateUser adds an account and returns its id.
func (c *Client) CreateUser(ctx context.Context, in models.UserInput) (int, error) {
	var out struct {
		ID int `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/admin/users", nil, in, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// UpdateUser changes an account's username and admin flag.
func (c *Client) UpdateUser(ctx context.Context, id int, in models.UserInput) error {
	in.Password = ""
	return c.doJSON(ctx, http.MethodPut, "/admin/users/"+strconv.Itoa(id), nil, in, nil)
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, id int) error {
	return c.doJSON(ctx, http.MethodDelete, "/admin/users/"+strconv.Itoa(id), nil, nil, nil)
}

// Backup streams a database snapshot into w and returns the bytes written.
func (c *Client) Backup(ctx context.Context, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, http.MethodGet, "/admin/backup", nil, "", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("apiclient: read backup: %w", err)
	}
	return n, nil
}

// Restore uploads a snapshot as the multipart field "backup".
func (c *Client) Restore(ctx context.Context, filename string, r io.Reader) error {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		part, err := form.CreateFormFile("backup", filepath.Base(filename))
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = form.Close()
		}
		pw.CloseWithError(err)
	}()

	resp, err := c.send(ctx, http.MethodPost, "/admin/restore", nil, form.FormDataContentType(), pr)
	// Unblocks the writer goroutine if the request ended before reading the body.
	pr.Close()
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// UpdateGames asks the backend to refresh the schedule and returns its message.
func (c *Client) UpdateGames(ctx context.Context) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/admin/update-games", nil, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}
