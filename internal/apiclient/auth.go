package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/crucial707/pickem/internal/models"
)

// LoginResponse is the body of a successful POST /login. FirstLogin means the
// account must change its password before doing anything else.
type LoginResponse struct {
	Token      string      `json:"token"`
	User       models.User `json:"user"`
	FirstLogin bool        `json:"first_login"`
}

// Login exchanges a username and password for a credential.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	input := map[string]string{
		"username": username,
		"password": password,
	}
	var out LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/login", nil, input, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("apiclient: login succeeded but no token returned")
	}
	return &out, nil
}

// Logout tells the backend the credential is no longer in use.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/logout", nil, nil, nil)
}

// VerifyToken checks the client's credential and returns its user.
func (c *Client) VerifyToken(ctx context.Context) (*models.User, error) {
	var out struct {
		User *models.User `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/verify-token", nil, nil, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, fmt.Errorf("apiclient: verify-token response has no user")
	}
	return out.User, nil
}

// ChangePassword replaces the current user's password.
func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	input := map[string]string{
		"current_password": currentPassword,
		"new_password":     newPassword,
	}
	return c.doJSON(ctx, http.MethodPost, "/change-password", nil, input, nil)
}
