package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/crucial707/pickem/internal/models"
)

// Picks returns the current user's saved picks for week.
func (c *Client) Picks(ctx context.Context, week int) ([]models.Pick, error) {
	var out struct {
		Picks []models.Pick `json:"picks"`
	}
	query := url.Values{"week": {strconv.Itoa(week)}}
	if err := c.doJSON(ctx, http.MethodGet, "/picks", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Picks, nil
}

// SubmitPicks replaces the current user's picks for s.Week.
func (c *Client) SubmitPicks(ctx context.Context, s models.Submission) error {
	return c.doJSON(ctx, http.MethodPost, "/picks", nil, s, nil)
}
