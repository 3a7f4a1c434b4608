package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/crucial707/pickem/internal/models"
)

// Games returns the schedule for week.
func (c *Client) Games(ctx context.Context, week int) ([]models.Game, error) {
	var out struct {
		Games []models.Game `json:"games"`
	}
	query := url.Values{"week": {strconv.Itoa(week)}}
	if err := c.doJSON(ctx, http.MethodGet, "/games", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Games, nil
}
