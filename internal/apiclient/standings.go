package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/crucial707/pickem/internal/models"
)

// SeasonLeaderboard returns season standings, best first.
func (c *Client) SeasonLeaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	var out []models.LeaderboardEntry
	if err := c.doJSON(ctx, http.MethodGet, "/leaderboard/season", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// WeeklyLeaderboard returns standings for one week, best first.
func (c *Client) WeeklyLeaderboard(ctx context.Context, week int) ([]models.LeaderboardEntry, error) {
	var out []models.LeaderboardEntry
	query := url.Values{"week": {strconv.Itoa(week)}}
	if err := c.doJSON(ctx, http.MethodGet, "/leaderboard/weekly", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns statistics for userID, or for the current user when userID is 0.
func (c *Client) Stats(ctx context.Context, userID int) (*models.Stats, error) {
	var query url.Values
	if userID > 0 {
		query = url.Values{"user_id": {strconv.Itoa(userID)}}
	}
	var out models.Stats
	if err := c.doJSON(ctx, http.MethodGet, "/stats", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
