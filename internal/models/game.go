package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// MinWeek and MaxWeek bound the regular season.
const (
	MinWeek = 1
	MaxWeek = 18
)

// Game is one scheduled matchup. IsMNF marks games counted toward the
// Monday Night Football total-points prediction.
type Game struct {
	ID        int       `json:"id"`
	Week      int       `json:"week,omitempty"`
	AwayTeam  string    `json:"away_team"`
	HomeTeam  string    `json:"home_team"`
	StartTime time.Time `json:"start_time"`
	IsMNF     bool      `json:"is_mnf"`
	Winner    string    `json:"winner,omitempty"`
}

// HasTeam reports whether team plays in g.
func (g Game) HasTeam(team string) bool {
	return team != "" && (team == g.AwayTeam || team == g.HomeTeam)
}

// ValidWeek reports whether week is inside the season.
func ValidWeek(week int) bool {
	return week >= MinWeek && week <= MaxWeek
}

// naiveLayout is how the backend writes start_time when the stored value
// carries no zone. Such values are read as UTC.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// UnmarshalJSON accepts start_time as RFC 3339 or as a naive ISO 8601
// timestamp without an offset.
func (g *Game) UnmarshalJSON(data []byte) error {
	type plain Game
	aux := struct {
		*plain
		StartTime *string `json:"start_time"`
	}{plain: (*plain)(g)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	g.StartTime = time.Time{}
	if aux.StartTime == nil || *aux.StartTime == "" {
		return nil
	}
	t, err := ParseStartTime(*aux.StartTime)
	if err != nil {
		return err
	}
	g.StartTime = t
	return nil
}

// ParseStartTime parses an RFC 3339 timestamp, falling back to a naive
// timestamp interpreted as UTC.
func ParseStartTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(naiveLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start_time %q", value)
	}
	return t, nil
}
