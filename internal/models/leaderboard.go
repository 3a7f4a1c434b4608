package models

// LeaderboardEntry is one player row in the season or weekly standings.
// WeeklyWins and Streak are only populated by the season board.
type LeaderboardEntry struct {
	ID         int     `json:"id"`
	Username   string  `json:"username"`
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	WeeklyWins int     `json:"weekly_wins"`
	Streak     int     `json:"streak"`
	Accuracy   float64 `json:"accuracy"`
}
