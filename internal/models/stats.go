package models

// Stats summarizes one user's season.
type Stats struct {
	TotalCorrect  int        `json:"total_correct"`
	Accuracy      float64    `json:"accuracy"`
	BestWeek      *BestWeek  `json:"best_week"`
	CurrentStreak int        `json:"current_streak"`
	WeeklyStats   []WeekStat `json:"weekly_stats"`
}

type BestWeek struct {
	Week    *int `json:"week"`
	Correct int  `json:"correct"`
}

type WeekStat struct {
	Week     int     `json:"week"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"`
}
