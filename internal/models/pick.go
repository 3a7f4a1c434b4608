package models

// Pick is a saved selection for one game. MNFTotalPoints is set on the picks
// of a week that contains a Monday night game.
type Pick struct {
	ID             int    `json:"id,omitempty"`
	UserID         int    `json:"user_id,omitempty"`
	Week           int    `json:"week,omitempty"`
	GameID         int    `json:"game_id"`
	PickedTeam     string `json:"picked_team"`
	MNFTotalPoints *int   `json:"mnf_total_points,omitempty"`
}

// PickEntry is one element of a submission body.
type PickEntry struct {
	GameID int    `json:"game_id"`
	Team   string `json:"team"`
}

// Submission is the body of POST /picks. MNFTotalPoints encodes as null when
// no prediction was given.
type Submission struct {
	Week           int         `json:"week"`
	Picks          []PickEntry `json:"picks"`
	MNFTotalPoints *int        `json:"mnf_total_points"`
}
