package picks

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidWeek = errors.New("week must be between 1 and 18")
	ErrNotLoaded   = errors.New("no week loaded")
	// ErrSuperseded is returned by a LoadWeek call that finished after a newer
	// one started; its results were dropped.
	ErrSuperseded  = errors.New("week load superseded by a newer request")
	ErrLocked      = errors.New("picks are locked for this week")
	ErrUnknownGame = errors.New("game is not part of the loaded week")
	ErrInvalidTeam = errors.New("team does not play in this game")

	ErrIncompleteSelection = errors.New("make picks for all games")
	ErrInvalidPrediction   = errors.New("enter a valid prediction for Monday Night Football total points (a whole number, 0 or more)")
)

// LoadError means the schedule or the saved picks for Week could not be
// fetched. The form is left empty.
type LoadError struct {
	Week int
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load week %d: %v", e.Week, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ValidationError is a client-side rejection of Submit. Reason is
// ErrIncompleteSelection or ErrInvalidPrediction; MissingGames lists the
// unpicked game ids for the former.
type ValidationError struct {
	Reason       error
	MissingGames []int
}

func (e *ValidationError) Error() string {
	return e.Reason.Error()
}

func (e *ValidationError) Unwrap() error { return e.Reason }
