// Package picks holds the editable state of one week's pick sheet: it loads
// the schedule and saved picks, enforces the lock window and submission
// rules, and posts the final selection.
package picks

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crucial707/pickem/internal/models"
)

// LockOffset is how long before the week's earliest kickoff picks lock.
const LockOffset = 2 * time.Hour

// PicksAPI is the part of the backend the form needs. *apiclient.Client
// satisfies it.
type PicksAPI interface {
	Games(ctx context.Context, week int) ([]models.Game, error)
	Picks(ctx context.Context, week int) ([]models.Pick, error)
	SubmitPicks(ctx context.Context, s models.Submission) error
}

// Viewer reports whether the current user may bypass the lock window.
// *session.Manager satisfies it.
type Viewer interface {
	IsAdmin() bool
}

type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
}

// Form is safe for concurrent use. Network calls are made without holding
// the form's lock.
type Form struct {
	api    PicksAPI
	viewer Viewer
	logger *slog.Logger
	now    func() time.Time

	mu           sync.Mutex
	generation   uint64
	loaded       bool
	week         int
	games        []models.Game
	picks        map[int]string
	prediction   string
	lockAt       time.Time
	lockedAtLoad bool
}

func New(api PicksAPI, viewer Viewer, opts Options) *Form {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Form{
		api:    api,
		viewer: viewer,
		logger: logger,
		now:    now,
		picks:  map[int]string{},
	}
}

// LoadWeek replaces the form's state with week's schedule and the user's
// saved picks, fetched concurrently. If either fetch fails the form is left
// empty and a *LoadError is returned. A call overtaken by a later LoadWeek
// returns ErrSuperseded without touching state.
func (f *Form) LoadWeek(ctx context.Context, week int) error {
	if !models.ValidWeek(week) {
		return fmt.Errorf("%w: got %d", ErrInvalidWeek, week)
	}

	f.mu.Lock()
	f.generation++
	gen := f.generation
	f.mu.Unlock()

	var (
		games []models.Game
		saved []models.Pick
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		games, err = f.api.Games(gctx, week)
		return err
	})
	g.Go(func() error {
		var err error
		saved, err = f.api.Picks(gctx, week)
		return err
	})
	err := g.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		f.logger.Debug("dropping superseded week load", "week", week)
		return ErrSuperseded
	}

	f.resetLocked(week)
	if err != nil {
		f.logger.Warn("week load failed", "week", week, "error", err)
		return &LoadError{Week: week, Err: err}
	}

	f.games = append([]models.Game(nil), games...)
	byID := make(map[int]bool, len(games))
	for _, game := range games {
		byID[game.ID] = true
	}
	for _, p := range saved {
		if byID[p.GameID] && p.PickedTeam != "" {
			f.picks[p.GameID] = p.PickedTeam
		}
		if p.MNFTotalPoints != nil {
			f.prediction = strconv.Itoa(*p.MNFTotalPoints)
		}
	}

	if first, ok := earliestStart(games); ok {
		f.lockAt = first.Add(-LockOffset)
		f.lockedAtLoad = !f.now().Before(f.lockAt)
	}
	f.loaded = true

	f.logger.Debug("week loaded",
		"week", week,
		"games", len(f.games),
		"saved_picks", len(f.picks),
		"locked", f.lockedAtLoad)
	return nil
}

// SetPick selects team for gameID. A locked form rejects the change for
// non-admins and keeps its state.
func (f *Form) SetPick(gameID int, team string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.loaded {
		return ErrNotLoaded
	}
	if f.lockedLocked() {
		return ErrLocked
	}
	game, ok := f.gameLocked(gameID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownGame, gameID)
	}
	if !game.HasTeam(team) {
		return fmt.Errorf("%w: %q not in %s @ %s", ErrInvalidTeam, team, game.AwayTeam, game.HomeTeam)
	}
	f.picks[gameID] = team
	return nil
}

// SetPrediction stores the raw Monday night total-points text. It is parsed
// only by Submit.
func (f *Form) SetPrediction(value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.loaded {
		return ErrNotLoaded
	}
	if f.lockedLocked() {
		return ErrLocked
	}
	f.prediction = value
	return nil
}

// Submit validates the sheet and posts it in a single request. Validation
// failures are *ValidationError and send nothing. A backend rejection is
// returned as is; its message is the backend's own. The form's state is
// never changed by Submit.
func (f *Form) Submit(ctx context.Context) error {
	f.mu.Lock()
	if !f.loaded {
		f.mu.Unlock()
		return ErrNotLoaded
	}
	sub, err := f.submissionLocked()
	if err == nil && f.lockedLocked() {
		err = ErrLocked
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}

	if err := f.api.SubmitPicks(ctx, sub); err != nil {
		f.logger.Info("submit rejected", "week", sub.Week, "error", err)
		return err
	}
	f.logger.Info("picks submitted", "week", sub.Week, "picks", len(sub.Picks))
	return nil
}

// View is a point-in-time copy of the form.
type View struct {
	Week       int
	Games      []models.Game
	Picks      map[int]string
	Prediction string
	HasMNF     bool
	// Locked is the load-time lock state as it applies to the current viewer.
	Locked bool
	LockAt time.Time
	Loaded bool
}

func (f *Form) Snapshot() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	picks := make(map[int]string, len(f.picks))
	for id, team := range f.picks {
		picks[id] = team
	}
	return View{
		Week:       f.week,
		Games:      append([]models.Game(nil), f.games...),
		Picks:      picks,
		Prediction: f.prediction,
		HasMNF:     hasMNF(f.games),
		Locked:     f.lockedLocked(),
		LockAt:     f.lockAt,
		Loaded:     f.loaded,
	}
}

func (f *Form) resetLocked(week int) {
	f.loaded = false
	f.week = week
	f.games = nil
	f.picks = map[int]string{}
	f.prediction = ""
	f.lockAt = time.Time{}
	f.lockedAtLoad = false
}

// lockedLocked applies the viewer's admin bypass to the load-time lock.
func (f *Form) lockedLocked() bool {
	return f.lockedAtLoad && !f.viewer.IsAdmin()
}

func (f *Form) gameLocked(id int) (models.Game, bool) {
	for _, g := range f.games {
		if g.ID == id {
			return g, true
		}
	}
	return models.Game{}, false
}

func (f *Form) submissionLocked() (models.Submission, error) {
	sub := models.Submission{Week: f.week, Picks: make([]models.PickEntry, 0, len(f.games))}

	var missing []int
	for _, g := range f.games {
		team, ok := f.picks[g.ID]
		if !ok || team == "" {
			missing = append(missing, g.ID)
			continue
		}
		sub.Picks = append(sub.Picks, models.PickEntry{GameID: g.ID, Team: team})
	}
	if len(missing) > 0 {
		return models.Submission{}, &ValidationError{Reason: ErrIncompleteSelection, MissingGames: missing}
	}

	if hasMNF(f.games) {
		points, err := ParsePrediction(f.prediction)
		if err != nil {
			return models.Submission{}, &ValidationError{Reason: ErrInvalidPrediction}
		}
		sub.MNFTotalPoints = &points
	}
	return sub, nil
}

// ParsePrediction parses a total-points prediction: a non-negative integer,
// surrounding whitespace ignored.
func ParsePrediction(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("prediction is empty")
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("prediction %q is not a whole number", value)
	}
	if n < 0 {
		return 0, fmt.Errorf("prediction %d is negative", n)
	}
	return n, nil
}

func earliestStart(games []models.Game) (time.Time, bool) {
	var first time.Time
	for _, g := range games {
		if g.StartTime.IsZero() {
			continue
		}
		if first.IsZero() || g.StartTime.Before(first) {
			first = g.StartTime
		}
	}
	return first, !first.IsZero()
}

func hasMNF(games []models.Game) bool {
	for _, g := range games {
		if g.IsMNF {
			return true
		}
	}
	return false
}
