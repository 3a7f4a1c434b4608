package picks

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/crucial707/pickem/cmd/cli/output"
	"github.com/crucial707/pickem/cmd/cli/root"
	"github.com/crucial707/pickem/internal/models"
	pickform "github.com/crucial707/pickem/internal/picks"
)

const kickoffLayout = "Mon Jan 2 15:04 MST"

// InitPicks registers the picks command group on the root command.
func InitPicks(rootCmd *cobra.Command) {
	picksCmd := &cobra.Command{
		Use:   "picks",
		Short: "View and submit weekly picks",
	}

	picksCmd.AddCommand(
		showPicksCmd(),
		submitPicksCmd(),
	)

	rootCmd.AddCommand(picksCmd)
}

// loadForm restores the session and loads week into a new form.
func loadForm(cmd *cobra.Command, week int) (*root.App, *pickform.Form, error) {
	app, err := root.LoadApp(cmd)
	if err != nil {
		return nil, nil, err
	}
	client, err := app.RequireSession()
	if err != nil {
		return nil, nil, err
	}

	form := pickform.New(client, app.Session, pickform.Options{Logger: app.Logger})
	if err := form.LoadWeek(root.Context(cmd), week); err != nil {
		var loadErr *pickform.LoadError
		if errors.As(err, &loadErr) {
			return nil, nil, fmt.Errorf("failed to load games and picks: %w", root.UserError(loadErr.Err, "request failed"))
		}
		return nil, nil, err
	}
	return app, form, nil
}

// ==========================
// SHOW
// ==========================
func showPicksCmd() *cobra.Command {
	var week int

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a week's games and your saved picks",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, form, err := loadForm(cmd, week)
			if err != nil {
				return err
			}
			v := form.Snapshot()
			if app.JSON {
				return output.RenderJSON(app.Out, viewJSON(v))
			}
			renderView(app, v)
			return nil
		},
	}

	cmd.Flags().IntVarP(&week, "week", "w", 1, "week number (1-18)")
	return cmd
}

// ==========================
// SUBMIT
// ==========================
func submitPicksCmd() *cobra.Command {
	var week int
	var pickFlags []string
	var mnfPoints string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit picks for a week",
		Long: `Submit picks for a week. Saved picks are loaded first; each --pick GAME_ID=TEAM
replaces one of them. Every game of the week must have a pick, and weeks with a
Monday night game need --mnf-points unless a prediction is already saved.`,
		Example: "  pickem picks submit --week 3 --pick 31=KC --pick 32=MIA --mnf-points 45",
		RunE: func(cmd *cobra.Command, args []string) error {
			selections, err := parsePicks(pickFlags)
			if err != nil {
				return err
			}

			app, form, err := loadForm(cmd, week)
			if err != nil {
				return err
			}
			for _, s := range selections {
				if err := form.SetPick(s.GameID, s.Team); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("mnf-points") {
				if err := form.SetPrediction(mnfPoints); err != nil {
					return err
				}
			}

			if err := form.Submit(root.Context(cmd)); err != nil {
				var verr *pickform.ValidationError
				if errors.As(err, &verr) && len(verr.MissingGames) > 0 {
					return fmt.Errorf("%w (missing: %s)", err, describeGames(form.Snapshot().Games, verr.MissingGames))
				}
				return root.UserError(err, "Failed to save picks")
			}

			fmt.Fprintf(app.Out, "Picks saved for week %d.\n", week)
			return nil
		},
	}

	cmd.Flags().IntVarP(&week, "week", "w", 1, "week number (1-18)")
	cmd.Flags().StringArrayVarP(&pickFlags, "pick", "p", nil, "GAME_ID=TEAM selection (repeatable)")
	cmd.Flags().StringVar(&mnfPoints, "mnf-points", "", "Monday Night Football total points prediction")
	return cmd
}

// parsePicks parses GAME_ID=TEAM flag values.
func parsePicks(values []string) ([]models.PickEntry, error) {
	out := make([]models.PickEntry, 0, len(values))
	for _, v := range values {
		id, team, ok := strings.Cut(v, "=")
		if !ok || strings.TrimSpace(team) == "" {
			return nil, fmt.Errorf("invalid --pick %q: want GAME_ID=TEAM", v)
		}
		gameID, err := strconv.Atoi(strings.TrimSpace(id))
		if err != nil {
			return nil, fmt.Errorf("invalid --pick %q: game id must be a number", v)
		}
		out = append(out, models.PickEntry{GameID: gameID, Team: strings.TrimSpace(team)})
	}
	return out, nil
}

func describeGames(games []models.Game, ids []int) string {
	byID := make(map[int]models.Game, len(games))
	for _, g := range games {
		byID[g.ID] = g
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		g := byID[id]
		parts = append(parts, fmt.Sprintf("%d %s @ %s", id, g.AwayTeam, g.HomeTeam))
	}
	return strings.Join(parts, ", ")
}

func renderView(app *root.App, v pickform.View) {
	if len(v.Games) == 0 {
		fmt.Fprintf(app.Out, "No games scheduled for week %d.\n", v.Week)
		return
	}

	rows := make([][]interface{}, 0, len(v.Games))
	for _, g := range v.Games {
		mnf := ""
		if g.IsMNF {
			mnf = "MNF"
		}
		rows = append(rows, []interface{}{
			g.ID, g.AwayTeam, g.HomeTeam, g.StartTime.Local().Format(kickoffLayout), mnf, v.Picks[g.ID],
		})
	}
	output.RenderTable(app.Out, []string{"ID", "Away", "Home", "Kickoff", "", "Pick"}, rows)

	if v.HasMNF {
		prediction := v.Prediction
		if prediction == "" {
			prediction = "-"
		}
		fmt.Fprintf(app.Out, "MNF total points: %s\n", prediction)
	}
	if v.Locked {
		fmt.Fprintf(app.Out, "Picks locked since %s.\n", v.LockAt.Local().Format(kickoffLayout))
	} else if !v.LockAt.IsZero() {
		fmt.Fprintf(app.Out, "Picks lock at %s.\n", v.LockAt.Local().Format(kickoffLayout))
	}
}

type weekJSON struct {
	Week       int            `json:"week"`
	Games      []models.Game  `json:"games"`
	Picks      map[int]string `json:"picks"`
	Prediction string         `json:"mnf_total_points,omitempty"`
	Locked     bool           `json:"locked"`
	LockAt     *time.Time     `json:"lock_at,omitempty"`
}

func viewJSON(v pickform.View) weekJSON {
	out := weekJSON{
		Week:       v.Week,
		Games:      v.Games,
		Picks:      v.Picks,
		Prediction: v.Prediction,
		Locked:     v.Locked,
	}
	if out.Games == nil {
		out.Games = []models.Game{}
	}
	if !v.LockAt.IsZero() {
		lockAt := v.LockAt
		out.LockAt = &lockAt
	}
	return out
}
