package standings

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/crucial707/pickem/cmd/cli/output"
	"github.com/crucial707/pickem/cmd/cli/root"
	"github.com/crucial707/pickem/internal/models"
)

// InitStandings registers leaderboard and stats on the root command.
func InitStandings(rootCmd *cobra.Command) {
	rootCmd.AddCommand(leaderboardCmd(), statsCmd())
}

// ==========================
// LEADERBOARD
// ==========================
func leaderboardCmd() *cobra.Command {
	var week int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the season standings, and one week's with --week",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("week") && !models.ValidWeek(week) {
				return fmt.Errorf("week must be between %d and %d", models.MinWeek, models.MaxWeek)
			}
			app, err := root.LoadApp(cmd)
			if err != nil {
				return err
			}
			client, err := app.RequireSession()
			if err != nil {
				return err
			}

			var season, weekly []models.LeaderboardEntry
			g, ctx := errgroup.WithContext(root.Context(cmd))
			g.Go(func() error {
				var err error
				season, err = client.SeasonLeaderboard(ctx)
				return err
			})
			if week > 0 {
				g.Go(func() error {
					var err error
					weekly, err = client.WeeklyLeaderboard(ctx, week)
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return root.UserError(err, "Failed to load leaderboard")
			}

			if app.JSON {
				out := map[string]interface{}{"season": season}
				if week > 0 {
					out["weekly"] = weekly
					out["week"] = week
				}
				return output.RenderJSON(app.Out, out)
			}

			fmt.Fprintln(app.Out, "Season")
			rows := make([][]interface{}, 0, len(season))
			for i, e := range season {
				rows = append(rows, []interface{}{i + 1, e.Username, e.Correct, e.Total, output.Percent(e.Accuracy), e.WeeklyWins, e.Streak})
			}
			output.RenderTable(app.Out, []string{"#", "Player", "Correct", "Total", "Accuracy", "Weekly Wins", "Streak"}, rows)

			if week > 0 {
				fmt.Fprintf(app.Out, "\nWeek %d\n", week)
				rows = rows[:0]
				for i, e := range weekly {
					rows = append(rows, []interface{}{i + 1, e.Username, e.Correct, e.Total, output.Percent(e.Accuracy)})
				}
				output.RenderTable(app.Out, []string{"#", "Player", "Correct", "Total", "Accuracy"}, rows)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&week, "week", "w", 0, "also show the standings of this week (1-18)")
	return cmd
}

// ==========================
// STATS
// ==========================
func statsCmd() *cobra.Command {
	var userID int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show season statistics for you or another player",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := root.LoadApp(cmd)
			if err != nil {
				return err
			}
			client, err := app.RequireSession()
			if err != nil {
				return err
			}

			stats, err := client.Stats(root.Context(cmd), userID)
			if err != nil {
				return root.UserError(err, "Failed to load statistics")
			}
			if app.JSON {
				return output.RenderJSON(app.Out, stats)
			}

			best := "-"
			if stats.BestWeek != nil && stats.BestWeek.Week != nil {
				best = fmt.Sprintf("week %d (%d correct)", *stats.BestWeek.Week, stats.BestWeek.Correct)
			}
			output.RenderTable(app.Out,
				[]string{"Total Correct", "Accuracy", "Best Week", "Current Streak"},
				[][]interface{}{{stats.TotalCorrect, output.Percent(stats.Accuracy), best, stats.CurrentStreak}})

			if len(stats.WeeklyStats) > 0 {
				rows := make([][]interface{}, 0, len(stats.WeeklyStats))
				for _, w := range stats.WeeklyStats {
					rows = append(rows, []interface{}{strconv.Itoa(w.Week), w.Correct, w.Total, output.Percent(w.Accuracy)})
				}
				output.RenderTable(app.Out, []string{"Week", "Correct", "Total", "Accuracy"}, rows)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&userID, "user-id", 0, "player id (defaults to yourself)")
	return cmd
}
