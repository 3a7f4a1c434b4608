package admin

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/crucial707/pickem/cmd/cli/root"
	"github.com/crucial707/pickem/internal/scheduler"
	"github.com/crucial707/pickem/internal/status"
)

// InitAdmin registers backup, restore and update-games under "admin".
func InitAdmin(rootCmd *cobra.Command) {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Database and schedule maintenance (admin)",
	}

	adminCmd.AddCommand(
		backupCmd(),
		restoreCmd(),
		updateGamesCmd(),
	)

	rootCmd.AddCommand(adminCmd)
}

// ==========================
// BACKUP
// ==========================
func backupCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Download a database snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := root.LoadApp(cmd)
			if err != nil {
				return err
			}
			client, err := app.RequireAdmin()
			if err != nil {
				return err
			}

			if out == "" {
				out = defaultBackupName(time.Now())
			}
			// Download beside out and rename only once complete.
			tmp, err := os.CreateTemp(filepath.Dir(out), ".pickem-backup-*")
			if err != nil {
				return fmt.Errorf("creating backup file: %w", err)
			}
			defer os.Remove(tmp.Name())

			n, err := client.Backup(root.Context(cmd), tmp)
			if closeErr := tmp.Close(); err == nil && closeErr != nil {
				err = closeErr
			}
			if err != nil {
				return root.UserError(err, "Failed to backup database")
			}
			if err := os.Rename(tmp.Name(), out); err != nil {
				return fmt.Errorf("saving backup: %w", err)
			}

			fmt.Fprintf(app.Out, "Backup saved to %s (%d bytes).\n", out, n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default nfl_pickems_backup_<timestamp>.db)")
	return cmd
}

func defaultBackupName(now time.Time) string {
	return "nfl_pickems_backup_" + now.UTC().Format("20060102T150405Z") + ".db"
}

// ==========================
// RESTORE
// ==========================
func restoreCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace the database with a snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("opening backup: %w", err)
			}
			defer f.Close()

			app, err := root.LoadApp(cmd)
			if err != nil {
				return err
			}
			client, err := app.RequireAdmin()
			if err != nil {
				return err
			}

			if err := client.Restore(root.Context(cmd), filepath.Base(file), f); err != nil {
				return root.UserError(err, "Failed to restore database")
			}
			fmt.Fprintln(app.Out, "Database restored successfully.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "snapshot file to upload")
	return cmd
}

// ==========================
// UPDATE GAMES
// ==========================
func updateGamesCmd() *cobra.Command {
	var cronExpr string
	var listen string

	cmd := &cobra.Command{
		Use:   "update-games",
		Short: "Ask the backend to refresh game data, once or on a schedule",
		Long: `Ask the backend to refresh schedules and results. With --cron the refresh
repeats on a standard cron schedule until interrupted; --listen additionally
serves /health and /metrics on the given address.`,
		Example: "  pickem admin update-games --cron '*/30 * * * *' --listen :9090",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" && cronExpr == "" {
				return fmt.Errorf("--listen requires --cron")
			}
			app, err := root.LoadApp(cmd)
			if err != nil {
				return err
			}
			if _, err := app.RequireAdmin(); err != nil {
				return err
			}

			refresh := func(ctx context.Context) error {
				client, err := app.RequireAdmin()
				if err != nil {
					return err
				}
				msg, err := client.UpdateGames(ctx)
				if err != nil {
					return root.UserError(err, "Failed to update games")
				}
				app.Logger.Info("games updated", "message", msg)
				return nil
			}

			if cronExpr == "" {
				if err := refresh(root.Context(cmd)); err != nil {
					return err
				}
				fmt.Fprintln(app.Out, "Game data updated.")
				return nil
			}

			ctx, stop := signal.NotifyContext(root.Context(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return scheduler.Run(gctx, cronExpr, refresh, app.Logger)
			})
			if listen != "" {
				g.Go(func() error {
					return status.Serve(gctx, listen, app.Logger)
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "", "standard cron expression; repeat until interrupted")
	cmd.Flags().StringVar(&listen, "listen", "", "address for /health and /metrics while scheduled (e.g. :9090)")
	return cmd
}
