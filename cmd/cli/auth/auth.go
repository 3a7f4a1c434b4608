package auth

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crucial707/pickem/cmd/cli/output"
	"github.com/crucial707/pickem/cmd/cli/root"
	"github.com/crucial707/pickem/internal/session"
)

// InitAuth registers login, logout, whoami and passwd on the root command.
func InitAuth(rootCmd *cobra.Command) {
	rootCmd.AddCommand(loginCmd(), logoutCmd(), whoamiCmd(), passwdCmd())
}

// ==========================
// LOGIN
// ==========================
func loginCmd() *cobra.Command {
	var username string
	var passwordFile string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the pick'em pool",
		Long: `Authenticate and store the session locally for subsequent commands.
On a first login the backend requires a new password, which is asked for right away.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := root.LoadApp(cmd)
			if err != nil {
				return err
			}
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())

			if username == "" {
				if username, err = p.line("Username: "); err != nil {
					return err
				}
			}
			var password string
			if passwordFile != "" {
				password, err = readPasswordFile(passwordFile)
			} else {
				password, err = p.secret("Password: ")
			}
			if err != nil {
				return err
			}

			res := app.Session.Login(root.Context(cmd), username, password)
			if !res.Success {
				return errors.New(res.Message)
			}
			if !res.FirstLogin {
				fmt.Fprintf(app.Out, "Logged in as %s.\n", username)
				return nil
			}

			fmt.Fprintln(app.Out, "First login: choose a new password.")
			return changePassword(cmd, app, p, password)
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when empty)")
	cmd.Flags().StringVar(&passwordFile, "password-file", "", "read the password from the first line of this file")
	return cmd
}

// ==========================
// LOGOUT
// ==========================
func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and remove the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := root.LoadApp(cmd)
			if err != nil {
				return err
			}
			app.Session.Logout(root.Context(cmd))
			fmt.Fprintln(app.Out, "Logged out.")
			return nil
		},
	}
}

// ==========================
// WHOAMI
// ==========================
func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := root.LoadApp(cmd)
			if err != nil {
				return err
			}
			user, ok := app.Session.User()
			if !ok {
				if _, err := app.RequireSession(); err != nil {
					return err
				}
				return root.ErrNotLoggedIn
			}

			if app.JSON {
				return output.RenderJSON(app.Out, map[string]interface{}{
					"user":  user,
					"state": app.Session.State().String(),
				})
			}
			role := "player"
			if user.IsAdmin {
				role = "admin"
			}
			output.RenderTable(app.Out,
				[]string{"ID", "Username", "Role", "Session"},
				[][]interface{}{{user.ID, user.Username, role, app.Session.State().String()}})
			return nil
		},
	}
}

// ==========================
// PASSWD
// ==========================
func passwdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change your password",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := root.LoadApp(cmd)
			if err != nil {
				return err
			}
			state := app.Session.State()
			if state != session.Authenticated && state != session.PasswordChangeRequired {
				if _, err := app.RequireSession(); err != nil {
					return err
				}
			}

			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			current, err := p.secret("Current password: ")
			if err != nil {
				return err
			}
			return changePassword(cmd, app, p, current)
		},
	}
}

func changePassword(cmd *cobra.Command, app *root.App, p *prompter, current string) error {
	newPassword, err := p.secret("New password: ")
	if err != nil {
		return err
	}
	confirm, err := p.secret("Confirm new password: ")
	if err != nil {
		return err
	}
	if err := session.ConfirmPassword(newPassword, confirm); err != nil {
		return err
	}

	res := app.Session.ChangePassword(root.Context(cmd), current, newPassword)
	if !res.Success {
		return errors.New(res.Message)
	}
	fmt.Fprintln(app.Out, "Password changed.")
	return nil
}
