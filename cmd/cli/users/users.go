package users

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crucial707/pickem/cmd/cli/output"
	"github.com/crucial707/pickem/cmd/cli/root"
	"github.com/crucial707/pickem/internal/models"
)

// ==========================
// CLI Command Init
// ==========================

// InitUsers registers the admin user management commands on the root command.
func InitUsers(rootCmd *cobra.Command) {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage pool accounts (admin)",
	}

	usersCmd.AddCommand(
		listUsersCmd(),
		createUserCmd(),
		updateUserCmd(),
		deleteUserCmd(),
	)

	rootCmd.AddCommand(usersCmd)
}

// ==========================
// LIST
// ==========================
func listUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := root.LoadApp(cmd)
			if err != nil {
				return err
			}
			client, err := app.RequireAdmin()
			if err != nil {
				return err
			}

			list, err := client.ListUsers(root.Context(cmd))
			if err != nil {
				return root.UserError(err, "Failed to load users")
			}
			if app.JSON {
				if list == nil {
					list = []models.User{}
				}
				return output.RenderJSON(app.Out, list)
			}

			rows := make([][]interface{}, 0, len(list))
			for _, u := range list {
				rows = append(rows, []interface{}{u.ID, u.Username, yesNo(u.IsAdmin)})
			}
			output.RenderTable(app.Out, []string{"ID", "Username", "Admin"}, rows)
			return nil
		},
	}
}

// ==========================
// CREATE
// ==========================
func createUserCmd() *cobra.Command {
	var username string
	var passwordFile string
	var admin bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Long:  "Create an account. The password is read from --password-file or the first line of standard input.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return fmt.Errorf("--username is required")
			}
			password, err := readPassword(cmd, passwordFile)
			if err != nil {
				return err
			}
			if password == "" {
				return fmt.Errorf("password is required")
			}

			app, err := root.LoadApp(cmd)
			if err != nil {
				return err
			}
			client, err := app.RequireAdmin()
			if err != nil {
				return err
			}

			id, err := client.CreateUser(root.Context(cmd), models.UserInput{Username: username, Password: password, IsAdmin: admin})
			if err != nil {
				return root.UserError(err, "Failed to create user")
			}
			fmt.Fprintf(app.Out, "Created user %s (id %d).\n", username, id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVar(&passwordFile, "password-file", "", "read the initial password from the first line of this file")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant administrator rights")
	return cmd
}

// ==========================
// UPDATE
// ==========================
func updateUserCmd() *cobra.Command {
	var username string
	var admin bool

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Rename an account or change its admin flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("username") && !cmd.Flags().Changed("admin") {
				return fmt.Errorf("nothing to update: pass --username and/or --admin")
			}

			app, err := root.LoadApp(cmd)
			if err != nil {
				return err
			}
			client, err := app.RequireAdmin()
			if err != nil {
				return err
			}

			// The backend replaces both fields, so start from the current values.
			list, err := client.ListUsers(root.Context(cmd))
			if err != nil {
				return root.UserError(err, "Failed to load users")
			}
			var current *models.User
			for i := range list {
				if list[i].ID == id {
					current = &list[i]
					break
				}
			}
			if current == nil {
				return fmt.Errorf("user %d not found", id)
			}

			in := models.UserInput{Username: current.Username, IsAdmin: current.IsAdmin}
			if cmd.Flags().Changed("username") {
				in.Username = username
			}
			if cmd.Flags().Changed("admin") {
				in.IsAdmin = admin
			}
			if err := client.UpdateUser(root.Context(cmd), id, in); err != nil {
				return root.UserError(err, "Failed to update user")
			}
			fmt.Fprintf(app.Out, "Updated user %d.\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "new username")
	cmd.Flags().BoolVar(&admin, "admin", false, "administrator flag")
	return cmd
}

// ==========================
// DELETE
// ==========================
func deleteUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an account and its picks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			app, err := root.LoadApp(cmd)
			if err != nil {
				return err
			}
			client, err := app.RequireAdmin()
			if err != nil {
				return err
			}
			if user, ok := app.Session.User(); ok && user.ID == id {
				return fmt.Errorf("refusing to delete the account you are logged in with")
			}

			if err := client.DeleteUser(root.Context(cmd), id); err != nil {
				return root.UserError(err, "Failed to delete user")
			}
			fmt.Fprintf(app.Out, "Deleted user %d.\n", id)
			return nil
		},
	}
}

// ==========================
// Helpers
// ==========================
func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}

func readPassword(cmd *cobra.Command, path string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading password file: %w", err)
		}
		first, _, _ := strings.Cut(string(data), "\n")
		return strings.TrimRight(first, "\r"), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
