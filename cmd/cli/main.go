package main

import (
	"github.com/crucial707/pickem/cmd/cli/admin"
	"github.com/crucial707/pickem/cmd/cli/auth"
	"github.com/crucial707/pickem/cmd/cli/picks"
	"github.com/crucial707/pickem/cmd/cli/root"
	"github.com/crucial707/pickem/cmd/cli/standings"
	"github.com/crucial707/pickem/cmd/cli/users"
)

func main() {
	rootCmd := root.GetRoot()

	auth.InitAuth(rootCmd)
	picks.InitPicks(rootCmd)
	standings.InitStandings(rootCmd)
	users.InitUsers(rootCmd)
	admin.InitAdmin(rootCmd)

	root.Execute()
}
