package root

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/crucial707/pickem/internal/apiclient"
	"github.com/crucial707/pickem/internal/config"
	"github.com/crucial707/pickem/internal/logging"
	"github.com/crucial707/pickem/internal/session"
)

// Exported RootCmd
var RootCmd = New()

// New returns a root command with the persistent flags every subcommand
// reads through LoadApp. Tests build a fresh one per case.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pickem",
		Short:         "NFL pick'em pool CLI",
		Long:          "Command line client for the NFL pick'em pool: log in, submit weekly picks, follow the standings.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("api-url", "", "backend base URL including /api (overrides PICKEM_API_URL)")
	cmd.PersistentFlags().Bool("json", false, "print JSON instead of tables")
	return cmd
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Optional helper to return the RootCmd
func GetRoot() *cobra.Command {
	return RootCmd
}

// ErrNotLoggedIn is returned by commands that need a session when there is none.
var ErrNotLoggedIn = errors.New("not logged in; run 'pickem login'")

// ErrAdminRequired is returned by admin commands for regular users.
var ErrAdminRequired = errors.New("this command requires an administrator account")

// App is what a command needs once flags are parsed: configuration, a
// logger, and the session restored from disk.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Session *session.Manager
	Out     io.Writer
	JSON    bool

	startErr error
}

// LoadApp builds the App for cmd and resumes the persisted session. A
// backend that cannot be reached does not fail here; commands that need the
// session report it through RequireSession.
func LoadApp(cmd *cobra.Command) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if apiURL, _ := cmd.Flags().GetString("api-url"); apiURL != "" {
		cfg.APIURL = strings.TrimRight(apiURL, "/")
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	logger := logging.Setup(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel)

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	client, err := apiclient.New(apiclient.Config{
		BaseURL:    cfg.APIURL,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		Logger:     logger,
		Limiter:    limiter,
	})
	if err != nil {
		return nil, err
	}

	mgr := session.NewManager(client, session.Options{
		Store:        session.NewFileStore(cfg.SessionFile),
		Logger:       logger,
		NotifyLogout: cfg.NotifyLogout,
	})

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Session: mgr,
		Out:     cmd.OutOrStdout(),
		JSON:    asJSON,
	}
	if err := mgr.Start(Context(cmd)); err != nil {
		logger.Warn("could not verify saved session", "error", err)
		app.startErr = err
	}
	return app, nil
}

// RequireSession returns a client bound to the current credential, or an
// error explaining why there is none.
func (a *App) RequireSession() (*apiclient.Client, error) {
	switch a.Session.State() {
	case session.Authenticated:
		return a.Session.Client(), nil
	case session.PasswordChangeRequired:
		return nil, errors.New("password change required; run 'pickem passwd'")
	}
	if a.startErr != nil {
		return nil, errors.New(apiclient.Message(a.startErr, "could not verify saved session"))
	}
	return nil, ErrNotLoggedIn
}

// RequireAdmin is RequireSession for admin-only commands. The backend still
// enforces the role; this only gives a clearer message up front.
func (a *App) RequireAdmin() (*apiclient.Client, error) {
	client, err := a.RequireSession()
	if err != nil {
		return nil, err
	}
	if !a.Session.IsAdmin() {
		return nil, ErrAdminRequired
	}
	return client, nil
}

// UserError converts err into the message shown on the terminal: backend
// messages verbatim, transport failures as "cannot reach server".
func UserError(err error, fallback string) error {
	if err == nil {
		return nil
	}
	var apiErr *apiclient.APIError
	var transportErr *apiclient.TransportError
	if errors.As(err, &apiErr) || errors.As(err, &transportErr) {
		if apiclient.IsUnauthorized(err) {
			return errors.New("session expired; run 'pickem login'")
		}
		return errors.New(apiclient.Message(err, fallback))
	}
	return err
}

// Context returns cmd's context, or Background when it was run without one.
func Context(cmd *cobra.Command) context.Context {
	if c := cmd.Context(); c != nil {
		return c
	}
	return context.Background()
}
