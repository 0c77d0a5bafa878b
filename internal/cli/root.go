// Package cli is the console's command tree.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"case-console/internal/consolecfg"
	"case-console/internal/gate"
	"case-console/internal/logger"
	"case-console/internal/remote"
	"case-console/internal/session"
	"case-console/internal/tokenstore"
)

type App struct {
	ConfigPath string
	BaseURL    string
	JSON       bool

	cfg        consolecfg.Config
	tokens     tokenstore.Store
	closeStore func() error
	client     *remote.Client
	session    *session.Manager
	gate       *gate.Gate
	input      *bufio.Reader
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:           "case-console",
		Short:         "Manage the construction case catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Sign in and list the catalog
  case-console login admin
  case-console cases list

  # Add a case
  case-console cases add --title "Harbor wall" --service-type industrial --image wall.jpg

  # Rearrange interactively
  case-console shell
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.open(cmd)
	}

	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return app.close()
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", consolecfg.DefaultPath(), "Path to the console config file")
	cmd.PersistentFlags().StringVar(&app.BaseURL, "base-url", "", "Catalog server URL (overrides base_url)")
	cmd.PersistentFlags().BoolVar(&app.JSON, "json", false, "Print JSON instead of text")

	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newWhoamiCmd(app))
	cmd.AddCommand(newRefreshCmd(app))
	cmd.AddCommand(newCasesCmd(app))
	cmd.AddCommand(newShellCmd(app))

	return cmd
}

func (a *App) open(cmd *cobra.Command) error {
	explicit := cmd.Flags().Changed("config")
	cfg, err := consolecfg.Load(a.ConfigPath, explicit)
	if err != nil {
		return writeErr(cmd, err)
	}
	if a.BaseURL != "" {
		cfg.BaseURL = a.BaseURL
		if err := cfg.Validate(); err != nil {
			return writeErr(cmd, err)
		}
	}
	a.cfg = cfg

	logger.New(cmd.ErrOrStderr(), cfg.LogLevel)

	ctx := commandContext(cmd)

	switch cfg.TokenStore {
	case consolecfg.TokenStoreSQLite:
		store, err := tokenstore.OpenSQLite(ctx, cfg.TokenPath)
		if err != nil {
			return writeErr(cmd, err)
		}
		a.tokens = store
		a.closeStore = store.Close
	default:
		a.tokens = tokenstore.NewFileStore(cfg.TokenPath)
	}

	client, err := remote.New(cfg.BaseURL)
	if err != nil {
		return writeErr(cmd, err)
	}
	a.client = client
	a.session = session.NewManager(a.tokens, client)
	a.gate = gate.New(a.session, "login")

	client.SetTokenSource(a.session)
	client.SetUnauthorizedHandler(func() {
		a.session.Invalidate("server rejected the access token")
	})

	if err := a.session.Initialize(ctx); err != nil {
		return writeErr(cmd, err)
	}

	a.input = bufio.NewReader(cmd.InOrStdin())
	return nil
}

func (a *App) close() error {
	if a.closeStore == nil {
		return nil
	}
	err := a.closeStore()
	a.closeStore = nil
	return err
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (a *App) requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(commandContext(cmd), a.cfg.Timeout)
}

var errNotLoggedIn = errors.New("not logged in: run `case-console login <username>` first")

// requireSession admits the command only for an authenticated session.
func (a *App) requireSession(cmd *cobra.Command) error {
	decision, err := a.gate.Wait(commandContext(cmd))
	if err != nil {
		return err
	}
	if decision != gate.Admit {
		return errNotLoggedIn
	}
	return nil
}

// readLine reads one line of input without the trailing newline.
func (a *App) readLine() (string, error) {
	line, err := a.input.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *App) prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	return a.readLine()
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), "error:", err.Error())
	return err
}
