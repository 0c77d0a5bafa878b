package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newLoginCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in and store the session tokens",
		Long:  "Sign in and store the session tokens. The password is read from standard input.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := app.prompt(cmd, "Password: ")
			if err != nil {
				return writeErr(cmd, fmt.Errorf("read password: %w", err))
			}

			ctx, cancel := app.requestContext(cmd)
			defer cancel()

			user, err := app.session.Login(ctx, strings.TrimSpace(args[0]), password)
			if err != nil {
				return writeErr(cmd, err)
			}

			name := user.Username
			if name == "" {
				name = user.Subject
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", name)
			return nil
		},
	}
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.requestContext(cmd)
			defer cancel()

			if err := app.session.Logout(ctx); err != nil {
				return writeErr(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireSession(cmd); err != nil {
				return writeErr(cmd, err)
			}

			user := app.session.State().User
			if app.JSON {
				out := map[string]any{
					"subject":  user.Subject,
					"username": user.Username,
					"role":     user.Role,
				}
				if user.ExpiresAt != nil {
					out["expires_at"] = user.ExpiresAt.UTC().Format(time.RFC3339)
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "username: %s\nsubject:  %s\n", user.Username, user.Subject)
			if user.Role != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "role:     %s\n", user.Role)
			}
			if user.ExpiresAt != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "expires:  %s\n", user.ExpiresAt.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
}

func newRefreshCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireSession(cmd); err != nil {
				return writeErr(cmd, err)
			}

			ctx, cancel := app.requestContext(cmd)
			defer cancel()

			if _, err := app.session.Refresh(ctx); err != nil {
				return writeErr(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "session refreshed")
			return nil
		},
	}
}
