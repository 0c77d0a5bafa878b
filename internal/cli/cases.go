package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"case-console/internal/catalog"
	"case-console/internal/remote"
)

func newCasesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "List and change catalog cases",
	}

	cmd.AddCommand(newCasesListCmd(app))
	cmd.AddCommand(newCasesAddCmd(app))
	cmd.AddCommand(newCasesRmCmd(app))
	cmd.AddCommand(newCasesReorderCmd(app))
	return cmd
}

func (a *App) controller(cmd *cobra.Command) *catalog.Controller {
	return catalog.NewController(a.client, terminalView{out: cmd.ErrOrStderr()})
}

func newCasesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cases in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.requestContext(cmd)
			defer cancel()

			ctrl := app.controller(cmd)
			if err := ctrl.Load(ctx); err != nil {
				return err
			}
			return printCases(cmd.OutOrStdout(), ctrl.Items(), app.JSON, app.client.ImageURL)
		},
	}
}

func newCasesAddCmd(app *App) *cobra.Command {
	var (
		fields    remote.CaseFields
		imagePath string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a case from an image file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireSession(cmd); err != nil {
				return writeErr(cmd, err)
			}

			var image remote.ImagePayload
			if imagePath != "" {
				data, err := os.ReadFile(imagePath)
				if err != nil {
					return writeErr(cmd, fmt.Errorf("read image: %w", err))
				}
				image = remote.ImagePayload{Filename: filepath.Base(imagePath), Data: data}
			}

			ctx, cancel := app.requestContext(cmd)
			defer cancel()

			created, err := app.controller(cmd).Create(ctx, fields, image)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), created.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&fields.Title, "title", "", "Case title (required)")
	cmd.Flags().StringVar(&fields.ServiceType, "service-type", "", "residential|commercial|industrial|public")
	cmd.Flags().StringVar(&fields.LocationTag, "location", "", "Location tag")
	cmd.Flags().StringVar(&fields.Description, "description", "", "Free-form description")
	cmd.Flags().StringVar(&imagePath, "image", "", "Path to the case image (required)")
	return cmd
}

func newCasesRmCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rm <case-id>",
		Short: "Delete a case and its image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireSession(cmd); err != nil {
				return writeErr(cmd, err)
			}

			ctx, cancel := app.requestContext(cmd)
			defer cancel()

			ctrl := app.controller(cmd)
			if err := ctrl.Load(ctx); err != nil {
				return err
			}
			if err := ctrl.RequestDelete(args[0]); err != nil {
				return writeErr(cmd, err)
			}

			if !yes {
				answer, err := app.prompt(cmd, fmt.Sprintf("Delete case %s? This cannot be undone. [y/N] ", args[0]))
				if err != nil || !confirmed(answer) {
					ctrl.CancelDelete()
					fmt.Fprintln(cmd.OutOrStdout(), "cancelled")
					return nil
				}
			}

			return ctrl.ConfirmDelete(ctx)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newCasesReorderCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <case-id>...",
		Short: "Save a new display order (must list every case exactly once)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireSession(cmd); err != nil {
				return writeErr(cmd, err)
			}

			ctx, cancel := app.requestContext(cmd)
			defer cancel()

			ctrl := app.controller(cmd)
			if err := ctrl.Load(ctx); err != nil {
				return err
			}
			if err := arrange(ctrl, args); err != nil {
				return writeErr(cmd, err)
			}
			if !ctrl.Dirty() {
				fmt.Fprintln(cmd.OutOrStdout(), "order unchanged")
				return nil
			}
			return ctrl.CommitOrder(ctx)
		},
	}
}

// arrange applies the wanted order to ctrl one splice at a time.
func arrange(ctrl *catalog.Controller, wanted []string) error {
	current := ctrl.Items()
	if len(wanted) != len(current) {
		return fmt.Errorf("must list all %d cases exactly once", len(current))
	}

	index := make(map[string]int, len(current))
	for i, item := range current {
		index[item.ID] = i
	}
	seen := make(map[string]bool, len(wanted))
	for _, id := range wanted {
		if seen[id] {
			return errors.New("duplicate case id in reorder list")
		}
		seen[id] = true
		if _, ok := index[id]; !ok {
			return fmt.Errorf("unknown case id %q", id)
		}
	}

	for target, id := range wanted {
		items := ctrl.Items()
		for i := target; i < len(items); i++ {
			if items[i].ID == id {
				ctrl.Reorder(i, target)
				break
			}
		}
	}
	return nil
}

func confirmed(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
