package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"case-console/internal/catalog"
)

const shellHelp = `commands:
  list                 show cases in the current local order
  up <n> | down <n>    move case n one step
  move <from> <to>     move case from position to position
  save                 commit the local order to the server
  rm <n>               ask to delete case n
  confirm | cancel     resolve a pending delete
  reload               discard local changes and fetch the server order
  status               show unsaved changes and pending delete
  help                 show this text
  quit                 leave the shell`

func newShellCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Rearrange and prune the catalog interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireSession(cmd); err != nil {
				return writeErr(cmd, err)
			}

			ctrl := catalog.NewController(app.client, terminalView{out: cmd.OutOrStdout()})
			ctx, cancel := app.requestContext(cmd)
			err := ctrl.Load(ctx)
			cancel()
			if err != nil {
				return err
			}

			sh := &shell{app: app, cmd: cmd, ctrl: ctrl, out: cmd.OutOrStdout()}
			return sh.run()
		},
	}
}

type shell struct {
	app  *App
	cmd  *cobra.Command
	ctrl *catalog.Controller
	out  io.Writer
}

func (s *shell) run() error {
	_ = printCases(s.out, s.ctrl.Items(), false, nil)
	for {
		fmt.Fprint(s.out, "> ")
		line, err := s.app.readLine()
		if errors.Is(err, io.EOF) {
			s.warnUnsaved()
			return nil
		}
		if err != nil {
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			s.warnUnsaved()
			return nil
		}
		if err := s.exec(fields[0], fields[1:]); err != nil {
			fmt.Fprintln(s.out, "error:", err)
		}
	}
}

func (s *shell) exec(name string, args []string) error {
	switch name {
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)
	case "list", "ls":
		return printCases(s.out, s.ctrl.Items(), false, nil)
	case "status":
		s.printStatus()
	case "up", "down":
		index, err := s.position(args, 0)
		if err != nil {
			return err
		}
		dir := catalog.Up
		if name == "down" {
			dir = catalog.Down
		}
		if s.ctrl.Move(index, dir) {
			return printCases(s.out, s.ctrl.Items(), false, nil)
		}
		fmt.Fprintln(s.out, "nothing to move")
	case "move", "mv":
		if len(args) != 2 {
			return errors.New("usage: move <from> <to>")
		}
		from, err := s.position(args, 0)
		if err != nil {
			return err
		}
		to, err := s.position(args, 1)
		if err != nil {
			return err
		}
		if s.ctrl.Reorder(from, to) {
			return printCases(s.out, s.ctrl.Items(), false, nil)
		}
		fmt.Fprintln(s.out, "nothing to move")
	case "save":
		if !s.ctrl.Dirty() {
			fmt.Fprintln(s.out, "no unsaved changes")
			return nil
		}
		ctx, cancel := s.app.requestContext(s.cmd)
		defer cancel()
		// Failures are already reported as notices.
		if err := s.ctrl.CommitOrder(ctx); errors.Is(err, catalog.ErrCommitInFlight) {
			return err
		}
	case "rm":
		index, err := s.position(args, 0)
		if err != nil {
			return err
		}
		items := s.ctrl.Items()
		if err := s.ctrl.RequestDelete(items[index].ID); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "delete %q? type confirm or cancel\n", items[index].Title)
	case "confirm":
		ctx, cancel := s.app.requestContext(s.cmd)
		defer cancel()
		err := s.ctrl.ConfirmDelete(ctx)
		if errors.Is(err, catalog.ErrNoPendingDelete) {
			return err
		}
		if err == nil {
			return printCases(s.out, s.ctrl.Items(), false, nil)
		}
	case "cancel":
		s.ctrl.CancelDelete()
		fmt.Fprintln(s.out, "delete cancelled")
	case "reload":
		ctx, cancel := s.app.requestContext(s.cmd)
		defer cancel()
		if err := s.ctrl.Load(ctx); err == nil {
			return printCases(s.out, s.ctrl.Items(), false, nil)
		}
	default:
		return fmt.Errorf("unknown command %q (try help)", name)
	}
	return nil
}

// position parses the 1-based list position at args[i] into an index.
func (s *shell) position(args []string, i int) (int, error) {
	if len(args) <= i {
		return 0, errors.New("missing position")
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("invalid position %q", args[i])
	}
	count := len(s.ctrl.Items())
	if n < 1 || n > count {
		return 0, fmt.Errorf("position must be between 1 and %d", count)
	}
	return n - 1, nil
}

func (s *shell) printStatus() {
	snap := s.ctrl.Snapshot()
	fmt.Fprintf(s.out, "cases: %d\n", len(snap.Items))
	if snap.Dirty {
		fmt.Fprintln(s.out, "order: unsaved changes (run save)")
	} else {
		fmt.Fprintln(s.out, "order: saved")
	}
	if snap.PendingDelete != "" {
		fmt.Fprintf(s.out, "pending delete: %s\n", snap.PendingDelete)
	}
}

func (s *shell) warnUnsaved() {
	if s.ctrl.Dirty() {
		fmt.Fprintln(s.out, "leaving with unsaved order changes")
	}
}
