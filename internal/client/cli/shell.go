package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/services"
	"github.com/spf13/cobra"
)

// execIface defines the minimal command surface the shell loop needs.
// The real shell satisfies it; tests provide a lightweight stub.
type execIface interface {
	loggedIn() bool
	Login(ctx context.Context) error
	Capture(ctx context.Context) error
	List(ctx context.Context) error
	Show(ctx context.Context, id string) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL reads commands from reader until EOF or "exit" and dispatches
// them to a. Handler errors are printed and the loop continues.
//
//	Not logged in: help, login, status, sync, exit
//	Logged in:     help, capture, (l)ist, show <id>, sync, status, logout, exit
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		fmt.Fprintf(w, "fs %s> ", statusFn())

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(w)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.loggedIn() {
				fmt.Fprintln(w, "Available commands: capture, (l)ist, show <id>, sync, status, logout, exit")
			} else {
				fmt.Fprintln(w, "Available commands: login, status, sync, exit")
			}

		case "login":
			cmdErr = a.Login(ctx)

		case "capture":
			cmdErr = a.Capture(ctx)

		case "l", "list":
			cmdErr = a.List(ctx)

		case "show":
			if len(args) == 0 {
				fmt.Fprintln(w, "Usage: show <id>")
				continue
			}
			cmdErr = a.Show(ctx, args[0])

		case "sync":
			cmdErr = a.Sync(ctx)

		case "status":
			cmdErr = a.Status(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}

		if cmdErr != nil {
			fmt.Fprintln(w, "Error:", cmdErr)
		}
	}
}

var errLoginRequired = errors.New("log in first")

// shell is the interactive front end: one session, one engine.
type shell struct {
	opts   *RootOptions
	cmd    *cobra.Command
	app    *App
	sess   *models.Session
	reader *bufio.Reader
	out    io.Writer
}

func newShellCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session: log in once, capture and sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}

			s := &shell{opts: opts, cmd: cmd, app: app, reader: opts.in, out: cmd.OutOrStdout()}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			app.Scheduler.Start(ctx)

			fmt.Fprintln(s.out, "Welcome to fieldsync (type 'help' for commands)")
			runREPL(ctx, s, s.status, s.reader, s.out)
			return nil
		},
	}
}

func (s *shell) status() string {
	var parts []string
	if s.sess != nil {
		parts = append(parts, s.sess.User.DisplayName, string(s.sess.Mode))
	}
	if s.app.Sync.HasPending() {
		parts = append(parts, "pending")
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (s *shell) loggedIn() bool { return s.sess != nil }

func (s *shell) Login(ctx context.Context) error {
	sess, err := s.opts.login(s.cmd, s.app, "")
	if err != nil {
		return err
	}
	s.sess = sess
	return nil
}

func (s *shell) Logout(ctx context.Context) error {
	s.sess = nil
	fmt.Fprintln(s.out, "Logged out")
	return nil
}

func (s *shell) Capture(ctx context.Context) error {
	if s.sess == nil {
		return errLoginRequired
	}

	var in services.CaptureInput
	prompts := []struct {
		label string
		dst   *string
	}{
		{"Barcode (scan, or leave empty)", &in.Barcode},
		{"Vehicle registration", &in.VehicleRegistration},
		{"Notes", &in.Notes},
	}
	for _, p := range prompts {
		v, err := GetSimpleText(s.reader, p.label, s.out)
		if err != nil {
			return err
		}
		*p.dst = v
	}

	var err error
	if in.Latitude, err = GetOptionalFloat(s.reader, "Latitude (optional)", s.out); err != nil {
		return err
	}
	if in.Latitude != nil {
		if in.Longitude, err = GetOptionalFloat(s.reader, "Longitude", s.out); err != nil {
			return err
		}
	}
	if in.Attachments, err = GetList(s.reader, "Attachment paths", s.out); err != nil {
		return err
	}

	res, err := s.app.Capture.Capture(ctx, s.sess, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Captured record #%d\n", res.Record.LocalID)
	if res.Partial {
		fmt.Fprintln(s.out, "Warning: the barcode had fewer fields than expected; check the record")
	}
	return nil
}

func (s *shell) List(ctx context.Context) error {
	if s.sess == nil {
		return errLoginRequired
	}
	records, err := s.app.Capture.List(ctx, 20)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(s.out, "No records")
		return nil
	}
	return writeRecords(s.out, records)
}

func (s *shell) Show(ctx context.Context, raw string) error {
	if s.sess == nil {
		return errLoginRequired
	}
	id, err := parseLocalID(raw)
	if err != nil {
		return err
	}
	rec, err := s.app.Capture.Get(ctx, id)
	if err != nil {
		return err
	}
	return writeRecord(s.out, rec)
}

func (s *shell) Sync(ctx context.Context) error {
	return printPass(s.out, s.app.Sync.RunPass(ctx))
}

func (s *shell) Status(ctx context.Context) error {
	pending, err := s.app.Capture.PendingCount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Backend: %s, pending: %d\n", onlineLabel(s.app.Online(ctx)), pending)
	return nil
}
