package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/buildinfo"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/services"
	"github.com/spf13/cobra"
)

// login authenticates pin, prompting for it when empty.
func (o *RootOptions) login(cmd *cobra.Command, app *App, pin string) (*models.Session, error) {
	out := cmd.OutOrStdout()
	if pin == "" {
		var err error
		if pin, err = GetPIN(o.in, out); err != nil {
			return nil, fmt.Errorf("read pin: %w", err)
		}
	}

	res := app.Auth.Login(cmd.Context(), pin)
	if !res.Authenticated() {
		return nil, refusal(res)
	}

	fmt.Fprintf(out, "Logged in as %s (%s)\n", res.Session.User.DisplayName, res.Session.Mode)
	return res.Session, nil
}

func refusal(res services.AuthResult) error {
	var reason string
	switch res.Outcome {
	case services.NotFound:
		reason = "unknown PIN"
	case services.Inactive:
		reason = "account is inactive"
	case services.RemoteUnavailable:
		reason = "backend could not check the PIN"
	default:
		reason = res.Outcome.String()
	}
	if res.Err == nil {
		return errors.New("login refused: " + reason)
	}
	return fmt.Errorf("login refused: %s: %w", reason, res.Err)
}

func newLoginCommand(opts *RootOptions) *cobra.Command {
	var pin string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check a PIN and cache the user for offline logins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			_, err = opts.login(cmd, app, pin)
			return err
		},
	}
	cmd.Flags().StringVar(&pin, "pin", "", "user PIN (prompted when omitted)")
	return cmd
}

type captureFlags struct {
	pin      string
	in       services.CaptureInput
	lat, lon float64
	sync     bool
}

func newCaptureCommand(opts *RootOptions) *cobra.Command {
	var f captureFlags

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Store a new record from a scanned barcode or manual input",
		Long: `Store a new record locally. Values given as flags override the ones
parsed from --barcode. The record is pushed by the next sync pass, or
right away with --sync.

Example:
  fieldsync capture --pin 1234 --barcode "$(cat scan.txt)" --attach photo.jpg
  fieldsync capture --pin 1234 --reg CA123456 --make TOYOTA --lat -33.92 --lon 18.42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("lat") {
				f.in.Latitude = &f.lat
			}
			if cmd.Flags().Changed("lon") {
				f.in.Longitude = &f.lon
			}
			return runCapture(cmd, opts, &f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.pin, "pin", "", "user PIN (prompted when omitted)")
	fl.StringVar(&f.in.Barcode, "barcode", "", "raw barcode scan")
	fl.StringVar(&f.in.LicenceNumber, "licence", "", "licence number")
	fl.StringVar(&f.in.VehicleRegistration, "reg", "", "vehicle registration")
	fl.StringVar(&f.in.VehicleType, "type", "", "vehicle type")
	fl.StringVar(&f.in.Make, "make", "", "vehicle make")
	fl.StringVar(&f.in.Model, "model", "", "vehicle model")
	fl.StringVar(&f.in.Colour, "colour", "", "vehicle colour")
	fl.StringVar(&f.in.VIN, "vin", "", "VIN")
	fl.StringVar(&f.in.EngineNumber, "engine", "", "engine number")
	fl.StringVar(&f.in.ExpiryDate, "expiry", "", "licence expiry date")
	fl.StringVar(&f.in.Notes, "notes", "", "free text notes")
	fl.Float64Var(&f.lat, "lat", 0, "latitude")
	fl.Float64Var(&f.lon, "lon", 0, "longitude")
	fl.StringSliceVar(&f.in.Attachments, "attach", nil, "file to attach (repeatable)")
	fl.BoolVar(&f.sync, "sync", false, "run a sync pass after storing the record")
	return cmd
}

func runCapture(cmd *cobra.Command, opts *RootOptions, f *captureFlags) error {
	app, err := opts.App(cmd)
	if err != nil {
		return err
	}
	sess, err := opts.login(cmd, app, f.pin)
	if err != nil {
		return err
	}

	res, err := app.Capture.Capture(cmd.Context(), sess, f.in)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Captured record #%d\n", res.Record.LocalID)
	if res.Partial {
		fmt.Fprintln(out, "Warning: the barcode had fewer fields than expected; check the record")
	}

	if !f.sync {
		return nil
	}
	app.Settle()
	return printPass(out, app.Sync.RunPass(cmd.Context()))
}

func printPass(w io.Writer, res services.PassResult) error {
	switch res.Status {
	case services.PassCompleted:
		fmt.Fprintf(w, "Sync: %s\n", res.Summary())
		if res.AttachmentFailures > 0 {
			fmt.Fprintf(w, "Sync: %d attachment(s) could not be uploaded\n", res.AttachmentFailures)
		}
	case services.PassNothingToDo:
		fmt.Fprintln(w, "Sync: nothing to do")
	case services.PassSkippedOffline:
		fmt.Fprintf(w, "Sync: backend unreachable, %d record(s) pending\n", res.Pending)
	case services.PassSkippedBusy:
		fmt.Fprintln(w, "Sync: another pass is running")
	default:
		if res.Err != nil {
			return fmt.Errorf("sync %s: %w", res.Status, res.Err)
		}
		return fmt.Errorf("sync %s", res.Status)
	}
	return nil
}

func newSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push unsynced records and queued updates now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			return printPass(cmd.OutOrStdout(), app.Sync.RunPass(cmd.Context()))
		},
	}
}

func newStatusCommand(opts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, pending work and recent records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			pending, err := app.Capture.PendingCount(ctx)
			if err != nil {
				return err
			}
			records, err := app.Capture.List(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend:  %s\n", onlineLabel(app.Online(ctx)))
			if tok, ok := app.session.Current(); ok {
				fmt.Fprintf(out, "Token:    valid until %s\n", tok.ExpiresAt.Local().Format(time.DateTime))
			} else {
				fmt.Fprintln(out, "Token:    none")
			}
			fmt.Fprintf(out, "Pending:  %d\n", pending)

			if len(records) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			return writeRecords(out, records)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of recent records to list (0 lists all)")
	return cmd
}

func onlineLabel(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}

func writeRecords(w io.Writer, records []*models.CapturedRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCAPTURED\tREGISTRATION\tBY\tSTATE\tATTEMPTS")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
			r.LocalID,
			r.CapturedAt.Local().Format(time.DateTime),
			dash(r.VehicleRegistration),
			r.CapturedBy,
			recordState(r),
			r.SyncAttempts,
		)
	}
	return tw.Flush()
}

func recordState(r *models.CapturedRecord) string {
	switch {
	case r.IsSynced:
		return "synced " + r.RemoteID
	case r.SyncError != "":
		return "error: " + truncate(r.SyncError, 40)
	default:
		return "pending"
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func newChoicesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "choices [<object> <field>]",
		Short: "List the allowed values of a choice field",
		Long: `List the active values of a choice field, refreshing the local copy when
the backend is reachable. Without arguments, list the fields that have a
local copy.

Example:
  fieldsync choices Vehicle_Capture__c Colour__c`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected <object> <field> or no arguments, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				fields, err := app.Choices.CachedFields(cmd.Context())
				if err != nil {
					return err
				}
				for _, f := range fields {
					fmt.Fprintln(out, f)
				}
				return nil
			}

			values, err := app.Choices.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if values == nil {
				return fmt.Errorf("no values known for %s.%s; connect once to fetch them", args[0], args[1])
			}
			for _, v := range values {
				fmt.Fprintln(out, v)
			}
			return nil
		},
	}
}

func newCleanupCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove synced records older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			res, err := app.Housekeeper.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d record(s)", res.Deleted)
			if res.Archived > 0 || res.Kept > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", archived %d attachment(s), kept %d record(s)", res.Archived, res.Kept)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

func newShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLocalID(args[0])
			if err != nil {
				return err
			}
			app, err := opts.App(cmd)
			if err != nil {
				return err
			}
			rec, err := app.Capture.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeRecord(cmd.OutOrStdout(), rec)
		},
	}
}

func writeRecord(w io.Writer, r *models.CapturedRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(k, v string) { fmt.Fprintf(tw, "%s:\t%s\n", k, v) }

	row("ID", strconv.FormatInt(r.LocalID, 10))
	row("Remote ID", dash(r.RemoteID))
	row("State", recordState(r))
	row("Captured", r.CapturedAt.Local().Format(time.DateTime)+" by "+r.CapturedBy)
	row("Licence", dash(r.LicenceNumber))
	row("Registration", dash(r.VehicleRegistration))
	row("Type", dash(r.VehicleType))
	row("Make", dash(r.Make))
	row("Model", dash(r.Model))
	row("Colour", dash(r.Colour))
	row("VIN", dash(r.VIN))
	row("Engine", dash(r.EngineNumber))
	row("Expiry", dash(r.ExpiryDate))
	row("Notes", dash(r.Notes))
	if r.HasLocation() {
		row("Location", fmt.Sprintf("%.6f, %.6f", *r.Latitude, *r.Longitude))
	}
	for _, a := range r.Attachments {
		row("Attachment", a)
	}
	if r.SyncError != "" {
		row("Last error", r.SyncError)
	}
	return tw.Flush()
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			buildinfo.PrintBuildData(cmd.OutOrStdout())
		},
	}
}

// parseLocalID parses a record id typed by the user.
func parseLocalID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", s)
	}
	return id, nil
}
