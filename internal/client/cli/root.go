package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/config"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/spf13/cobra"
)

// RootOptions holds the global flags and the engine shared by every
// command of one invocation.
//
// The flag fields exist so cobra accepts and documents them; the values are
// read by config.Load from the raw arguments, together with the JSON file
// and the environment.
type RootOptions struct {
	ConfigFile   string
	EnvFile      string
	Environment  string
	DataDir      string
	LogLevel     string
	LogFormat    string
	SyncInterval time.Duration
	MetricsAddr  string

	args []string
	in   *bufio.Reader
	app  *App
}

// App builds the engine on first use.
func (o *RootOptions) App(cmd *cobra.Command) (*App, error) {
	if o.app != nil {
		return o.app, nil
	}

	cfg, err := config.Load(o.args)
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())

	app, err := NewApp(cmd.Context(), cfg, log)
	if err != nil {
		return nil, err
	}
	o.app = app
	return app, nil
}

// Close releases the engine, if one was built.
func (o *RootOptions) Close() error {
	if o.app == nil {
		return nil
	}
	err := o.app.Close()
	o.app = nil
	return err
}

// NewRootCommand creates the fieldsync command tree.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fieldsync",
		Short: "Offline-first field capture with background sync",
		Long: `fieldsync captures vehicle records in the field, keeps them in a local
database and pushes them to the backend whenever it is reachable.

Configuration is read from defaults, a JSON file (-c), a dotenv file
(--env-file), FIELDSYNC_* environment variables and flags, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigFile, "config", "c", "", "JSON config file")
	pf.StringVar(&opts.EnvFile, "env-file", "", "dotenv file loaded before reading the environment")
	pf.StringVar(&opts.Environment, config.FlagEnvironment, "", "backend environment (sandbox or production)")
	pf.StringVar(&opts.DataDir, config.FlagDataDir, "", "directory for the database, token cache and attachments")
	pf.StringVar(&opts.LogLevel, config.FlagLogLevel, "", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.LogFormat, config.FlagLogFormat, "", "log format (text or json)")
	pf.DurationVar(&opts.SyncInterval, config.FlagSyncInterval, 0, "background sync interval")
	pf.StringVar(&opts.MetricsAddr, config.FlagMetricsAddr, "", "listen address of the status and metrics endpoint")

	cmd.AddCommand(
		newLoginCommand(opts),
		newCaptureCommand(opts),
		newSyncCommand(opts),
		newStatusCommand(opts),
		newShowCommand(opts),
		newChoicesCommand(opts),
		newCleanupCommand(opts),
		newRunCommand(opts),
		newShellCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// Execute runs the command line args against a fresh command tree.
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	opts := &RootOptions{args: args, in: bufio.NewReader(in)}

	cmd := NewRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	err := cmd.ExecuteContext(ctx)
	if cerr := opts.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close: %w", cerr))
	}
	return err
}
