package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/fieldsync/internal/flagx"
)

// Flag names shared with the CLI, which declares them for help output.
const (
	FlagEnvironment  = "environment"
	FlagDataDir      = "data-dir"
	FlagLogLevel     = "log-level"
	FlagLogFormat    = "log-format"
	FlagSyncInterval = "sync-interval"
	FlagMetricsAddr  = "metrics-addr"
)

var flagNames = []string{FlagEnvironment, FlagDataDir, FlagLogLevel, FlagLogFormat, FlagSyncInterval, FlagMetricsAddr}

// parseFlags populates selected Config fields from args. Only the flags
// listed above are considered; everything else belongs to the CLI.
func parseFlags(cfg *Config, args []string) error {
	allowed := make([]string, 0, len(flagNames)*2)
	for _, n := range flagNames {
		allowed = append(allowed, "-"+n, "--"+n)
	}
	args = flagx.FilterArgs(args, allowed)

	fs := flag.NewFlagSet("fieldsync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	environment := fs.String(FlagEnvironment, string(cfg.Environment), "backend environment (sandbox or production)")
	fs.StringVar(&cfg.DataDir, FlagDataDir, cfg.DataDir, "directory for the database, token cache and attachments")
	fs.StringVar(&cfg.LogLevel, FlagLogLevel, cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, FlagLogFormat, cfg.LogFormat, "log format (text or json)")
	fs.DurationVar(&cfg.SyncInterval, FlagSyncInterval, cfg.SyncInterval, "background sync interval")
	fs.StringVar(&cfg.MetricsAddr, FlagMetricsAddr, cfg.MetricsAddr, "address of the metrics endpoint")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.Environment = Environment(*environment)
	return nil
}
