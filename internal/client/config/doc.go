// Package config loads runtime configuration for the fieldsync CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see Defaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Environment variables prefixed with FIELDSYNC_, after loading an
//     optional dotenv file given with -env-file.
//  4. Command-line flags, which override everything else.
//
// # JSON schema
//
// Durations use timex.Duration, so they can be strings like "5m" or integer
// nanoseconds:
//
//	{
//	  "environment": "sandbox",
//	  "sandbox": {"auth_url": "http://127.0.0.1:8089", "client_id": "dev", "client_secret": "dev"},
//	  "data_dir": ".fieldsync",
//	  "sync_interval": "5m",
//	  "retention_period": "720h",
//	  "archive": {"bucket": "captures", "region": "eu-west-1"}
//	}
//
// # Environment
//
// Every field has a FIELDSYNC_ variable, e.g. FIELDSYNC_ENVIRONMENT,
// FIELDSYNC_SANDBOX_CLIENT_SECRET, FIELDSYNC_SYNC_INTERVAL=10m,
// FIELDSYNC_ARCHIVE_BUCKET.
package config
