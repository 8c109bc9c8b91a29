package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/dmitrijs2005/fieldsync/internal/flagx"
	"github.com/joho/godotenv"
)

const envPrefix = "FIELDSYNC_"

// parseEnv overlays cfg with FIELDSYNC_ variables. A dotenv file named by
// -env-file is loaded first; it never overrides variables that are already
// set. Unset variables leave cfg unchanged.
func parseEnv(cfg *Config, args []string) error {
	if path := flagx.EnvFilePath(args); path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	return env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix})
}
