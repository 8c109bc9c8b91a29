package config

import (
	"fmt"
	"path/filepath"
	"time"
)

type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

// Endpoint is the backend identity of one environment.
type Endpoint struct {
	AuthURL      string `env:"AUTH_URL"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

// TokenURL is the token exchange endpoint under AuthURL.
func (e Endpoint) TokenURL() string {
	return e.AuthURL + "/services/oauth2/token"
}

// Archive configures S3 archiving of attachments before cleanup. An empty
// Bucket disables it.
type Archive struct {
	Bucket    string `env:"BUCKET"`
	Region    string `env:"REGION"`
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Prefix    string `env:"PREFIX"`
}

// Config holds runtime settings for the fieldsync CLI. Relative file names
// are resolved against DataDir.
type Config struct {
	Environment Environment `env:"ENVIRONMENT"`
	Sandbox     Endpoint    `envPrefix:"SANDBOX_"`
	Production  Endpoint    `envPrefix:"PRODUCTION_"`
	APIVersion  string      `env:"API_VERSION"`

	DataDir        string `env:"DATA_DIR"`
	DatabaseFile   string `env:"DATABASE_FILE"`
	TokenCacheFile string `env:"TOKEN_CACHE_FILE"`
	AttachmentsDir string `env:"ATTACHMENTS_DIR"`

	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT"`
	ProbeTimeout      time.Duration `env:"PROBE_TIMEOUT"`
	SyncInterval      time.Duration `env:"SYNC_INTERVAL"`
	CleanupInterval   time.Duration `env:"CLEANUP_INTERVAL"`
	RetentionPeriod   time.Duration `env:"RETENTION_PERIOD"`
	RetryBackoffBase  time.Duration `env:"RETRY_BACKOFF_BASE"`
	RetryBackoffMax   time.Duration `env:"RETRY_BACKOFF_MAX"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND"`
	TokenLifetime     time.Duration `env:"TOKEN_LIFETIME"`
	TokenSafetyMargin time.Duration `env:"TOKEN_SAFETY_MARGIN"`

	LogLevel    string `env:"LOG_LEVEL"`
	LogFormat   string `env:"LOG_FORMAT"`
	MetricsAddr string `env:"METRICS_ADDR"`

	Archive Archive `envPrefix:"ARCHIVE_"`
}

// Defaults returns a Config that talks to a local fake backend.
func Defaults() *Config {
	return &Config{
		Environment: EnvSandbox,
		Sandbox: Endpoint{
			AuthURL:      "http://127.0.0.1:8089",
			ClientID:     "fieldsync-dev",
			ClientSecret: "fieldsync-dev",
		},
		APIVersion: "v59.0",

		DataDir:        ".fieldsync",
		DatabaseFile:   "fieldsync.db",
		TokenCacheFile: "token.json",
		AttachmentsDir: "attachments",

		RequestTimeout:    30 * time.Second,
		ProbeTimeout:      3 * time.Second,
		SyncInterval:      5 * time.Minute,
		CleanupInterval:   24 * time.Hour,
		RetentionPeriod:   30 * 24 * time.Hour,
		TokenLifetime:     2 * time.Hour,
		TokenSafetyMargin: 5 * time.Minute,

		LogLevel:    "info",
		LogFormat:   "text",
		MetricsAddr: ":9464",
	}
}

// Active returns the endpoint of the selected environment.
func (c *Config) Active() Endpoint {
	if c.Environment == EnvProduction {
		return c.Production
	}
	return c.Sandbox
}

func (c *Config) Validate() error {
	switch c.Environment {
	case EnvSandbox, EnvProduction:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}

	ep := c.Active()
	if ep.AuthURL == "" || ep.ClientID == "" || ep.ClientSecret == "" {
		return fmt.Errorf("environment %s: auth url, client id and client secret are required", c.Environment)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.TokenSafetyMargin >= c.TokenLifetime {
		return fmt.Errorf("token safety margin must be shorter than the token lifetime")
	}
	return nil
}

// Path resolves name against DataDir unless it is already absolute.
func (c *Config) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// Load builds a Config from defaults, the JSON file, the environment and
// flags found in args, in that order.
func Load(args []string) (*Config, error) {
	cfg := Defaults()

	if err := parseJSON(cfg, args); err != nil {
		return nil, fmt.Errorf("json config: %w", err)
	}
	if err := parseEnv(cfg, args); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
