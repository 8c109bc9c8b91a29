package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/flagx"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

type jsonEndpoint struct {
	AuthURL      string `json:"auth_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type jsonArchive struct {
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Prefix    string `json:"prefix"`
}

// jsonConfig is a DTO used only for unmarshalling. Durations go through
// timex.Duration so "5m" and integer nanoseconds both work.
type jsonConfig struct {
	Environment string        `json:"environment"`
	Sandbox     *jsonEndpoint `json:"sandbox"`
	Production  *jsonEndpoint `json:"production"`
	APIVersion  string        `json:"api_version"`

	DataDir        string `json:"data_dir"`
	DatabaseFile   string `json:"database_file"`
	TokenCacheFile string `json:"token_cache_file"`
	AttachmentsDir string `json:"attachments_dir"`

	RequestTimeout    *timex.Duration `json:"request_timeout"`
	ProbeTimeout      *timex.Duration `json:"probe_timeout"`
	SyncInterval      *timex.Duration `json:"sync_interval"`
	CleanupInterval   *timex.Duration `json:"cleanup_interval"`
	RetentionPeriod   *timex.Duration `json:"retention_period"`
	RetryBackoffBase  *timex.Duration `json:"retry_backoff_base"`
	RetryBackoffMax   *timex.Duration `json:"retry_backoff_max"`
	RequestsPerSecond *float64        `json:"requests_per_second"`
	TokenLifetime     *timex.Duration `json:"token_lifetime"`
	TokenSafetyMargin *timex.Duration `json:"token_safety_margin"`

	LogLevel    string `json:"log_level"`
	LogFormat   string `json:"log_format"`
	MetricsAddr string `json:"metrics_addr"`

	Archive *jsonArchive `json:"archive"`
}

// parseJSON overlays cfg with the JSON file named by -c/-config. Keys that
// are absent from the file leave cfg unchanged.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.JSONConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return err
	}

	jc.apply(cfg)
	return nil
}

func (jc *jsonConfig) apply(cfg *Config) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setDuration := func(dst *time.Duration, v *timex.Duration) {
		if v != nil {
			*dst = v.Duration
		}
	}
	setEndpoint := func(dst *Endpoint, v *jsonEndpoint) {
		if v == nil {
			return
		}
		setString(&dst.AuthURL, v.AuthURL)
		setString(&dst.ClientID, v.ClientID)
		setString(&dst.ClientSecret, v.ClientSecret)
	}

	if jc.Environment != "" {
		cfg.Environment = Environment(jc.Environment)
	}
	setEndpoint(&cfg.Sandbox, jc.Sandbox)
	setEndpoint(&cfg.Production, jc.Production)
	setString(&cfg.APIVersion, jc.APIVersion)

	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.DatabaseFile, jc.DatabaseFile)
	setString(&cfg.TokenCacheFile, jc.TokenCacheFile)
	setString(&cfg.AttachmentsDir, jc.AttachmentsDir)

	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.ProbeTimeout, jc.ProbeTimeout)
	setDuration(&cfg.SyncInterval, jc.SyncInterval)
	setDuration(&cfg.CleanupInterval, jc.CleanupInterval)
	setDuration(&cfg.RetentionPeriod, jc.RetentionPeriod)
	setDuration(&cfg.RetryBackoffBase, jc.RetryBackoffBase)
	setDuration(&cfg.RetryBackoffMax, jc.RetryBackoffMax)
	setDuration(&cfg.TokenLifetime, jc.TokenLifetime)
	setDuration(&cfg.TokenSafetyMargin, jc.TokenSafetyMargin)
	if jc.RequestsPerSecond != nil {
		cfg.RequestsPerSecond = *jc.RequestsPerSecond
	}

	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)
	setString(&cfg.MetricsAddr, jc.MetricsAddr)

	if a := jc.Archive; a != nil {
		setString(&cfg.Archive.Bucket, a.Bucket)
		setString(&cfg.Archive.Region, a.Region)
		setString(&cfg.Archive.Endpoint, a.Endpoint)
		setString(&cfg.Archive.AccessKey, a.AccessKey)
		setString(&cfg.Archive.SecretKey, a.SecretKey)
		setString(&cfg.Archive.Prefix, a.Prefix)
	}
}
