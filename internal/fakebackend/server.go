package fakebackend

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

// Config of the development server. Flags override FAKEBACKEND_ variables.
type Config struct {
	Addr         string `env:"ADDR"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	SeedFile     string `env:"SEED_FILE"`
	LogLevel     string `env:"LOG_LEVEL"`
}

func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{
		Addr:         "127.0.0.1:8089",
		ClientID:     "fieldsync-dev",
		ClientSecret: "fieldsync-dev",
		LogLevel:     "info",
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "FAKEBACKEND_"}); err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("fakebackend", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "listen address")
	fs.StringVar(&cfg.ClientID, "client-id", cfg.ClientID, "accepted client id")
	fs.StringVar(&cfg.ClientSecret, "client-secret", cfg.ClientSecret, "accepted client secret")
	fs.StringVar(&cfg.SeedFile, "seed", cfg.SeedFile, "JSON file with users and choice lists")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Seed is the content of a seed file.
type Seed struct {
	Users []struct {
		Name        string   `json:"name"`
		PIN         string   `json:"pin"`
		Active      bool     `json:"active"`
		Permissions []string `json:"permissions"`
	} `json:"users"`
	// Choices maps object -> field -> values.
	Choices map[string]map[string][]string `json:"choices"`
}

// LoadSeed reads path and stores its users and choice lists in b.
func (b *Backend) LoadSeed(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var s Seed
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("seed %s: %w", path, err)
	}

	for _, u := range s.Users {
		b.AddUser(u.Name, u.PIN, u.Active, u.Permissions...)
	}
	for kind, fields := range s.Choices {
		for field, values := range fields {
			b.SetChoices(kind, field, values...)
		}
	}
	return nil
}

// App runs the backend as a standalone HTTP server.
type App struct {
	config  *Config
	logger  logging.Logger
	backend *Backend
}

func NewApp(cfg *Config, logger logging.Logger) (*App, error) {
	b := New(cfg.ClientID, cfg.ClientSecret)
	if cfg.SeedFile != "" {
		if err := b.LoadSeed(cfg.SeedFile); err != nil {
			return nil, err
		}
	}
	return &App{config: cfg, logger: logger.With("component", "fakebackend"), backend: b}, nil
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	srv := &http.Server{
		Addr:              app.config.Addr,
		Handler:           app.backend.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "listening", "addr", app.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
