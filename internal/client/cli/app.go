package cli

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/fieldsync/internal/archive"
	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/config"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/scheduler"
	"github.com/dmitrijs2005/fieldsync/internal/client/services"
	"github.com/dmitrijs2005/fieldsync/internal/client/session"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/netx"
)

// App is the wired engine: one local store, one session manager and the
// services built on them.
type App struct {
	cfg *config.Config
	log logging.Logger

	store   *store.Store
	session *session.Manager
	net     services.Connectivity

	Auth        *services.AuthService
	Capture     *services.CaptureService
	Sync        *services.SyncOrchestrator
	Housekeeper *services.Housekeeper
	Choices     *services.ChoiceService
	Scheduler   *scheduler.Scheduler

	mu       sync.Mutex
	lastPass *services.PassResult
}

// NewApp opens the local store and builds every service from cfg.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	if _, err := filex.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	st := store.New(cfg.Path(cfg.DatabaseFile), log)
	if err := st.Init(ctx); err != nil {
		return nil, err
	}

	ep := cfg.Active()
	mgr := session.NewManager(
		session.Credentials{TokenURL: ep.TokenURL(), ClientID: ep.ClientID, ClientSecret: ep.ClientSecret},
		session.NewFileTokenCache(cfg.Path(cfg.TokenCacheFile)),
		log,
		session.WithLifetime(cfg.TokenLifetime, cfg.TokenSafetyMargin),
		session.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	)

	remote := client.NewHTTPClient(mgr, cfg.APIVersion, log,
		client.WithTimeout(cfg.RequestTimeout),
		client.WithRateLimit(cfg.RequestsPerSecond, 1),
	)
	net := netx.NewProber(ep.AuthURL, cfg.ProbeTimeout)

	a := &App{cfg: cfg, log: log, store: st, session: mgr, net: net}

	// Sync and housekeeping never overlap.
	var maintenance sync.Mutex

	a.Sync = services.NewSyncOrchestrator(st, remote, mgr, net, log,
		services.WithLock(&maintenance),
		services.WithBackoff(services.Backoff{Base: cfg.RetryBackoffBase, Max: cfg.RetryBackoffMax}),
	)

	hkOpts := []services.HousekeepingOption{
		services.WithHousekeepingLock(&maintenance),
		services.WithManagedAttachments(cfg.Path(cfg.AttachmentsDir)),
	}
	if cfg.Archive.Bucket != "" {
		arch, err := archive.NewS3Archiver(ctx, archive.Config(cfg.Archive))
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		hkOpts = append(hkOpts, services.WithArchiver(arch))
	}
	a.Housekeeper = services.NewHousekeeper(st, cfg.RetentionPeriod, log, hkOpts...)

	a.Scheduler = scheduler.New(a.Sync, a.Housekeeper, cfg.SyncInterval, cfg.CleanupInterval, log,
		scheduler.WithPassHandler(a.recordPass),
	)

	a.Auth = services.NewAuthService(remote, st, net, log,
		services.WithBackgroundTimeout(cfg.RequestTimeout),
		services.WithLoginHook(func(ctx context.Context, _ *models.Session) {
			a.Scheduler.TriggerSync(ctx)
		}),
	)
	a.Capture = services.NewCaptureService(st, log, services.WithAttachmentsDir(cfg.Path(cfg.AttachmentsDir)))
	a.Choices = services.NewChoiceService(remote, st, net, log)

	return a, nil
}

func (a *App) recordPass(res services.PassResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastPass = &res
}

// LastPass returns the result of the latest background pass.
func (a *App) LastPass() (services.PassResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastPass == nil {
		return services.PassResult{}, false
	}
	return *a.lastPass, true
}

func (a *App) Online(ctx context.Context) bool {
	return a.net.Online(ctx)
}

// Settle waits for the background work a login started: the last-login
// update and the sync pass it triggers.
func (a *App) Settle() {
	a.Auth.Wait()
	a.Scheduler.Wait()
}

// Close waits for background work started by the services and closes the
// store.
func (a *App) Close() error {
	a.Auth.Wait()
	a.Scheduler.Wait()
	return a.store.Close()
}
