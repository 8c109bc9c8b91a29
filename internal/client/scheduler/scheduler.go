// Package scheduler drives the sync engine in the background: a periodic
// sync pass, periodic housekeeping and on-demand passes (for example right
// after login).
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/services"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

type Syncer interface {
	RunPass(ctx context.Context) services.PassResult
}

type Cleaner interface {
	Cleanup(ctx context.Context) (services.CleanupResult, error)
}

// Scheduler owns the background loops. Zero intervals disable the
// corresponding loop.
type Scheduler struct {
	syncer          Syncer
	cleaner         Cleaner
	syncInterval    time.Duration
	cleanupInterval time.Duration
	log             logging.Logger

	onPass func(services.PassResult)

	wg sync.WaitGroup
}

type Option func(*Scheduler)

// WithPassHandler registers fn to receive the result of every background
// pass.
func WithPassHandler(fn func(services.PassResult)) Option {
	return func(s *Scheduler) { s.onPass = fn }
}

func New(syncer Syncer, cleaner Cleaner, syncInterval, cleanupInterval time.Duration, log logging.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		syncer:          syncer,
		cleaner:         cleaner,
		syncInterval:    syncInterval,
		cleanupInterval: cleanupInterval,
		log:             log.With("component", "scheduler"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start launches the loops. They stop when ctx is cancelled; use Wait to
// block until they have returned.
func (s *Scheduler) Start(ctx context.Context) {
	if s.syncInterval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, s.syncInterval, s.runPass)
		}()
	}

	if s.cleaner != nil && s.cleanupInterval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, s.cleanupInterval, s.runCleanup)
		}()
	}
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// TriggerSync starts a pass without waiting for it. If a pass is already
// running the new one is skipped by the orchestrator.
func (s *Scheduler) TriggerSync(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runPass(ctx)
	}()
}

func (s *Scheduler) runPass(ctx context.Context) {
	res := s.syncer.RunPass(ctx)
	if s.onPass != nil {
		s.onPass(res)
	}
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	if _, err := s.cleaner.Cleanup(ctx); err != nil {
		s.log.Error(ctx, "cleanup failed", "error", err)
	}
}

// Wait blocks until all loops and triggered passes have finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
