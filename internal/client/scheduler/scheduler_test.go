package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/services"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSyncer struct {
	calls atomic.Int32
}

func (c *countingSyncer) RunPass(context.Context) services.PassResult {
	c.calls.Add(1)
	return services.PassResult{Status: services.PassCompleted, Synced: 1}
}

type countingCleaner struct {
	calls atomic.Int32
}

func (c *countingCleaner) Cleanup(context.Context) (services.CleanupResult, error) {
	c.calls.Add(1)
	return services.CleanupResult{}, nil
}

func TestStart_RunsLoopsUntilCancelled(t *testing.T) {
	syncer := &countingSyncer{}
	cleaner := &countingCleaner{}
	s := New(syncer, cleaner, 10*time.Millisecond, 10*time.Millisecond, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	require.Eventually(t, func() bool {
		return syncer.calls.Load() >= 2 && cleaner.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	s.Wait()

	after := syncer.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, syncer.calls.Load(), "no passes after cancellation")
}

func TestStart_ZeroIntervalsDisableLoops(t *testing.T) {
	syncer := &countingSyncer{}
	s := New(syncer, nil, 0, time.Millisecond, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	s.Wait()

	assert.Zero(t, syncer.calls.Load())
}

func TestTriggerSync(t *testing.T) {
	syncer := &countingSyncer{}
	results := make(chan services.PassResult, 1)
	s := New(syncer, nil, 0, 0, logging.NewNop(), WithPassHandler(func(r services.PassResult) { results <- r }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.TriggerSync(ctx)
	s.Wait()

	assert.Equal(t, int32(1), syncer.calls.Load())
	res := <-results
	assert.Equal(t, "1 synced, 0 failed, 0 pending", res.Summary())
}
