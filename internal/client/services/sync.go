package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/metrics"
)

// PassStatus is the outcome of a sync pass. The values double as metric
// labels.
type PassStatus string

const (
	// PassCompleted means every due record was attempted. Individual
	// records may still have failed; see PassResult.Failed.
	PassCompleted PassStatus = "completed"
	// PassSkippedBusy means another pass held the lock.
	PassSkippedBusy PassStatus = "skipped_busy"
	// PassSkippedOffline means the backend was unreachable and nothing was sent.
	PassSkippedOffline PassStatus = "skipped_offline"
	// PassNothingToDo means there were no unsynced records and no queued operations.
	PassNothingToDo PassStatus = "nothing_to_do"
	// PassAuthFailed means no token could be obtained; records are untouched.
	PassAuthFailed PassStatus = "auth_failed"
	// PassStorageFailed means the local store could not be read.
	PassStorageFailed PassStatus = "storage_failed"
	// PassCancelled means the context ended between two records.
	PassCancelled PassStatus = "cancelled"
)

// PassResult reports what one sync pass did. Pending is the number of
// unsynced records left once the pass finished.
type PassResult struct {
	Status PassStatus

	Attempted          int
	Synced             int
	Failed             int
	Deferred           int
	AttachmentFailures int
	OperationsSent     int
	OperationsFailed   int

	Pending int
	Err     error

	StartedAt time.Time
	Duration  time.Duration
}

// Summary renders the counts for the user, e.g. "2 synced, 1 failed, 1 pending".
func (r PassResult) Summary() string {
	return fmt.Sprintf("%d synced, %d failed, %d pending", r.Synced, r.Failed, r.Pending)
}

// Backoff delays the next attempt of a failing record. With a zero Base
// every unsynced record is attempted on every pass.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns Base·2^(attempts-1), capped at Max.
func (b Backoff) Delay(attempts int) time.Duration {
	if b.Base <= 0 || attempts <= 0 {
		return 0
	}
	d := b.Base
	for i := 1; i < attempts; i++ {
		if b.Max > 0 && d >= b.Max {
			break
		}
		if d > math.MaxInt64/2 {
			break
		}
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

// due reports whether rec may be attempted at now.
func (b Backoff) due(rec *models.CapturedRecord, now time.Time) bool {
	if rec.LastAttemptAt == nil {
		return true
	}
	return !now.Before(rec.LastAttemptAt.Add(b.Delay(rec.SyncAttempts)))
}

// SyncStore is everything a sync pass reads and writes locally.
type SyncStore interface {
	RecordStore
	OperationStore
}

// SyncOrchestrator pushes unsynced records to the backend. At most one
// pass runs at a time; a pass requested while another is running returns
// immediately with PassSkippedBusy.
type SyncOrchestrator struct {
	store   SyncStore
	remote  client.Client
	session SessionAuthenticator
	net     Connectivity
	log     logging.Logger
	now     func() time.Time

	lock    *sync.Mutex
	backoff Backoff

	pending  atomic.Bool
	observer func(bool)
}

// SyncOption configures a SyncOrchestrator.
type SyncOption func(*SyncOrchestrator)

// WithSyncClock overrides time.Now for attempt and backoff timestamps.
func WithSyncClock(now func() time.Time) SyncOption {
	return func(o *SyncOrchestrator) { o.now = now }
}

// WithLock shares the pass lock with other maintenance work, such as
// housekeeping.
func WithLock(mu *sync.Mutex) SyncOption {
	return func(o *SyncOrchestrator) { o.lock = mu }
}

// WithBackoff enables delayed retries of failing records. See Backoff.
func WithBackoff(b Backoff) SyncOption {
	return func(o *SyncOrchestrator) { o.backoff = b }
}

// WithPendingObserver registers fn to receive the pending flag after every
// pass that reached the store.
func WithPendingObserver(fn func(bool)) SyncOption {
	return func(o *SyncOrchestrator) { o.observer = fn }
}

// NewSyncOrchestrator builds an orchestrator over store and remote. session
// is consulted once per pass before anything is sent, and net decides
// whether a pass is attempted at all. Without WithLock the orchestrator
// uses a private lock.
func NewSyncOrchestrator(store SyncStore, remote client.Client, session SessionAuthenticator, net Connectivity, log logging.Logger, opts ...SyncOption) *SyncOrchestrator {
	o := &SyncOrchestrator{
		store:   store,
		remote:  remote,
		session: session,
		net:     net,
		log:     log.With("component", "sync"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.lock == nil {
		o.lock = &sync.Mutex{}
	}
	return o
}

// HasPending reports whether unsynced records remained after the last pass.
func (o *SyncOrchestrator) HasPending() bool {
	return o.pending.Load()
}

// RunPass performs one sync pass. Records are pushed one at a time; a
// failing record is marked and the pass moves on. Cancelling ctx stops the
// pass between records but never interrupts a push already in flight.
func (o *SyncOrchestrator) RunPass(ctx context.Context) (res PassResult) {
	res.StartedAt = o.now()

	if !o.lock.TryLock() {
		res.Status = PassSkippedBusy
		res.Err = common.ErrPassInProgress
		o.log.Debug(ctx, "sync pass skipped, another pass is running")
		return res
	}
	defer o.lock.Unlock()

	defer func() {
		res.Duration = o.now().Sub(res.StartedAt)
		metrics.SyncPasses.WithLabelValues(string(res.Status)).Inc()
		o.log.Info(ctx, "sync pass finished",
			"status", string(res.Status),
			"summary", res.Summary(),
			"deferred", res.Deferred,
			"duration", res.Duration.String(),
		)
	}()

	if !o.net.Online(ctx) {
		res.Status = PassSkippedOffline
		o.refreshPending(ctx, &res)
		return res
	}

	records, err := o.store.ListUnsyncedRecords(ctx)
	if err != nil {
		res.Status = PassStorageFailed
		res.Err = err
		return res
	}
	ops, err := o.store.ListOperations(ctx)
	if err != nil {
		res.Status = PassStorageFailed
		res.Err = err
		return res
	}
	if len(records) == 0 && len(ops) == 0 {
		res.Status = PassNothingToDo
		o.refreshPending(ctx, &res)
		return res
	}

	if err := o.session.EnsureAuthenticated(ctx); err != nil {
		res.Status = PassAuthFailed
		res.Err = err
		o.log.Warn(ctx, "sync pass aborted, not authenticated", "error", err)
		o.refreshPending(ctx, &res)
		return res
	}

	res.Status = PassCompleted
	for _, rec := range records {
		if ctx.Err() != nil {
			res.Status = PassCancelled
			res.Err = ctx.Err()
			break
		}
		o.pushRecord(ctx, rec, &res)
	}

	if res.Status == PassCompleted {
		o.drainOperations(ctx, ops, &res)
	}

	o.refreshPending(ctx, &res)
	return res
}

func (o *SyncOrchestrator) pushRecord(ctx context.Context, rec *models.CapturedRecord, res *PassResult) {
	log := o.log.With("local_id", rec.LocalID)

	if !o.backoff.due(rec, o.now()) {
		res.Deferred++
		metrics.RecordPushes.WithLabelValues(metrics.OutcomeDeferred).Inc()
		return
	}

	// The in-flight push is detached from cancellation so it either lands
	// and gets marked or fails and gets recorded.
	ctx = context.WithoutCancel(ctx)

	ok, err := o.store.RecordSyncAttempt(ctx, rec.LocalID)
	if err != nil {
		log.Error(ctx, "failed to record sync attempt", "error", err)
		res.Failed++
		return
	}
	if !ok {
		log.Warn(ctx, "record disappeared before push")
		return
	}
	res.Attempted++

	remoteID, err := o.remote.Create(ctx, client.ObjectCapture, client.NewRecordPayload(rec))
	if err != nil {
		res.Failed++
		metrics.RecordPushes.WithLabelValues(metrics.OutcomeFailed).Inc()
		log.Warn(ctx, "record push failed", "error", err, "transient", client.IsTransient(err))
		if _, merr := o.store.MarkRecordError(ctx, rec.LocalID, err.Error()); merr != nil {
			log.Error(ctx, "failed to store sync error", "error", merr)
		}
		return
	}

	res.AttachmentFailures += o.uploadAttachments(ctx, log, remoteID, rec.Attachments)

	if _, err := o.store.MarkRecordSynced(ctx, rec.LocalID, remoteID); err != nil {
		// The backend has the record; Device_Record_Id__c lets it spot the
		// duplicate when this record is pushed again.
		res.Failed++
		log.Error(ctx, "record pushed but not marked synced", "remote_id", remoteID, "error", err)
		return
	}

	res.Synced++
	metrics.RecordPushes.WithLabelValues(metrics.OutcomeSucceeded).Inc()
	log.Debug(ctx, "record synced", "remote_id", remoteID)
}

// uploadAttachments sends each file under parentID and returns the number
// of failures. Failures do not affect the record's sync state.
func (o *SyncOrchestrator) uploadAttachments(ctx context.Context, log logging.Logger, parentID string, paths []string) int {
	failed := 0
	for _, p := range paths {
		att, err := filex.ReadAttachment(p)
		if err == nil {
			_, err = o.remote.UploadAttachment(ctx, parentID, att.Name, att.Data, att.ContentType)
		}
		if err != nil {
			failed++
			metrics.AttachmentUploads.WithLabelValues(metrics.OutcomeFailed).Inc()
			log.Warn(ctx, "attachment upload failed", "path", p, "error", err)
			continue
		}
		metrics.AttachmentUploads.WithLabelValues(metrics.OutcomeSucceeded).Inc()
	}
	return failed
}

func (o *SyncOrchestrator) drainOperations(ctx context.Context, ops []*models.PendingOperation, res *PassResult) {
	for _, op := range ops {
		if ctx.Err() != nil {
			return
		}
		err := o.sendOperation(context.WithoutCancel(ctx), op)
		if err == nil {
			if derr := o.store.DeleteOperation(ctx, op.ID); derr != nil {
				o.log.Error(ctx, "failed to remove sent operation", "id", op.ID, "error", derr)
			}
			res.OperationsSent++
			continue
		}

		res.OperationsFailed++
		o.log.Warn(ctx, "pending operation failed", "id", op.ID, "object", op.ObjectKind, "error", err)
		if ferr := o.store.RecordOperationFailure(ctx, op.ID, err.Error()); ferr != nil {
			o.log.Error(ctx, "failed to record operation failure", "id", op.ID, "error", ferr)
		}
	}
}

var errUnknownOperation = errors.New("unknown operation kind")

func (o *SyncOrchestrator) sendOperation(ctx context.Context, op *models.PendingOperation) error {
	switch op.Kind {
	case models.OpUpdate:
		return o.remote.Update(ctx, op.ObjectKind, op.RemoteID, op.Payload)
	default:
		return fmt.Errorf("%w: %q", errUnknownOperation, op.Kind)
	}
}

func (o *SyncOrchestrator) refreshPending(ctx context.Context, res *PassResult) {
	ctx = context.WithoutCancel(ctx)
	n, err := o.store.CountUnsynced(ctx)
	if err != nil {
		o.log.Warn(ctx, "failed to count unsynced records", "error", err)
		return
	}
	res.Pending = n
	metrics.PendingRecords.Set(float64(n))

	o.pending.Store(n > 0)
	if o.observer != nil {
		o.observer(n > 0)
	}
}
