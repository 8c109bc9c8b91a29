package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/metrics"
)

// Archiver keeps a copy of an attachment before its local file goes away.
type Archiver interface {
	Archive(ctx context.Context, localID int64, att *filex.Attachment) (string, error)
}

type CleanupResult struct {
	Deleted  int
	Archived int
	// Kept counts records left in place because archiving failed.
	Kept int
}

// Housekeeper removes synced records older than the retention period,
// together with the attachment files the engine owns.
type Housekeeper struct {
	store          RecordStore
	log            logging.Logger
	now            func() time.Time
	lock           *sync.Mutex
	retention      time.Duration
	attachmentsDir string
	archiver       Archiver
}

type HousekeepingOption func(*Housekeeper)

func WithHousekeepingClock(now func() time.Time) HousekeepingOption {
	return func(h *Housekeeper) { h.now = now }
}

// WithHousekeepingLock shares the lock used by the sync orchestrator, so
// cleanup never runs during a pass.
func WithHousekeepingLock(mu *sync.Mutex) HousekeepingOption {
	return func(h *Housekeeper) { h.lock = mu }
}

// WithManagedAttachments limits file removal to paths under dir.
func WithManagedAttachments(dir string) HousekeepingOption {
	return func(h *Housekeeper) { h.attachmentsDir = dir }
}

func WithArchiver(a Archiver) HousekeepingOption {
	return func(h *Housekeeper) { h.archiver = a }
}

// NewHousekeeper returns a Housekeeper. A retention of zero or less
// disables cleanup.
func NewHousekeeper(store RecordStore, retention time.Duration, log logging.Logger, opts ...HousekeepingOption) *Housekeeper {
	h := &Housekeeper{
		store:     store,
		log:       log.With("component", "housekeeping"),
		now:       time.Now,
		retention: retention,
	}
	for _, o := range opts {
		o(h)
	}
	if h.lock == nil {
		h.lock = &sync.Mutex{}
	}
	return h
}

// Cleanup deletes synced records whose sync time is older than the
// retention period. Unsynced records are never touched.
func (h *Housekeeper) Cleanup(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult
	if h.retention <= 0 {
		return res, nil
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	cutoff := h.now().Add(-h.retention)
	records, err := h.store.ListSyncedBefore(ctx, cutoff)
	if err != nil {
		return res, fmt.Errorf("list synced records: %w", err)
	}

	var expired []*models.CapturedRecord
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		archived, err := h.archive(ctx, rec)
		res.Archived += archived
		if err != nil {
			res.Kept++
			h.log.Warn(ctx, "archive failed, keeping record", "local_id", rec.LocalID, "error", err)
			continue
		}
		expired = append(expired, rec)
	}

	ids := make([]int64, len(expired))
	for i, rec := range expired {
		ids[i] = rec.LocalID
	}
	n, err := h.store.DeleteRecords(ctx, ids)
	if err != nil {
		return res, fmt.Errorf("delete %d records: %w", len(ids), err)
	}
	res.Deleted = n
	metrics.CleanupDeleted.Add(float64(n))

	// Files go only once their rows are gone.
	for _, rec := range expired {
		h.removeFiles(ctx, rec)
	}

	if len(records) > 0 {
		h.log.Info(ctx, "cleanup finished",
			"deleted", res.Deleted,
			"archived", res.Archived,
			"kept", res.Kept,
		)
	}
	return res, nil
}

func (h *Housekeeper) archive(ctx context.Context, rec *models.CapturedRecord) (int, error) {
	if h.archiver == nil {
		return 0, nil
	}

	n := 0
	for _, p := range rec.Attachments {
		if !filex.Exists(p) {
			continue
		}
		att, err := filex.ReadAttachment(p)
		if err != nil {
			return n, err
		}
		if _, err := h.archiver.Archive(ctx, rec.LocalID, att); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (h *Housekeeper) removeFiles(ctx context.Context, rec *models.CapturedRecord) {
	for _, p := range rec.Attachments {
		if !filex.Within(p, h.attachmentsDir) {
			continue
		}
		if err := filex.RemoveQuietly(p); err != nil {
			h.log.Warn(ctx, "failed to remove attachment", "path", p, "error", err)
		}
	}
}
