// Package metrics holds the Prometheus collectors of the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeDeferred  = "deferred"
)

var (
	SyncPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fieldsync", Name: "sync_passes_total", Help: "Sync passes by final status."},
		[]string{"status"},
	)
	RecordPushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fieldsync", Name: "record_pushes_total", Help: "Record push attempts by outcome."},
		[]string{"outcome"},
	)
	AttachmentUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fieldsync", Name: "attachment_uploads_total", Help: "Attachment uploads by outcome."},
		[]string{"outcome"},
	)
	PendingRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "fieldsync", Name: "pending_records", Help: "Unsynced records after the last pass."},
	)
	AuthRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fieldsync", Name: "auth_refreshes_total", Help: "Token exchanges by outcome."},
		[]string{"outcome"},
	)
	CleanupDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "fieldsync", Name: "cleanup_deleted_records_total", Help: "Synced records removed by housekeeping."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(SyncPasses)
	reg.MustRegister(RecordPushes)
	reg.MustRegister(AttachmentUploads)
	reg.MustRegister(PendingRecords)
	reg.MustRegister(AuthRefreshes)
	reg.MustRegister(CleanupDeleted)
}
