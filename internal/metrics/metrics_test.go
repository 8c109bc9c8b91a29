package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { RegisterCollectors(reg) })
	require.Panics(t, func() { RegisterCollectors(reg) }, "double registration must fail")

	before := testutil.ToFloat64(RecordPushes.WithLabelValues(OutcomeFailed))
	RecordPushes.WithLabelValues(OutcomeFailed).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RecordPushes.WithLabelValues(OutcomeFailed)))

	PendingRecords.Set(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(PendingRecords))

	n, err := testutil.GatherAndCount(reg, "fieldsync_pending_records")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
