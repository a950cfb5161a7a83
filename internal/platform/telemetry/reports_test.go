package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewReportMetrics(reg)
	require.NoError(t, err)

	ctx := context.Background()
	m.ReportCreated(ctx, true)
	m.ReportCreated(ctx, false)
	m.ReportCreated(ctx, false)
	m.ReportDeleted(ctx)
	m.ImageCleanupFailed(ctx, "delete")

	assert.InDelta(t, 1, testutil.ToFloat64(m.promCreated.WithLabelValues("true")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.promCreated.WithLabelValues("false")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.promDeleted), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.promCleanupFailures.WithLabelValues("delete")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.promCleanupFailures.WithLabelValues("rollback")), 0)
}

func TestReportMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := NewReportMetrics(reg)
	require.NoError(t, err)

	_, err = NewReportMetrics(reg)
	require.Error(t, err)
}

func TestReportMetrics_NilIsNoop(t *testing.T) {
	var m *ReportMetrics

	assert.NotPanics(t, func() {
		m.ReportCreated(context.Background(), true)
		m.ReportDeleted(context.Background())
		m.ImageCleanupFailed(context.Background(), "rollback")
	})
}

func TestNew_DisabledIsNoop(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	assert.NoError(t, p.Shutdown(context.Background()))
}
