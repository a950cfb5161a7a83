package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ReportMetrics counts report lifecycle events. Every event goes to the
// OpenTelemetry meter and to a Prometheus registry, so it shows up both in
// OTLP exports and at /-/metrics. A nil *ReportMetrics records nothing.
type ReportMetrics struct {
	created         metric.Int64Counter
	deleted         metric.Int64Counter
	cleanupFailures metric.Int64Counter

	promCreated         *prometheus.CounterVec
	promDeleted         prometheus.Counter
	promCleanupFailures *prometheus.CounterVec
}

// NewReportMetrics registers the report counters with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewReportMetrics(reg prometheus.Registerer) (*ReportMetrics, error) {
	meter := otel.Meter(instrumentationName)

	created, err := meter.Int64Counter("reports.created", metric.WithDescription("Reports stored"))
	if err != nil {
		return nil, err
	}

	deleted, err := meter.Int64Counter("reports.deleted", metric.WithDescription("Reports removed"))
	if err != nil {
		return nil, err
	}

	cleanupFailures, err := meter.Int64Counter(
		"reports.image_cleanup_failures",
		metric.WithDescription("Stored images that could not be removed"),
	)
	if err != nil {
		return nil, err
	}

	m := &ReportMetrics{
		created:         created,
		deleted:         deleted,
		cleanupFailures: cleanupFailures,
		promCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reports_created_total",
			Help: "Reports stored, by whether a photo was attached.",
		}, []string{"with_image"}),
		promDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reports_deleted_total",
			Help: "Reports removed.",
		}),
		promCleanupFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reports_image_cleanup_failures_total",
			Help: "Stored images that could not be removed, by stage.",
		}, []string{"stage"}),
	}

	for _, c := range []prometheus.Collector{m.promCreated, m.promDeleted, m.promCleanupFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// ReportCreated counts a stored report.
func (m *ReportMetrics) ReportCreated(ctx context.Context, withImage bool) {
	if m == nil {
		return
	}

	label := "false"
	if withImage {
		label = "true"
	}

	m.created.Add(ctx, 1, metric.WithAttributes(attribute.Bool("with_image", withImage)))
	m.promCreated.WithLabelValues(label).Inc()
}

// ReportDeleted counts a removed report.
func (m *ReportMetrics) ReportDeleted(ctx context.Context) {
	if m == nil {
		return
	}

	m.deleted.Add(ctx, 1)
	m.promDeleted.Inc()
}

// ImageCleanupFailed counts an image left behind. stage is "delete" when a
// report was removed and "rollback" when a failed create could not undo its
// upload.
func (m *ReportMetrics) ImageCleanupFailed(ctx context.Context, stage string) {
	if m == nil {
		return
	}

	m.cleanupFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
	m.promCleanupFailures.WithLabelValues(stage).Inc()
}
