// Package app contains the application services: the use cases that drive
// the report entity through the ports.
//
// What belongs here: sequencing of storage and image operations, rollback
// of partial work, logging and metrics around each use case.
//
// What does NOT: HTTP specifics (adapters/http), SQL (adapters/persistence)
// or the rating rules themselves (domain).
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	reqctx "github.com/gourmetlog/report-service/internal/app/context"
	"github.com/gourmetlog/report-service/internal/domain"
	"github.com/gourmetlog/report-service/internal/platform/logging"
	"github.com/gourmetlog/report-service/internal/ports"
)

const (
	cleanupStageDelete   = "delete"
	cleanupStageRollback = "rollback"

	// DefaultBulkDeleteLimit bounds concurrent deletes in DeleteReports.
	DefaultBulkDeleteLimit = 4
)

// CreateReportCommand is a new submission. Image is nil when no photo was
// attached.
type CreateReportCommand struct {
	Input domain.ReportInput
	Image *ports.Image
}

// Overview summarizes the store for operators.
type Overview struct {
	Reports int64
	Health  *ports.HealthResult
}

// ReportServiceConfig wires a ReportService. Repository, Images and IDs are
// required.
type ReportServiceConfig struct {
	Repository ports.ReportRepository
	Images     ports.ImageStore
	IDs        domain.IDGenerator
	Metrics    ports.ReportMetrics
	Health     ports.HealthRegistry
	Logger     *slog.Logger
}

// ReportService implements the report use cases.
type ReportService struct {
	repo     ports.ReportRepository
	images   ports.ImageStore
	ids      domain.IDGenerator
	metrics  ports.ReportMetrics
	health   ports.HealthRegistry
	logger   *slog.Logger
	executor *Executor
}

// NewReportService creates the service. It panics when a required
// dependency is missing.
func NewReportService(cfg ReportServiceConfig) *ReportService {
	switch {
	case cfg.Repository == nil:
		panic("app: ReportServiceConfig.Repository is required")
	case cfg.Images == nil:
		panic("app: ReportServiceConfig.Images is required")
	case cfg.IDs == nil:
		panic("app: ReportServiceConfig.IDs is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	logger = logger.With(slog.String("component", "app.ReportService"))

	return &ReportService{
		repo:     cfg.Repository,
		images:   cfg.Images,
		ids:      cfg.IDs,
		metrics:  metrics,
		health:   cfg.Health,
		logger:   logger,
		executor: NewExecutor(logger),
	}
}

// CreateReport validates the submission, uploads the photo if there is one,
// and stores the report. Validation failures happen before any side effect.
// When the insert fails, the uploaded photo is removed again.
func (s *ReportService) CreateReport(ctx context.Context, cmd CreateReportCommand) (string, error) {
	draft, err := domain.NewReport(s.ids, cmd.Input)
	if err != nil {
		return "", fmt.Errorf("creating report: %w", err)
	}

	logger := logging.FromContextOr(ctx, s.logger).With(slog.String("report_id", draft.ID()))
	ctx = logging.WithContext(ctx, logger)

	withImage := cmd.Image != nil && cmd.Image.Size > 0
	rc := reqctx.New(ctx)
	save := &saveReportAction{repo: s.repo, draft: draft}

	if withImage {
		upload := &uploadImageAction{images: s.images, metrics: s.metrics, image: *cmd.Image}
		save.upload = upload

		if err := rc.AddAction(upload); err != nil {
			return "", fmt.Errorf("staging image upload: %w", err)
		}
	}

	if err := rc.AddAction(save); err != nil {
		return "", fmt.Errorf("staging report insert: %w", err)
	}

	if err := rc.Commit(ctx); err != nil {
		logger.ErrorContext(ctx, "failed to create report", slog.Any("error", err))
		return "", fmt.Errorf("creating report: %w", err)
	}

	s.metrics.ReportCreated(ctx, withImage)
	logger.InfoContext(ctx, "report created", slog.Bool("with_image", withImage))

	return draft.ID(), nil
}

// ListReports returns every report, newest first.
func (s *ReportService) ListReports(ctx context.Context) ([]*domain.Report, error) {
	reports, err := s.repo.FindAll(ctx)
	if err != nil {
		logging.FromContextOr(ctx, s.logger).ErrorContext(ctx, "failed to list reports", slog.Any("error", err))
		return nil, fmt.Errorf("listing reports: %w", err)
	}

	return reports, nil
}

// GetReport returns one report or a NotFoundError.
func (s *ReportService) GetReport(ctx context.Context, id string) (*domain.Report, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.NewValidationError("id", "is required")
	}

	report, found, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting report %q: %w", id, err)
	}

	if !found {
		return nil, domain.NewNotFoundError("report", id)
	}

	return report, nil
}

// DeleteReport removes a report and, best effort, its photo. A photo that
// cannot be removed is logged and counted but does not stop the delete.
func (s *ReportService) DeleteReport(ctx context.Context, id string) error {
	logger := logging.FromContextOr(ctx, s.logger).With(slog.String("report_id", id))
	ctx = logging.WithContext(ctx, logger)

	rc := reqctx.New(ctx)
	ctx = reqctx.WithContext(ctx, rc)

	lookup := func(ctx context.Context) (*domain.Report, error) {
		return reqctx.Fetch(rc, "report:"+id, func(ctx context.Context) (*domain.Report, error) {
			return s.GetReport(ctx, id)
		})
	}

	_, err := Execute(ctx, s.executor, Operation[string, bool, struct{}, struct{}]{
		Name: "delete_report",
		Validate: func(ctx context.Context, _ string) error {
			_, err := lookup(ctx)
			return err
		},
		Perform: func(ctx context.Context, id string) (bool, error) {
			report, err := lookup(ctx)
			if err != nil {
				return false, err
			}

			s.removeImage(ctx, report)

			return s.repo.Delete(ctx, id)
		},
		Verify: func(_ context.Context, id string, removed bool) (struct{}, error) {
			if !removed {
				return struct{}{}, domain.NewNotFoundError("report", id)
			}

			return struct{}{}, nil
		},
		Archive: func(ctx context.Context, _ string, _ struct{}) error {
			s.metrics.ReportDeleted(ctx)
			return nil
		},
	}, id)
	if err != nil {
		return fmt.Errorf("deleting report %q: %w", id, err)
	}

	return nil
}

// DeleteReports deletes several reports concurrently. The returned errors
// line up with ids; a nil entry means that report was deleted.
func (s *ReportService) DeleteReports(ctx context.Context, ids []string) []error {
	fns := make([]func(context.Context) (struct{}, error), len(ids))

	for i, id := range ids {
		fns[i] = func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.DeleteReport(ctx, id)
		}
	}

	results := ParallelPartialLimit(ctx, DefaultBulkDeleteLimit, fns...)

	errs := make([]error, len(results))
	for i, r := range results {
		errs[i] = r.Err
	}

	return errs
}

// Overview counts reports and runs the health checks concurrently.
func (s *ReportService) Overview(ctx context.Context) (*Overview, error) {
	count, health, err := Parallel2(ctx,
		func(ctx context.Context) (int64, error) {
			return s.repo.Count(ctx)
		},
		func(ctx context.Context) (*ports.HealthResult, error) {
			if s.health == nil {
				return nil, nil
			}

			return s.health.CheckAll(ctx), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("building overview: %w", err)
	}

	return &Overview{Reports: count, Health: health}, nil
}

func (s *ReportService) removeImage(ctx context.Context, report *domain.Report) {
	url, ok := report.ImageURL()
	if !ok || url == "" {
		return
	}

	logger := logging.FromContextOr(ctx, s.logger)

	if err := s.images.Delete(ctx, url); err != nil {
		s.metrics.ImageCleanupFailed(ctx, cleanupStageDelete)
		logger.WarnContext(ctx, "failed to delete report image, continuing",
			slog.String("image_url", url),
			slog.Any("error", err),
		)

		return
	}

	logger.DebugContext(ctx, "report image deleted", slog.String("image_url", url))
}

type noopMetrics struct{}

func (noopMetrics) ReportCreated(context.Context, bool) {}

func (noopMetrics) ReportDeleted(context.Context) {}

func (noopMetrics) ImageCleanupFailed(context.Context, string) {}
