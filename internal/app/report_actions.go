package app

import (
	"context"
	"fmt"

	"github.com/gourmetlog/report-service/internal/domain"
	"github.com/gourmetlog/report-service/internal/ports"
)

// uploadImageAction puts the photo in the image store. Rolling it back
// deletes the object again.
type uploadImageAction struct {
	images  ports.ImageStore
	metrics ports.ReportMetrics
	image   ports.Image
	url     string
}

func (a *uploadImageAction) Execute(ctx context.Context) error {
	url, err := a.images.Put(ctx, a.image)
	if err != nil {
		return err
	}

	a.url = url

	return nil
}

func (a *uploadImageAction) Rollback(ctx context.Context) error {
	if a.url == "" {
		return nil
	}

	if err := a.images.Delete(ctx, a.url); err != nil {
		a.metrics.ImageCleanupFailed(ctx, cleanupStageRollback)
		return fmt.Errorf("removing uploaded image %q: %w", a.url, err)
	}

	return nil
}

func (a *uploadImageAction) Description() string {
	return "upload image " + a.image.Name
}

// saveReportAction inserts the report, carrying the URL of a photo staged
// before it.
type saveReportAction struct {
	repo   ports.ReportRepository
	draft  *domain.Report
	upload *uploadImageAction
}

func (a *saveReportAction) Execute(ctx context.Context) error {
	report, err := a.report()
	if err != nil {
		return err
	}

	return a.repo.Save(ctx, report)
}

// Rollback does nothing. The save is staged last, so nothing after it can
// fail, and deleting by id could remove an existing row after a duplicate-id
// insert failure.
func (a *saveReportAction) Rollback(context.Context) error {
	return nil
}

func (a *saveReportAction) Description() string {
	return "save report " + a.draft.ID()
}

func (a *saveReportAction) report() (*domain.Report, error) {
	if a.upload == nil || a.upload.url == "" {
		return a.draft, nil
	}

	in := a.draft.Input()
	in.ImageURL = &a.upload.url

	return domain.ReconstructReport(a.draft.ID(), in)
}
