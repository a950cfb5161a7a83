// Package ports defines the contracts the application layer depends on.
// Adapters implement them; the app package never imports an adapter.
//
// Every method takes a context first so adapters can honor deadlines and
// cancellation, and every method speaks in domain types.
package ports

import (
	"context"
	"io"

	"github.com/gourmetlog/report-service/internal/domain"
)

// ReportRepository persists reports.
//
// A missing report is not an error: FindByID reports it through found and
// Delete through removed. Storage failures come back as *domain.StorageError
// and are never retried.
type ReportRepository interface {
	// Save inserts the report as a new row.
	Save(ctx context.Context, report *domain.Report) error

	// FindByID loads one report. found is false when no row has that id.
	FindByID(ctx context.Context, id string) (report *domain.Report, found bool, err error)

	// FindAll loads every report, newest first.
	FindAll(ctx context.Context) ([]*domain.Report, error)

	// Delete removes the row with that id. It does not touch stored images.
	Delete(ctx context.Context, id string) (removed bool, err error)

	// Count returns the number of stored reports.
	Count(ctx context.Context) (int64, error)
}

// Image is an uploaded photo on its way to the image store.
type Image struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ImageStore keeps report photos and hands back a public URL for each.
type ImageStore interface {
	// Put stores the image and returns the URL it can be fetched from.
	Put(ctx context.Context, image Image) (url string, err error)

	// Delete removes the object behind a URL previously returned by Put.
	Delete(ctx context.Context, url string) error
}

// TokenIssuer signs and verifies sign-in tokens.
type TokenIssuer interface {
	Issue(email string) (string, error)
	Verify(token string) (email string, err error)
}

// ReportMetrics counts report lifecycle events.
type ReportMetrics interface {
	ReportCreated(ctx context.Context, withImage bool)
	ReportDeleted(ctx context.Context)

	// ImageCleanupFailed counts a photo left in the store. stage is
	// "delete" or "rollback".
	ImageCleanupFailed(ctx context.Context, stage string)
}
