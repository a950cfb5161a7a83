package imagestore

import (
	"context"

	"github.com/gourmetlog/report-service/internal/domain"
	"github.com/gourmetlog/report-service/internal/ports"
)

// Disabled is used when no bucket is configured.
type Disabled struct{}

var _ ports.ImageStore = Disabled{}

// Put always fails with an UnavailableError.
func (Disabled) Put(context.Context, ports.Image) (string, error) {
	return "", domain.NewUnavailableError("image-store", "image uploads are disabled")
}

// Delete does nothing.
func (Disabled) Delete(context.Context, string) error { return nil }
