// Package bootstrap assembles the report service from configuration. Both
// the HTTP server and reportctl build their dependencies here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/gourmetlog/report-service/internal/adapters/imagestore"
	"github.com/gourmetlog/report-service/internal/adapters/persistence"
	"github.com/gourmetlog/report-service/internal/app"
	"github.com/gourmetlog/report-service/internal/platform/config"
	"github.com/gourmetlog/report-service/internal/platform/database"
	"github.com/gourmetlog/report-service/internal/platform/idgen"
	"github.com/gourmetlog/report-service/internal/platform/logging"
	"github.com/gourmetlog/report-service/internal/platform/telemetry"
	"github.com/gourmetlog/report-service/internal/platform/token"
	"github.com/gourmetlog/report-service/internal/ports"
)

// Options tune what Build wires.
type Options struct {
	// Registerer receives the report metrics. Nil disables them.
	Registerer prometheus.Registerer

	// SkipMigrate leaves the schema alone even when auto_migrate is set.
	SkipMigrate bool
}

// Deps is the assembled service.
type Deps struct {
	DB      *gorm.DB
	Health  *ports.DefaultHealthRegistry
	Reports *app.ReportService
	Auth    *app.AuthService
}

// Close releases the database pool.
func (d *Deps) Close() error {
	return database.Close(d.DB)
}

// LoadConfig loads and validates the configuration for profile.
func LoadConfig(profile string) (*config.Config, error) {
	cfg, err := config.Load(profile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// NewLogger builds the service logger from cfg.
func NewLogger(cfg *config.Config) *slog.Logger {
	return logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
}

// Build opens the database, migrates it when configured, and wires the
// services on top.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Deps, error) {
	db, err := database.Open(database.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	deps, err := build(ctx, cfg, logger, opts, db)
	if err != nil {
		return nil, errors.Join(err, database.Close(db))
	}

	return deps, nil
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options, db *gorm.DB) (*Deps, error) {
	if cfg.Database.AutoMigrate && !opts.SkipMigrate {
		if err := persistence.Migrate(ctx, db); err != nil {
			return nil, fmt.Errorf("migrating database: %w", err)
		}

		logger.Info("database schema up to date", slog.String("driver", cfg.Database.Driver))
	}

	health := ports.NewHealthRegistry()
	if err := health.Register(database.NewHealthChecker(db)); err != nil {
		return nil, fmt.Errorf("registering database health check: %w", err)
	}

	images, err := newImageStore(ctx, cfg.Images, health)
	if err != nil {
		return nil, err
	}

	ids, err := idgen.New(cfg.IDs.Strategy)
	if err != nil {
		return nil, fmt.Errorf("creating id generator: %w", err)
	}

	var metrics ports.ReportMetrics

	if opts.Registerer != nil {
		m, err := telemetry.NewReportMetrics(opts.Registerer)
		if err != nil {
			return nil, fmt.Errorf("registering report metrics: %w", err)
		}

		metrics = m
	}

	reports := app.NewReportService(app.ReportServiceConfig{
		Repository: persistence.NewReportRepository(db),
		Images:     images,
		IDs:        ids,
		Metrics:    metrics,
		Health:     health,
		Logger:     logger,
	})

	auth := app.NewAuthService(app.AuthServiceConfig{
		Tokens:       token.New(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		AllowedEmail: cfg.Auth.AllowedEmail,
		Logger:       logger,
	})

	return &Deps{DB: db, Health: health, Reports: reports, Auth: auth}, nil
}

func newImageStore(ctx context.Context, cfg config.ImagesConfig, health *ports.DefaultHealthRegistry) (ports.ImageStore, error) {
	if !cfg.Enabled {
		return imagestore.Disabled{}, nil
	}

	store, err := imagestore.New(ctx, imagestore.Config{
		Bucket:          cfg.Bucket,
		Endpoint:        cfg.Endpoint,
		Region:          cfg.Region,
		PublicBaseURL:   cfg.PublicBaseURL,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		UsePathStyle:    cfg.UsePathStyle,
		MaxSize:         cfg.MaxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("creating image store: %w", err)
	}

	if err := health.Register(store); err != nil {
		return nil, fmt.Errorf("registering image store health check: %w", err)
	}

	return store, nil
}
