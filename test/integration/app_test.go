//go:build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gourmetlog/report-service/internal/adapters/http/handlers"
	"github.com/gourmetlog/report-service/internal/adapters/imagestore"
	"github.com/gourmetlog/report-service/internal/adapters/persistence"
	"github.com/gourmetlog/report-service/internal/app"
	"github.com/gourmetlog/report-service/internal/platform/database"
	"github.com/gourmetlog/report-service/internal/platform/idgen"
	"github.com/gourmetlog/report-service/internal/platform/token"
	"github.com/gourmetlog/report-service/internal/ports"

	httpserver "github.com/gourmetlog/report-service/internal/adapters/http"
)

const (
	testAdminEmail = "admin@example.com"
	testSecret     = "integration-secret-0123456789"
	testBucket     = "reports"
)

// fakeBucket is a path-style S3 endpoint that keeps objects in memory.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]int
	server  *httptest.Server
}

func newFakeBucket() *fakeBucket {
	b := &fakeBucket{objects: make(map[string]int)}
	b.server = httptest.NewServer(http.HandlerFunc(b.serve))

	return b
}

func (b *fakeBucket) serve(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/"+testBucket)
	key = strings.TrimPrefix(key, "/")

	b.mu.Lock()
	defer b.mu.Unlock()

	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		n, _ := io.Copy(io.Discard, r.Body)
		b.objects[key] = int(n)
		w.Header().Set("ETag", `"integration"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(b.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (b *fakeBucket) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.objects)
}

// reportAPI is the whole service running in-process over SQLite and a fake
// bucket.
type reportAPI struct {
	server  *httptest.Server
	bucket  *fakeBucket
	reports *app.ReportService
	tokens  *token.Service
	close   func()
}

func newReportAPI(ctx context.Context) (*reportAPI, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.Open(database.Config{
		Driver:       database.DriverSQLite,
		DSN:          "file::memory:",
		MaxOpenConns: 1,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := persistence.Migrate(ctx, db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrating: %w", err)
	}

	bucket := newFakeBucket()

	images, err := imagestore.New(ctx, imagestore.Config{
		Bucket:          testBucket,
		Endpoint:        bucket.server.URL,
		Region:          "auto",
		PublicBaseURL:   "https://images.example.com",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		UsePathStyle:    true,
		MaxSize:         1 << 20,
	})
	if err != nil {
		bucket.server.Close()
		_ = database.Close(db)

		return nil, fmt.Errorf("building image store: %w", err)
	}

	ids, err := idgen.New(idgen.StrategyV7)
	if err != nil {
		return nil, err
	}

	registry := ports.NewHealthRegistry(ports.WithCheckTimeout(2 * time.Second))
	_ = registry.Register(database.NewHealthChecker(db))
	_ = registry.Register(images)

	tokens := token.New(testSecret, "report-service", time.Hour)

	reports := app.NewReportService(app.ReportServiceConfig{
		Repository: persistence.NewReportRepository(db),
		Images:     images,
		IDs:        ids,
		Health:     registry,
		Logger:     logger,
	})
	auth := app.NewAuthService(app.AuthServiceConfig{
		Tokens:       tokens,
		AllowedEmail: testAdminEmail,
		Logger:       logger,
	})

	engine := httpserver.NewEngine()
	httpserver.SetupRouter(engine, httpserver.RouterConfig{
		Logger:         logger,
		AllowedOrigins: []string{"http://localhost:3000"},
		MaxRequestSize: 2 << 20,
		Authorizer:     auth,
		HealthHandler:  handlers.NewHealthHandler(registry, handlers.NewBuildInfo("integration", "none", "")),
		ReportHandler:  handlers.NewReportHandler(reports),
		AuthHandler:    handlers.NewAuthHandler(auth),
		Timeout:        10 * time.Second,
	})

	server := httptest.NewServer(engine)

	return &reportAPI{
		server:  server,
		bucket:  bucket,
		reports: reports,
		tokens:  tokens,
		close: func() {
			server.Close()
			bucket.server.Close()
			_ = database.Close(db)
		},
	}, nil
}
