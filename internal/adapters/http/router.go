package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gourmetlog/report-service/internal/adapters/http/dto"
	"github.com/gourmetlog/report-service/internal/adapters/http/handlers"
	"github.com/gourmetlog/report-service/internal/adapters/http/middleware"
	"github.com/gourmetlog/report-service/internal/platform/telemetry"
)

// DefaultRequestTimeout is the default timeout for API requests.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	// Logger is the structured logger for request logging.
	Logger *slog.Logger

	// ServiceName names the server spans. Empty disables otelgin tracing.
	ServiceName string

	// AllowedOrigins lists browser origins allowed by CORS.
	AllowedOrigins []string

	// MaxRequestSize caps request bodies, photo uploads included.
	MaxRequestSize int64

	// Authorizer guards report writes.
	Authorizer middleware.Authorizer

	// HealthHandler handles health check endpoints.
	HealthHandler *handlers.HealthHandler

	// ReportHandler handles the report endpoints.
	ReportHandler *handlers.ReportHandler

	// AuthHandler handles sign-in.
	AuthHandler *handlers.AuthHandler

	// Timeout is the default request timeout.
	Timeout time.Duration
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Middleware is applied in the following order (first to last):
//  1. Recovery - catch panics first
//  2. Request ID - generate/extract request ID
//  3. Correlation ID - handle distributed tracing correlation
//  4. CORS - answer preflights before auth runs
//  5. OpenTelemetry - tracing and metrics
//  6. Logging - request logging (skips health endpoints)
//  7. Body limit and timeout - on /api/v1 only
//
// Route groups:
//   - /-/ (internal): Health endpoints, no auth required
//   - /api/v1/ (public API): report reads and sign-in are public, writes
//     need the administrator's bearer token
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	global := []gin.HandlerFunc{
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
		middleware.CORS(cfg.AllowedOrigins),
	}

	if cfg.ServiceName != "" {
		global = append(global, telemetry.TracingMiddleware(cfg.ServiceName))
	}

	global = append(global, telemetry.Middleware(), middleware.Logging(cfg.Logger))

	engine.Use(global...)

	engine.NoRoute(func(c *gin.Context) {
		dto.AbortWithErrorCode(c, dto.ErrorCodeNotFound, "route not found")
	})

	// Register health endpoints (no auth, no timeout for probes)
	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	apiV1 := engine.Group("/api/v1")
	apiV1.Use(middleware.BodyLimit(cfg.MaxRequestSize))

	if cfg.Timeout > 0 {
		apiV1.Use(middleware.Timeout(cfg.Timeout))
	}

	setupAPIRoutes(apiV1, cfg)
}

// setupAPIRoutes registers business API routes.
func setupAPIRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.AuthHandler != nil {
		cfg.AuthHandler.RegisterRoutes(rg)
	}

	if cfg.ReportHandler != nil {
		cfg.ReportHandler.RegisterRoutes(rg, guard(cfg.Authorizer))
	}
}

// guard refuses every write when no authorizer is configured.
func guard(authz middleware.Authorizer) gin.HandlerFunc {
	if authz == nil {
		return func(c *gin.Context) {
			dto.AbortWithErrorCode(c, dto.ErrorCodeUnauthorized, "writes are disabled")
		}
	}

	return middleware.RequireAdmin(authz)
}

// SetupMinimalRouter sets up a minimal router with just health endpoints.
// Useful for testing or lightweight deployments.
func SetupMinimalRouter(engine *gin.Engine, logger *slog.Logger, healthHandler *handlers.HealthHandler) {
	engine.Use(
		middleware.Recovery(logger),
		middleware.RequestID(),
	)

	if healthHandler != nil {
		healthHandler.RegisterHealthRoutesOnEngine(engine)
	}
}

// NewEngine returns a gin engine without gin's default middleware; the
// router installs its own.
func NewEngine() *gin.Engine {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.NoMethod(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed,
			dto.NewErrorResponse(dto.ErrorCodeBadRequest, "method not allowed").WithTraceID(dto.GetTraceID(c)))
	})

	return engine
}
