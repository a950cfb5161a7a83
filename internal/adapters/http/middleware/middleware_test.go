package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gourmetlog/report-service/internal/domain"
	"github.com/gourmetlog/report-service/internal/platform/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

// TestIDMiddleware tests the RequestID and CorrelationID middleware.
func TestIDMiddleware(t *testing.T) {
	t.Parallel()

	middlewares := []struct {
		name   string
		mw     gin.HandlerFunc
		header string
		get    func(*gin.Context) string
	}{
		{"request id", RequestID(), HeaderRequestID, GetRequestID},
		{"correlation id", CorrelationID(), HeaderCorrelationID, GetCorrelationID},
	}

	tests := []struct {
		name         string
		incoming     string
		wantVerbatim bool
	}{
		{name: "generates when missing", incoming: "", wantVerbatim: false},
		{name: "passes valid id through", incoming: "upstream-123", wantVerbatim: true},
		{name: "replaces id with spaces", incoming: "bad id", wantVerbatim: false},
		{name: "replaces oversized id", incoming: strings.Repeat("a", maxIDLength+1), wantVerbatim: false},
	}

	for _, m := range middlewares {
		for _, tt := range tests {
			t.Run(m.name+"/"+tt.name, func(t *testing.T) {
				t.Parallel()

				var captured string

				router := gin.New()
				router.Use(m.mw)
				router.GET("/test", func(c *gin.Context) {
					captured = m.get(c)
					c.Status(http.StatusOK)
				})

				req := httptest.NewRequest(http.MethodGet, "/test", nil)
				if tt.incoming != "" {
					req.Header.Set(m.header, tt.incoming)
				}

				w := serve(router, req)

				assert.Equal(t, captured, w.Header().Get(m.header))

				if tt.wantVerbatim {
					assert.Equal(t, tt.incoming, captured)
					return
				}

				parsed, err := uuid.Parse(captured)
				require.NoError(t, err)
				assert.Equal(t, uuid.Version(7), parsed.Version())
			})
		}
	}
}

func TestValidID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   string
		want bool
	}{
		{"", false},
		{"abc-123", true},
		{"0190b6b4-8e6c-7d39-9f6a-5c0b1d2e3f40", true},
		{"with space", false},
		{"tab\there", false},
		{"newline\n", false},
		{"ünïcode", false},
		{strings.Repeat("x", maxIDLength), true},
		{strings.Repeat("x", maxIDLength+1), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, validID(tt.id), "validID(%q)", tt.id)
	}
}

func TestGetIDFromContext(t *testing.T) {
	t.Parallel()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Empty(t, getIDFromContext(c, "missing"))
	assert.Equal(t, "unknown", MustGetRequestID(c))
	assert.Equal(t, "unknown", MustGetCorrelationID(c))

	c.Set("number", 42)
	assert.Empty(t, getIDFromContext(c, "number"))

	c.Set(ContextKeyRequestID, "req-1")
	c.Set(ContextKeyCorrelationID, "corr-1")
	assert.Equal(t, "req-1", MustGetRequestID(c))
	assert.Equal(t, "corr-1", MustGetCorrelationID(c))
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), logger))
		c.Next()
	}, RequestID(), Recovery(logger))
	router.GET("/panic", func(*gin.Context) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(HeaderRequestID, "req-panic")

	w := serve(router, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"INTERNAL_ERROR"`)
	assert.Contains(t, w.Body.String(), `"traceId":"req-panic"`)
	assert.NotContains(t, w.Body.String(), "boom")
	assert.Contains(t, logs.String(), "panic recovered")
	assert.Contains(t, logs.String(), "boom")
	assert.Contains(t, logs.String(), `"request_id":"req-panic"`)
}

func TestRecovery_AfterWrite(t *testing.T) {
	t.Parallel()

	router := gin.New()
	router.Use(Recovery(discardLogger()))
	router.GET("/partial", func(c *gin.Context) {
		c.String(http.StatusAccepted, "partial")
		panic("late")
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/partial", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "partial", w.Body.String())
}

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel string
		wantLog   bool
	}{
		{name: "success", path: "/api/v1/reports", status: http.StatusOK, wantLevel: "INFO", wantLog: true},
		{name: "client error", path: "/api/v1/reports", status: http.StatusNotFound, wantLevel: "WARN", wantLog: true},
		{name: "server error", path: "/api/v1/reports", status: http.StatusInternalServerError, wantLevel: "ERROR", wantLog: true},
		{name: "health probe", path: "/-/live", status: http.StatusOK, wantLog: false},
		{name: "skipped path", path: "/favicon.ico", status: http.StatusOK, wantLog: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var logs bytes.Buffer

			router := gin.New()
			router.Use(Logging(slog.New(slog.NewJSONHandler(&logs, nil)), "/favicon.ico"))
			router.GET(tt.path, func(c *gin.Context) {
				c.Status(tt.status)
			})

			serve(router, httptest.NewRequest(http.MethodGet, tt.path+"?page=1", nil))

			if !tt.wantLog {
				assert.Empty(t, logs.String())
				return
			}

			out := logs.String()
			assert.Contains(t, out, "request started")
			assert.Contains(t, out, "request completed")
			assert.Contains(t, out, `"level":"`+tt.wantLevel+`"`)
			assert.Contains(t, out, `"route":"`+tt.path+`"`)
			assert.Contains(t, out, "page=1")
		})
	}
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	var hasDeadline, skippedHasDeadline bool

	router := gin.New()
	router.Use(Timeout(time.Second, "/slow-ok"))
	router.GET("/work", func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		hasDeadline = ok && time.Until(deadline) <= time.Second
		c.Status(http.StatusOK)
	})
	router.GET("/slow-ok", func(c *gin.Context) {
		_, skippedHasDeadline = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})

	serve(router, httptest.NewRequest(http.MethodGet, "/work", nil))
	serve(router, httptest.NewRequest(http.MethodGet, "/slow-ok", nil))

	assert.True(t, hasDeadline)
	assert.False(t, skippedHasDeadline)
}

func TestTimeout_ExpiresContext(t *testing.T) {
	t.Parallel()

	var ctxErr error

	router := gin.New()
	router.Use(Timeout(10 * time.Millisecond))
	router.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
		ctxErr = c.Request.Context().Err()
		c.Status(http.StatusGatewayTimeout)
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/slow", nil))

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.ErrorIs(t, ctxErr, context.DeadlineExceeded)
}

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		limit   int64
		body    string
		wantErr bool
	}{
		{name: "under limit", limit: 16, body: "small", wantErr: false},
		{name: "over limit", limit: 4, body: "far too large", wantErr: true},
		{name: "no limit", limit: 0, body: strings.Repeat("x", 4096), wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var readErr error

			router := gin.New()
			router.Use(BodyLimit(tt.limit))
			router.POST("/upload", func(c *gin.Context) {
				_, readErr = io.ReadAll(c.Request.Body)
				c.Status(http.StatusOK)
			})

			serve(router, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(tt.body)))

			if tt.wantErr {
				var maxErr *http.MaxBytesError
				assert.ErrorAs(t, readErr, &maxErr)
			} else {
				assert.NoError(t, readErr)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		wantStatus  int
		wantOrigin  string
		wantMethods bool
	}{
		{
			name:       "allowed origin",
			allowed:    []string{"http://localhost:3000/"},
			method:     http.MethodGet,
			origin:     "http://localhost:3000",
			wantStatus: http.StatusOK,
			wantOrigin: "http://localhost:3000",
		},
		{
			name:       "unknown origin",
			allowed:    []string{"http://localhost:3000"},
			method:     http.MethodGet,
			origin:     "https://evil.example",
			wantStatus: http.StatusOK,
		},
		{
			name:       "wildcard",
			allowed:    []string{"*"},
			method:     http.MethodGet,
			origin:     "https://any.example",
			wantStatus: http.StatusOK,
			wantOrigin: "https://any.example",
		},
		{
			name:        "preflight",
			allowed:     []string{"http://localhost:3000"},
			method:      http.MethodOptions,
			origin:      "http://localhost:3000",
			wantStatus:  http.StatusNoContent,
			wantOrigin:  "http://localhost:3000",
			wantMethods: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := gin.New()
			router.Use(CORS(tt.allowed))
			router.GET("/reports", func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, "/reports", nil)
			req.Header.Set("Origin", tt.origin)

			w := serve(router, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))

			if tt.wantOrigin != "" {
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
				assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), HeaderRequestID)
			}

			if tt.wantMethods {
				assert.Equal(t, corsAllowMethods, w.Header().Get("Access-Control-Allow-Methods"))
				assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
			}
		})
	}
}

type fakeAuthorizer struct {
	email string
	err   error
	seen  string
}

func (f *fakeAuthorizer) Authorize(_ context.Context, token string) (string, error) {
	f.seen = token

	return f.email, f.err
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		header     string
		authz      *fakeAuthorizer
		wantStatus int
		wantCode   string
		wantEmail  string
	}{
		{
			name:       "valid token",
			header:     "Bearer good.token",
			authz:      &fakeAuthorizer{email: "admin@example.com"},
			wantStatus: http.StatusOK,
			wantEmail:  "admin@example.com",
		},
		{
			name:       "lowercase scheme",
			header:     "bearer good.token",
			authz:      &fakeAuthorizer{email: "admin@example.com"},
			wantStatus: http.StatusOK,
			wantEmail:  "admin@example.com",
		},
		{
			name:       "missing header",
			authz:      &fakeAuthorizer{},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "basic scheme",
			header:     "Basic dXNlcjpwYXNz",
			authz:      &fakeAuthorizer{},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "rejected token",
			header:     "Bearer expired",
			authz:      &fakeAuthorizer{err: domain.NewUnauthorizedError("token expired")},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "someone else",
			header:     "Bearer other",
			authz:      &fakeAuthorizer{err: domain.NewForbiddenError("write reports", "not the administrator")},
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name:       "authorizer failure",
			header:     "Bearer good.token",
			authz:      &fakeAuthorizer{err: errors.New("clock skew")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var email string

			router := gin.New()
			router.Use(RequireAdmin(tt.authz))
			router.POST("/reports", func(c *gin.Context) {
				email = GetEmail(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/reports", nil)
			if tt.header != "" {
				req.Header.Set(HeaderAuthorization, tt.header)
			}

			w := serve(router, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantEmail, email)

			if tt.wantCode != "" {
				assert.Contains(t, w.Body.String(), `"code":"`+tt.wantCode+`"`)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Bearer    ", "", false},
		{"Bearer abc", "abc", true},
		{"BEARER abc ", "abc", true},
		{"Token abc", "", false},
	}

	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		if tt.header != "" {
			c.Request.Header.Set(HeaderAuthorization, tt.header)
		}

		got, ok := BearerToken(c)

		assert.Equal(t, tt.ok, ok, "header %q", tt.header)
		assert.Equal(t, tt.want, got, "header %q", tt.header)
	}
}
