package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gourmetlog/report-service/internal/adapters/http/dto"
	"github.com/gourmetlog/report-service/internal/domain"
)

const (
	// ContextKeyEmail is the gin context key for the authenticated email.
	ContextKeyEmail = "auth_email"

	// HeaderAuthorization carries the bearer token.
	HeaderAuthorization = "Authorization"

	bearerPrefix = "Bearer "
)

// Authorizer checks a bearer token and returns the email it was issued to.
// It returns a domain UnauthorizedError for unreadable tokens and a
// ForbiddenError for tokens that belong to someone else.
type Authorizer interface {
	Authorize(ctx context.Context, token string) (string, error)
}

// RequireAdmin returns middleware that only lets the administrator through.
// A missing or invalid token aborts with 401, a token for another email
// with 403.
func RequireAdmin(authz Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			dto.AbortWithError(c, domain.NewUnauthorizedError("missing bearer token"))
			return
		}

		email, err := authz.Authorize(c.Request.Context(), token)
		if err != nil {
			dto.AbortWithError(c, err)
			return
		}

		c.Set(ContextKeyEmail, email)
		c.Next()
	}
}

// BearerToken extracts the token from the Authorization header. The scheme
// is matched case-insensitively.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader(HeaderAuthorization)
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}

	token := strings.TrimSpace(header[len(bearerPrefix):])

	return token, token != ""
}

// GetEmail returns the authenticated email, or "" outside RequireAdmin.
func GetEmail(c *gin.Context) string {
	return getIDFromContext(c, ContextKeyEmail)
}
