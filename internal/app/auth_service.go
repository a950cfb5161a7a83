package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gourmetlog/report-service/internal/domain"
	"github.com/gourmetlog/report-service/internal/platform/logging"
	"github.com/gourmetlog/report-service/internal/ports"
)

// AuthService signs in the single administrator and checks their tokens.
type AuthService struct {
	tokens       ports.TokenIssuer
	allowedEmail string
	logger       *slog.Logger
}

// AuthServiceConfig wires an AuthService.
type AuthServiceConfig struct {
	Tokens       ports.TokenIssuer
	AllowedEmail string
	Logger       *slog.Logger
}

// NewAuthService creates the service. It panics without a token issuer or
// an allowed email.
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	if cfg.Tokens == nil {
		panic("app: AuthServiceConfig.Tokens is required")
	}

	if cfg.AllowedEmail == "" {
		panic("app: AuthServiceConfig.AllowedEmail is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		tokens:       cfg.Tokens,
		allowedEmail: cfg.AllowedEmail,
		logger:       logger.With(slog.String("component", "app.AuthService")),
	}
}

// SignIn issues a token when email is the allowed address. The comparison
// ignores case and surrounding spaces.
func (s *AuthService) SignIn(ctx context.Context, email string) (string, error) {
	logger := logging.FromContextOr(ctx, s.logger)

	if !s.allowed(email) {
		logger.WarnContext(ctx, "sign-in refused")
		return "", domain.NewUnauthorizedError("email is not allowed to sign in")
	}

	token, err := s.tokens.Issue(s.allowedEmail)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}

	logger.InfoContext(ctx, "signed in")

	return token, nil
}

// Authorize verifies a bearer token and returns its email. An unreadable
// token is an UnauthorizedError; a valid token for another address is a
// ForbiddenError.
func (s *AuthService) Authorize(_ context.Context, token string) (string, error) {
	email, err := s.tokens.Verify(token)
	if err != nil {
		return "", domain.NewUnauthorizedError(err.Error())
	}

	if !s.allowed(email) {
		return "", domain.NewForbiddenError("write reports", "token email is not allowed")
	}

	return email, nil
}

func (s *AuthService) allowed(email string) bool {
	return strings.EqualFold(strings.TrimSpace(email), s.allowedEmail)
}
