package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Authenticator performs the upstream email/password login
type Authenticator interface {
	AuthenticateWithEmailPassword(ctx context.Context, email, password string) (any, error)
}

// AuthService proxies storefront logins to the upstream API
type AuthService interface {
	Login(ctx context.Context, email, password string) (any, error)
}

type authService struct {
	auth   Authenticator
	logger *zap.Logger
}

// NewAuthService creates a new instance of AuthService
func NewAuthService(auth Authenticator, logger *zap.Logger) AuthService {
	return &authService{auth: auth, logger: logger}
}

// Login returns the upstream login payload unchanged. Rejections surface as
// *jubelio.AuthError.
func (s *authService) Login(ctx context.Context, email, password string) (any, error) {
	payload, err := s.auth.AuthenticateWithEmailPassword(ctx, email, password)
	if err != nil {
		s.logger.Debug("Upstream login failed", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("upstream login: %w", err)
	}
	s.logger.Debug("Upstream login succeeded", zap.String("email", email))
	return payload, nil
}
