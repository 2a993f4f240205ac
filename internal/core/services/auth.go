package services

import (
	"context"
	"crypto/subtle"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// authService checks bearer tokens against the single configured team token
type authService struct {
	teamToken []byte
}

// NewAuthService creates a new AuthService
func NewAuthService(teamToken string) driving.AuthService {
	return &authService{teamToken: []byte(teamToken)}
}

// ValidateToken returns ErrUnauthorized unless token matches the team token exactly
func (s *authService) ValidateToken(ctx context.Context, token string) error {
	if len(s.teamToken) == 0 || token == "" {
		return domain.ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(token), s.teamToken) != 1 {
		return domain.ErrUnauthorized
	}
	return nil
}
