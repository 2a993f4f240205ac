package driving

import (
	"context"
)

// AuthService authorizes inbound requests
type AuthService interface {
	// ValidateToken returns domain.ErrUnauthorized unless token matches
	// the configured team token
	ValidateToken(ctx context.Context, token string) error
}
