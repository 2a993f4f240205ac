package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func TestAuthService_ValidateToken(t *testing.T) {
	svc := NewAuthService("8ad62148045cbf81")

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"exact match", "8ad62148045cbf81", false},
		{"empty", "", true},
		{"prefix", "8ad62148", true},
		{"longer", "8ad62148045cbf81x", true},
		{"case differs", "8AD62148045CBF81", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ValidateToken(context.Background(), tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrUnauthorized)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuthService_EmptyTeamTokenRejectsAll(t *testing.T) {
	svc := NewAuthService("")
	assert.ErrorIs(t, svc.ValidateToken(context.Background(), ""), domain.ErrUnauthorized)
	assert.ErrorIs(t, svc.ValidateToken(context.Background(), "anything"), domain.ErrUnauthorized)
}
