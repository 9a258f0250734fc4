package auth

import (
	"testing"
	"time"

	"hrm/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	cfg := &config.JWTConfig{Secret: "s3cret", Expiry: time.Hour, Issuer: "hrm"}

	issued, err := GenerateSessionToken(cfg, 7, "HR", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := ParseSessionToken(cfg, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "HR", claims.Role)
	assert.Equal(t, 3, claims.TokenVersion)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestParseSessionToken_Rejects(t *testing.T) {
	cfg := &config.JWTConfig{Secret: "s3cret", Expiry: time.Hour, Issuer: "hrm"}
	issued, err := GenerateSessionToken(cfg, 1, "ADMIN", 0)
	require.NoError(t, err)

	tests := []struct {
		name  string
		cfg   *config.JWTConfig
		token string
	}{
		{"wrong secret", &config.JWTConfig{Secret: "other", Issuer: "hrm"}, issued.Token},
		{"wrong issuer", &config.JWTConfig{Secret: "s3cret", Issuer: "elsewhere"}, issued.Token},
		{"garbage", cfg, "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSessionToken(tt.cfg, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	expired, err := GenerateSessionToken(&config.JWTConfig{Secret: "s3cret", Expiry: -time.Minute, Issuer: "hrm"}, 1, "ADMIN", 0)
	require.NoError(t, err)
	_, err = ParseSessionToken(cfg, expired.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
