package internal_test

import (
	"testing"
	"time"

	"github.com/koopa0/system-design/14-raid-room/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTokenVerifier 測試令牌簽發與驗證
func TestTokenVerifier(t *testing.T) {
	verifier := internal.NewTokenVerifier(internal.AuthConfig{JWTSecret: "secret", Issuer: "raid-room"})

	tests := []struct {
		name     string
		token    func(t *testing.T) string
		wantID   string
		wantFail bool
	}{
		{
			name: "valid token",
			token: func(t *testing.T) string {
				token, err := verifier.Issue("player_1", time.Hour)
				require.NoError(t, err)
				return token
			},
			wantID: "player_1",
		},
		{
			name: "expired token",
			token: func(t *testing.T) string {
				token, err := verifier.Issue("player_1", -time.Minute)
				require.NoError(t, err)
				return token
			},
			wantFail: true,
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				other := internal.NewTokenVerifier(internal.AuthConfig{JWTSecret: "other", Issuer: "raid-room"})
				token, err := other.Issue("player_1", time.Hour)
				require.NoError(t, err)
				return token
			},
			wantFail: true,
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				other := internal.NewTokenVerifier(internal.AuthConfig{JWTSecret: "secret", Issuer: "someone-else"})
				token, err := other.Issue("player_1", time.Hour)
				require.NoError(t, err)
				return token
			},
			wantFail: true,
		},
		{
			name:     "garbage",
			token:    func(t *testing.T) string { return "not-a-jwt" },
			wantFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			playerID, err := verifier.Verify(tt.token(t))
			if tt.wantFail {
				assert.ErrorIs(t, err, internal.ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, playerID)
		})
	}
}
