package token_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/quickcourt/quickcourt/internal/token"
)

func mint(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestParse_Kinds(t *testing.T) {
	now := time.Now()

	t.Run("jwt", func(t *testing.T) {
		tok := token.Parse(mint(t, jwt.MapClaims{"id": "u1", "role": "player", "exp": now.Add(time.Hour).Unix()}))
		require.Equal(t, token.KindJWT, tok.Kind())
		require.Equal(t, "u1", tok.Claims().UserID)
		require.Equal(t, "player", tok.Claims().Role)
	})

	t.Run("opaque", func(t *testing.T) {
		tok := token.Parse("legacy-session-token")
		require.Equal(t, token.KindOpaque, tok.Kind())
		require.Nil(t, tok.Claims())
	})

	t.Run("malformed", func(t *testing.T) {
		tok := token.Parse("not.a.jwt")
		require.Equal(t, token.KindMalformed, tok.Kind())
		require.False(t, tok.ValidAt(now))
		require.False(t, tok.ExpiringSoonAt(now))
	})
}

func TestValidAt(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"future exp", mint(t, jwt.MapClaims{"exp": now.Add(time.Minute).Unix()}), true},
		{"past exp", mint(t, jwt.MapClaims{"exp": now.Add(-10 * time.Minute).Unix()}), false},
		{"exp equals now", mint(t, jwt.MapClaims{"exp": now.Unix()}), false},
		{"missing exp", mint(t, jwt.MapClaims{"id": "u1"}), false},
		{"opaque non-empty", "abc", true},
		{"opaque empty", "", false},
		{"garbage with dot", "....", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, token.Parse(tt.raw).ValidAt(now))
		})
	}
}

func TestExpiringSoonAt(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"four minutes left", mint(t, jwt.MapClaims{"exp": now.Add(4 * time.Minute).Unix()}), true},
		{"exactly five minutes left", mint(t, jwt.MapClaims{"exp": now.Add(5 * time.Minute).Unix()}), false},
		{"an hour left", mint(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()}), false},
		{"already expired", mint(t, jwt.MapClaims{"exp": now.Add(-time.Minute).Unix()}), true},
		{"opaque", "legacy", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, token.Parse(tt.raw).ExpiringSoonAt(now))
		})
	}
}
