package providers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHMACAuthProvider(t *testing.T) {
	ctx := context.Background()
	provider := NewHMACAuthProvider([]byte("test-secret"), time.Hour)

	t.Run("round trip", func(t *testing.T) {
		token, err := provider.IssueToken(ctx, 42)
		assert.NoError(t, err)

		claims, err := provider.VerifyToken(ctx, token)
		assert.NoError(t, err)
		assert.Equal(t, int64(42), claims.PlayerID)
	})

	t.Run("tampered token", func(t *testing.T) {
		token, err := provider.IssueToken(ctx, 42)
		assert.NoError(t, err)

		parts := strings.Split(token, ":")
		tampered := parts[0] + "x:" + parts[1]
		_, err = provider.VerifyToken(ctx, tampered)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := provider.IssueToken(ctx, 42)
		assert.NoError(t, err)

		other := NewHMACAuthProvider([]byte("other-secret"), time.Hour)
		_, err = other.VerifyToken(ctx, token)
		assert.Error(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := NewHMACAuthProvider([]byte("test-secret"), -time.Minute)
		token, err := expired.IssueToken(ctx, 42)
		assert.NoError(t, err)

		_, err = expired.VerifyToken(ctx, token)
		assert.Error(t, err)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := provider.VerifyToken(ctx, "garbage")
		assert.Error(t, err)
	})
}
