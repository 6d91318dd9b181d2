package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testKeyPEM generates a throwaway RSA key in the PEM form a GitHub App
// download would have.
func testKeyPEM(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	return string(pem.EncodeToMemory(block)), key
}

func TestNewAppAuth(t *testing.T) {
	t.Parallel()

	t.Run("should parse a PEM private key", func(t *testing.T) {
		t.Parallel()

		// given
		keyPEM, _ := testKeyPEM(t)

		// when
		auth, err := NewAppAuth("12345", keyPEM)

		// then
		require.NoError(t, err)
		assert.NotNil(t, auth)
	})

	t.Run("should reject garbage instead of a key", func(t *testing.T) {
		t.Parallel()

		// given / when
		_, err := NewAppAuth("12345", "not a key")

		// then
		assert.Error(t, err)
	})
}

func TestAppAuth_JWT(t *testing.T) {
	t.Parallel()

	t.Run("should mint a verifiable RS256 token with the app as issuer", func(t *testing.T) {
		t.Parallel()

		// given
		keyPEM, key := testKeyPEM(t)
		auth, err := NewAppAuth("12345", keyPEM)
		require.NoError(t, err)
		now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

		// when
		signed, err := auth.JWT(now)

		// then
		require.NoError(t, err)
		var claims jwt.RegisteredClaims
		parsed, err := jwt.ParseWithClaims(signed, &claims, func(token *jwt.Token) (any, error) {
			return &key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithTimeFunc(func() time.Time { return now }))
		require.NoError(t, err)
		assert.True(t, parsed.Valid)
		assert.Equal(t, "12345", claims.Issuer)
		assert.Equal(t, now.Add(-time.Minute).Unix(), claims.IssuedAt.Unix())
		assert.Equal(t, now.Add(9*time.Minute).Unix(), claims.ExpiresAt.Unix())
	})
}

func TestTokenCache_Token(t *testing.T) {
	t.Parallel()

	newCache := func(t *testing.T) *TokenCache {
		t.Helper()
		keyPEM, _ := testKeyPEM(t)
		auth, err := NewAppAuth("12345", keyPEM)
		require.NoError(t, err)
		return NewTokenCache(auth)
	}

	t.Run("should exchange once and reuse the cached token", func(t *testing.T) {
		t.Parallel()

		// given
		cache := newCache(t)
		now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
		cache.now = func() time.Time { return now }
		exchanges := 0
		cache.exchange = func(_ context.Context, appJWT string, installation int64) (string, time.Time, error) {
			exchanges++
			assert.NotEmpty(t, appJWT)
			assert.Equal(t, int64(42), installation)
			return "token-1", now.Add(time.Hour), nil
		}

		// when
		first, err1 := cache.Token(context.Background(), 42)
		second, err2 := cache.Token(context.Background(), 42)

		// then
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, "token-1", first)
		assert.Equal(t, "token-1", second)
		assert.Equal(t, 1, exchanges)
	})

	t.Run("should refresh a token within the expiry margin", func(t *testing.T) {
		t.Parallel()

		// given
		cache := newCache(t)
		now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
		cache.now = func() time.Time { return now }
		exchanges := 0
		cache.exchange = func(_ context.Context, _ string, _ int64) (string, time.Time, error) {
			exchanges++
			return "token-" + string(rune('0'+exchanges)), now.Add(time.Hour), nil
		}
		_, err := cache.Token(context.Background(), 42)
		require.NoError(t, err)

		// when — 4 minutes before expiry, inside the 5 minute margin
		now = now.Add(56 * time.Minute)
		token, err := cache.Token(context.Background(), 42)

		// then
		require.NoError(t, err)
		assert.Equal(t, "token-2", token)
		assert.Equal(t, 2, exchanges)
	})

	t.Run("should cache per installation", func(t *testing.T) {
		t.Parallel()

		// given
		cache := newCache(t)
		now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
		cache.now = func() time.Time { return now }
		cache.exchange = func(_ context.Context, _ string, installation int64) (string, time.Time, error) {
			return "token-for-" + string(rune('0'+installation)), now.Add(time.Hour), nil
		}

		// when
		a, errA := cache.Token(context.Background(), 1)
		b, errB := cache.Token(context.Background(), 2)

		// then
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.NotEqual(t, a, b)
	})

	t.Run("should propagate exchange failures without caching them", func(t *testing.T) {
		t.Parallel()

		// given
		cache := newCache(t)
		now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
		cache.now = func() time.Time { return now }
		calls := 0
		cache.exchange = func(_ context.Context, _ string, _ int64) (string, time.Time, error) {
			calls++
			if calls == 1 {
				return "", time.Time{}, errors.New("api unavailable")
			}
			return "token-2", now.Add(time.Hour), nil
		}

		// when
		_, err1 := cache.Token(context.Background(), 42)
		token, err2 := cache.Token(context.Background(), 42)

		// then
		assert.Error(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, "token-2", token)
	})
}
