// Package github wraps the pieces of the GitHub platform this tool needs:
// App authentication (JWT minting and installation token exchange with an
// in-process cache) and the REST surface for check runs and pull requests.
package github

import (
	"context"
	"crypto/rsa"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gogithub "github.com/google/go-github/v66/github"
	logger "github.com/sirupsen/logrus"
)

// jwtLifetime stays under GitHub's 10 minute maximum; the backdate absorbs
// clock skew between this process and GitHub.
const (
	jwtLifetime = 9 * time.Minute
	jwtBackdate = time.Minute
)

// AppAuth holds the GitHub App identity. The private key is parsed once at
// startup and never leaves this package.
type AppAuth struct {
	appID string
	key   *rsa.PrivateKey
}

// NewAppAuth parses the App's PEM private key.
func NewAppAuth(appID, privateKeyPEM string) (*AppAuth, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parsing GitHub App private key: %w", err)
	}
	return &AppAuth{appID: appID, key: key}, nil
}

// JWT mints a short-lived RS256 token identifying the App itself. It is only
// good for exchanging into an installation token.
func (a *AppAuth) JWT(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    a.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-jwtBackdate)),
		ExpiresAt: jwt.NewNumericDate(now.Add(jwtLifetime)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("signing App JWT: %w", err)
	}
	return signed, nil
}

// refreshMargin is how close to expiry a cached token may get before it is
// refreshed instead of reused.
const refreshMargin = 5 * time.Minute

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// TokenCache is the process-wide installation token cache. Tokens are minted
// lazily per installation and reused until near expiry, bounding API call
// volume; access is serialized so a refresh never races into handing out a
// stale token.
type TokenCache struct {
	auth *AppAuth
	now  func() time.Time

	// exchange performs the JWT-to-installation-token call. Swapped out in
	// tests.
	exchange func(ctx context.Context, appJWT string, installation int64) (string, time.Time, error)

	mu     sync.Mutex
	tokens map[int64]cachedToken
}

// NewTokenCache creates an empty cache backed by the given App identity.
func NewTokenCache(auth *AppAuth) *TokenCache {
	return &TokenCache{
		auth:     auth,
		now:      time.Now,
		exchange: exchangeInstallationToken,
		tokens:   make(map[int64]cachedToken),
	}
}

// Token returns a valid installation token, refreshing it when absent or
// near expiry. The token value must never be logged or persisted.
func (c *TokenCache) Token(ctx context.Context, installation int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.tokens[installation]; ok {
		if c.now().Add(refreshMargin).Before(cached.expiresAt) {
			return cached.value, nil
		}
		delete(c.tokens, installation)
	}

	appJWT, err := c.auth.JWT(c.now())
	if err != nil {
		return "", err
	}

	token, expiresAt, err := c.exchange(ctx, appJWT, installation)
	if err != nil {
		return "", fmt.Errorf("exchanging App JWT for installation %d: %w", installation, err)
	}

	logger.Debugf("minted installation token for %d, expires %s", installation, expiresAt.Format(time.RFC3339))
	c.tokens[installation] = cachedToken{value: token, expiresAt: expiresAt}
	return token, nil
}

// exchangeInstallationToken asks GitHub for a token scoped to the checks,
// pull request and contents surface this tool uses.
func exchangeInstallationToken(ctx context.Context, appJWT string, installation int64) (string, time.Time, error) {
	client := gogithub.NewClient(nil).WithAuthToken(appJWT)
	token, _, err := client.Apps.CreateInstallationToken(ctx, installation, &gogithub.InstallationTokenOptions{
		Permissions: &gogithub.InstallationPermissions{
			Checks:       gogithub.String("write"),
			PullRequests: gogithub.String("read"),
			Contents:     gogithub.String("read"),
			Metadata:     gogithub.String("read"),
		},
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return token.GetToken(), token.GetExpiresAt().Time, nil
}
