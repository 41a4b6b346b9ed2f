// Package auth supplies bearer tokens for the platform API.
// This is part of the Imperative Shell - it talks to the identity provider.
package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/artpar/promoter/internal/core/domain"
)

// DefaultScope is the token scope for the Fabric REST API.
const DefaultScope = "https://api.fabric.microsoft.com/.default"

// DefaultRefreshBuffer is how long before expiry a cached token is replaced.
const DefaultRefreshBuffer = 5 * time.Minute

// TokenProvider supplies a valid bearer token or an authentication error.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// =============================================================================
// Cached Provider
// =============================================================================

// CachedTokenProvider caches the token from an azcore credential until shortly
// before it expires. It is owned by one run and passed explicitly.
type CachedTokenProvider struct {
	cred   azcore.TokenCredential
	scopes []string
	buffer time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu        sync.Mutex
	token     string
	expiresOn time.Time
}

// Option configures a CachedTokenProvider.
type Option func(*CachedTokenProvider)

// WithScopes overrides the requested scopes.
func WithScopes(scopes ...string) Option {
	return func(p *CachedTokenProvider) { p.scopes = scopes }
}

// WithRefreshBuffer overrides DefaultRefreshBuffer.
func WithRefreshBuffer(d time.Duration) Option {
	return func(p *CachedTokenProvider) { p.buffer = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *CachedTokenProvider) { p.now = now }
}

// NewCachedTokenProvider wraps cred with an expiry-aware cache.
func NewCachedTokenProvider(cred azcore.TokenCredential, logger *slog.Logger, opts ...Option) *CachedTokenProvider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &CachedTokenProvider{
		cred:   cred,
		scopes: []string{DefaultScope},
		buffer: DefaultRefreshBuffer,
		now:    time.Now,
		logger: logger.With("component", "token_provider"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewClientSecretProvider builds a provider for a service principal.
func NewClientSecretProvider(tenantID, clientID, clientSecret string, logger *slog.Logger, opts ...Option) (*CachedTokenProvider, error) {
	cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
	if err != nil {
		return nil, domain.AuthenticationError("NewClientSecretProvider", "invalid service principal credentials", err)
	}
	return NewCachedTokenProvider(cred, logger, opts...), nil
}

// Token returns the cached token or acquires a new one.
func (p *CachedTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Before(p.expiresOn.Add(-p.buffer)) {
		p.logger.Debug("using cached token", "expires_on", p.expiresOn)
		return p.token, nil
	}

	p.logger.Debug("acquiring new token", "scopes", p.scopes)
	tok, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: p.scopes})
	if err != nil {
		p.token = ""
		return "", domain.AuthenticationError("Token", "acquire token", err)
	}
	if tok.Token == "" {
		return "", domain.AuthenticationError("Token", "identity provider returned an empty token", nil)
	}

	p.token = tok.Token
	p.expiresOn = tok.ExpiresOn
	p.logger.Info("acquired token", "expires_on", tok.ExpiresOn)
	return p.token, nil
}

// Invalidate drops the cached token so the next call re-acquires it.
func (p *CachedTokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
	p.expiresOn = time.Time{}
}

// =============================================================================
// Static Provider
// =============================================================================

// StaticTokenProvider returns a token acquired elsewhere, e.g. by a CI step.
type StaticTokenProvider string

// Token returns the static token.
func (s StaticTokenProvider) Token(context.Context) (string, error) {
	if s == "" {
		return "", domain.AuthenticationError("Token", "no token configured", nil)
	}
	return string(s), nil
}
