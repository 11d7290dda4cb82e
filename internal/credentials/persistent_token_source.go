package credentials

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/oauth2"
)

// TokenSourceFactory creates an oauth2.TokenSource from a refresh token.
type TokenSourceFactory func(refreshToken string) oauth2.TokenSource

// PersistentTokenSource wraps a refresh-token oauth2.TokenSource and persists rotated
// refresh tokens for one vehicle before handing out the access token that came with
// them. Initialization is deferred to avoid I/O during application startup.
type PersistentTokenSource struct {
	factory  TokenSourceFactory
	resolver *Resolver
	vin      string
	fallback string

	tokenSource func() (oauth2.TokenSource, error)

	lastRefreshToken atomic.Pointer[string]
	writeMu          sync.Mutex
}

// Compile-time check to ensure PersistentTokenSource implements oauth2.TokenSource
var _ oauth2.TokenSource = (*PersistentTokenSource)(nil)

// NewPersistentTokenSource creates a PersistentTokenSource for vin. fallback is the
// configured refresh token used when storage has none.
// No I/O is performed until the first Token call.
func NewPersistentTokenSource(factory TokenSourceFactory, resolver *Resolver, vin, fallback string) (*PersistentTokenSource, error) {
	if factory == nil {
		return nil, fmt.Errorf("missing token source factory")
	}
	if resolver == nil {
		return nil, fmt.Errorf("missing token resolver")
	}
	if vin == "" {
		return nil, fmt.Errorf("missing vin")
	}

	p := &PersistentTokenSource{
		factory:  factory,
		resolver: resolver,
		vin:      vin,
		fallback: fallback,
	}

	p.tokenSource = sync.OnceValues(p.createTokenSource)

	return p, nil
}

// createTokenSource performs one-time initialization of the TokenSource.
func (p *PersistentTokenSource) createTokenSource() (oauth2.TokenSource, error) {
	// oauth2.TokenSource.Token() has no context parameter (legacy interface limitation)
	// Use background context for initial token read
	ctx := context.Background()

	resolved, err := p.resolver.Resolve(ctx, p.vin, p.fallback)
	if err != nil {
		return nil, err
	}

	// Remember the initial token to avoid unnecessary write-back on first call to `Token()`
	p.lastRefreshToken.Store(&resolved.Token)

	return p.factory(resolved.Token), nil
}

// Token returns a valid token, refreshing if necessary and persisting rotated refresh tokens.
func (p *PersistentTokenSource) Token() (*oauth2.Token, error) {
	ts, err := p.tokenSource()
	if err != nil {
		return nil, err
	}

	freshToken, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("getting token from token source: %w", err)
	}

	// Hot path: lock-free atomic read for minimal contention
	lastPtr := p.lastRefreshToken.Load()
	last := ""
	if lastPtr != nil {
		last = *lastPtr
	}

	// oauth2.TokenSource.Token() is contractually thread-safe, so concurrent calls receive
	// identical tokens. Worst case: multiple goroutines write the same refresh token value.
	if freshToken.RefreshToken != "" && freshToken.RefreshToken != last {
		p.writeMu.Lock()
		// Note: oauth2.TokenSource interface has no context parameter (legacy interface)
		ctx := context.Background()
		// Synchronous: the previous refresh token may be single-use, losing the new one
		// would require a new authorization
		// Only advance on success so a failed write is retried by the next call
		if p.resolver.OnRotation(ctx, p.vin, freshToken.RefreshToken) {
			newToken := freshToken.RefreshToken
			p.lastRefreshToken.Store(&newToken)
		}
		p.writeMu.Unlock()
	}

	return freshToken, nil
}
