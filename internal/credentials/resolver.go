// Package credentials decides which refresh token the application uses for a vehicle
// and keeps durable storage in sync when Volvo ID rotates it.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/florianilch/ex30link/internal/tokenstore"
)

// ErrNoRefreshToken means neither storage nor configuration provides a refresh token.
// Nothing can be fetched for the vehicle until it is authorized again.
var ErrNoRefreshToken = errors.New("no refresh token available: authorize the vehicle through the config UI or run `ex30link login`")

// Source tells where a resolved token came from.
type Source string

const (
	SourceStored Source = "stored"
	SourceConfig Source = "config"
)

// Resolved is the refresh token chosen for a vehicle. It is not persisted itself.
type Resolved struct {
	Token  string
	Source Source
}

// TokenStore is the subset of tokenstore.Store the resolver needs.
type TokenStore interface {
	Get(ctx context.Context, vin string) (string, bool)
	Put(ctx context.Context, vin, refreshToken string, source tokenstore.Source) bool
}

// Resolver implements the stored-then-config token policy.
type Resolver struct {
	store TokenStore
}

// NewResolver creates a Resolver backed by store.
func NewResolver(store TokenStore) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}
	return &Resolver{store: store}, nil
}

// Resolve returns the stored token for vin if there is one, else fallback.
// A fallback that gets used is imported into storage, so later rotations have a
// record to replace. Returns ErrNoRefreshToken when neither exists.
func (r *Resolver) Resolve(ctx context.Context, vin, fallback string) (Resolved, error) {
	if token, ok := r.store.Get(ctx, vin); ok {
		slog.DebugContext(ctx, "using stored refresh token", "vin", vin)
		return Resolved{Token: token, Source: SourceStored}, nil
	}

	if fallback == "" {
		return Resolved{}, ErrNoRefreshToken
	}

	slog.InfoContext(ctx, "no stored refresh token, using configured one", "vin", vin)
	r.store.Put(ctx, vin, fallback, tokenstore.SourceConfig)

	return Resolved{Token: fallback, Source: SourceConfig}, nil
}

// OnRotation persists a refresh token Volvo ID issued while refreshing an access token.
// It returns once the write has been attempted and reports whether it succeeded;
// callers must not use the new access token before that, since the previous refresh
// token may already be invalid.
func (r *Resolver) OnRotation(ctx context.Context, vin, refreshToken string) bool {
	return r.store.Put(ctx, vin, refreshToken, tokenstore.SourceRotation)
}

// OnAuthorization persists the refresh token obtained from an authorization-code
// exchange and reports whether it was written.
func (r *Resolver) OnAuthorization(ctx context.Context, vin, refreshToken string) bool {
	return r.store.Put(ctx, vin, refreshToken, tokenstore.SourceAuthorization)
}
