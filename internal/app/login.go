package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/florianilch/ex30link/internal/authsession"
	"github.com/florianilch/ex30link/internal/poll"
	"github.com/florianilch/ex30link/internal/tokenstore"
	"github.com/florianilch/ex30link/internal/volvoid"
)

// Login runs one authorization: it serves the redirect target, hands the
// authorization URL to show, waits for the callback and stores the new refresh token.
func (a *App) Login(ctx context.Context, show func(authorizationURL string)) (volvoid.Tokens, error) {
	if !a.store.Initialize(ctx) {
		return volvoid.Tokens{}, errors.New("token storage unavailable, the authorization result could not be kept")
	}

	address := a.cfg.Server.Address()
	uiErrCh, err := a.ui.Start(ctx, address)
	if err != nil {
		return volvoid.Tokens{}, fmt.Errorf("callback server startup failed: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
		defer cancel()
		if err := a.ui.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "callback server shutdown failed", "error", err)
		}
	}()

	begun, err := a.flow.Begin(ctx)
	if err != nil {
		return volvoid.Tokens{}, fmt.Errorf("starting authorization: %w", err)
	}
	show(begun.AuthorizationURL)

	err = poll.Until(ctx, a.cfg.Authorization.PollInterval, a.cfg.Authorization.CallbackTimeout, func(context.Context) (bool, error) {
		select {
		case err, ok := <-uiErrCh:
			if ok && err != nil {
				return false, fmt.Errorf("callback server: %w", err)
			}
		default:
		}

		cb, err := a.flow.Callback(begun.SessionID)
		if err != nil {
			return false, err
		}
		return cb.Status != authsession.CallbackPending, nil
	})
	if err != nil {
		if errors.Is(err, poll.ErrTimeout) {
			err = fmt.Errorf("no authorization received within %s: %w", a.cfg.Authorization.CallbackTimeout, err)
		}
		a.flow.Discard(begun.SessionID)
		return volvoid.Tokens{}, err
	}

	return a.flow.Finish(ctx, begun.SessionID, "", "")
}

// StoredToken returns the stored record for the configured vehicle.
func (a *App) StoredToken(ctx context.Context) (tokenstore.Record, bool) {
	return a.store.Record(ctx, a.cfg.Vehicle.VIN)
}

// ClearToken removes the stored refresh token of the configured vehicle.
func (a *App) ClearToken(ctx context.Context) {
	a.store.Clear(ctx, a.cfg.Vehicle.VIN)
}

// ImportToken stores refreshToken for the configured vehicle, replacing any stored one.
func (a *App) ImportToken(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return errors.New("empty refresh token")
	}
	if !a.store.Initialize(ctx) {
		return errors.New("token storage unavailable")
	}

	if !a.store.Put(ctx, a.cfg.Vehicle.VIN, refreshToken, tokenstore.SourceImport) {
		return errors.New("refresh token could not be stored, see log for details")
	}
	return nil
}
