package configui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/florianilch/ex30link/internal/authsession"
	"github.com/florianilch/ex30link/internal/volvoid"
)

var (
	// ErrCallbackPending means the redirect has not arrived yet for the session.
	ErrCallbackPending = errors.New("authorization callback not received yet")
	// ErrAuthorizationDenied means Volvo ID redirected back with an error.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrNotStored means the exchange succeeded but the refresh token could not be persisted.
	ErrNotStored = errors.New("refresh token could not be stored")
)

// Exchanger trades an authorization code for tokens.
type Exchanger interface {
	Exchange(ctx context.Context, code, verifier, redirectURI string) (volvoid.Tokens, error)
}

// Recorder persists the refresh token obtained by an authorization and reports
// whether it was written.
type Recorder interface {
	OnAuthorization(ctx context.Context, vin, refreshToken string) bool
}

// Flow drives authorization of one vehicle. It is shared by the HTTP server and
// the login command.
type Flow struct {
	sessions  *authsession.Manager
	exchanger Exchanger
	recorder  Recorder
	vin       string
}

// NewFlow creates a Flow storing tokens for vin.
func NewFlow(sessions *authsession.Manager, exchanger Exchanger, recorder Recorder, vin string) (*Flow, error) {
	switch {
	case sessions == nil:
		return nil, fmt.Errorf("missing session manager")
	case exchanger == nil:
		return nil, fmt.Errorf("missing token exchanger")
	case recorder == nil:
		return nil, fmt.Errorf("missing token recorder")
	case vin == "":
		return nil, fmt.Errorf("missing vin")
	}

	return &Flow{
		sessions:  sessions,
		exchanger: exchanger,
		recorder:  recorder,
		vin:       vin,
	}, nil
}

// VIN returns the vehicle the flow authorizes.
func (f *Flow) VIN() string {
	return f.vin
}

// Begin starts an authorization session.
func (f *Flow) Begin(ctx context.Context) (authsession.Begun, error) {
	begun, err := f.sessions.Begin(ctx)
	if err != nil {
		return authsession.Begun{}, err
	}
	slog.InfoContext(ctx, "authorization started", "session_id", begun.SessionID, "expires_at", begun.ExpiresAt)
	return begun, nil
}

// Callback reports whether the redirect for sessionID has arrived.
func (f *Flow) Callback(sessionID string) (authsession.CallbackResult, error) {
	return f.sessions.Callback(sessionID)
}

// RecordCallback attaches redirect parameters to the session owning state.
func (f *Flow) RecordCallback(state, code, errCode, errDescription string) (string, error) {
	return f.sessions.RecordCallback(state, code, errCode, errDescription)
}

// Discard abandons sessionID.
func (f *Flow) Discard(sessionID string) {
	f.sessions.Discard(sessionID)
}

// Finish completes sessionID and exchanges the authorization code. When state or
// code is empty, the values recorded by the callback are used. The session is
// consumed before the exchange, so a code is never submitted twice.
func (f *Flow) Finish(ctx context.Context, sessionID, state, code string) (volvoid.Tokens, error) {
	if state == "" || code == "" {
		cb, err := f.sessions.Callback(sessionID)
		if err != nil {
			return volvoid.Tokens{}, err
		}
		switch cb.Status {
		case authsession.CallbackPending:
			return volvoid.Tokens{}, ErrCallbackPending
		case authsession.CallbackFailed:
			f.sessions.Discard(sessionID)
			return volvoid.Tokens{}, fmt.Errorf("%w: %s", ErrAuthorizationDenied, describe(cb))
		}
		if state == "" {
			state = cb.State
		}
		if code == "" {
			code = cb.Code
		}
	}

	verifier, err := f.sessions.Complete(sessionID, state)
	if err != nil {
		return volvoid.Tokens{}, err
	}

	tokens, err := f.exchanger.Exchange(ctx, code, verifier, "")
	if err != nil {
		slog.WarnContext(ctx, "authorization code exchange failed", "session_id", sessionID, "error", err)
		return volvoid.Tokens{}, err
	}

	if !f.recorder.OnAuthorization(ctx, f.vin, tokens.RefreshToken) {
		// the code is spent, the user has to authorize again once storage is fixed
		return volvoid.Tokens{}, fmt.Errorf("%w: refresh token %s was lost, see log for details",
			ErrNotStored, volvoid.Redact(tokens.RefreshToken))
	}
	slog.InfoContext(ctx, "vehicle authorized",
		"vin", f.vin,
		"refresh_token", volvoid.Redact(tokens.RefreshToken),
		"expires_in", tokens.ExpiresIn,
	)

	return tokens, nil
}

func describe(cb authsession.CallbackResult) string {
	if cb.ErrorDescription != "" {
		return cb.Error + " (" + cb.ErrorDescription + ")"
	}
	return cb.Error
}
