package authsession

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/florianilch/ex30link/internal/pkce"
)

var (
	ErrSessionNotFound   = errors.New("authorization session not found")
	ErrStateMismatch     = errors.New("authorization state mismatch")
	ErrSessionExpired    = errors.New("authorization session expired")
	ErrDuplicateCallback = errors.New("authorization callback already received")
)

// DefaultTimeout bounds how long an authorization attempt stays valid.
const DefaultTimeout = 10 * time.Minute

// AuthCodeURLFunc builds the vendor authorization URL for a state and S256 challenge.
type AuthCodeURLFunc func(state, challenge string) string

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Begun is returned to the caller that started an authorization attempt.
type Begun struct {
	SessionID        string
	AuthorizationURL string
	ExpiresAt        time.Time
}

type session struct {
	id        string
	verifier  string
	state     string
	createdAt time.Time
	callback  CallbackResult
}

// Manager binds session IDs to PKCE verifiers for the duration of one attempt.
// Safe for concurrent use.
type Manager struct {
	authCodeURL AuthCodeURLFunc
	timeout     time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	byState  map[string]string
}

// New creates a Manager. authCodeURL is called once per Begin.
func New(authCodeURL AuthCodeURLFunc, opts ...Option) (*Manager, error) {
	if authCodeURL == nil {
		return nil, fmt.Errorf("missing authorization URL builder")
	}

	m := &Manager{
		authCodeURL: authCodeURL,
		timeout:     DefaultTimeout,
		now:         time.Now,
		sessions:    make(map[string]*session),
		byState:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Timeout reports the session validity window.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// Begin starts a new authorization attempt.
func (m *Manager) Begin(ctx context.Context) (Begun, error) {
	if err := ctx.Err(); err != nil {
		return Begun{}, err
	}

	verifier, err := pkce.GenerateVerifier()
	if err != nil {
		return Begun{}, fmt.Errorf("generating code verifier: %w", err)
	}
	state, err := pkce.GenerateState()
	if err != nil {
		return Begun{}, fmt.Errorf("generating state: %w", err)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return Begun{}, fmt.Errorf("generating session id: %w", err)
	}

	s := &session{
		id:        id.String(),
		verifier:  verifier,
		state:     state,
		createdAt: m.now(),
		callback:  CallbackResult{Status: CallbackPending},
	}

	m.mu.Lock()
	m.sweepLocked()
	m.sessions[s.id] = s
	m.byState[s.state] = s.id
	m.mu.Unlock()

	return Begun{
		SessionID:        s.id,
		AuthorizationURL: m.authCodeURL(state, pkce.DeriveChallenge(verifier)),
		ExpiresAt:        s.createdAt.Add(m.timeout),
	}, nil
}

// Complete consumes the session and returns its code verifier.
// The session is removed whatever the outcome, so a second call always fails with
// ErrSessionNotFound.
func (m *Manager) Complete(sessionID, returnedState string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return "", ErrSessionNotFound
	}
	m.removeLocked(s)

	if subtle.ConstantTimeCompare([]byte(s.state), []byte(returnedState)) != 1 {
		return "", ErrStateMismatch
	}
	if m.expired(s) {
		return "", ErrSessionExpired
	}

	return s.verifier, nil
}

func (m *Manager) expired(s *session) bool {
	return m.now().Sub(s.createdAt) > m.timeout
}

func (m *Manager) removeLocked(s *session) {
	delete(m.sessions, s.id)
	delete(m.byState, s.state)
}

// sweepLocked drops expired sessions nobody came back for.
func (m *Manager) sweepLocked() {
	for _, s := range m.sessions {
		if m.expired(s) {
			m.removeLocked(s)
		}
	}
}
