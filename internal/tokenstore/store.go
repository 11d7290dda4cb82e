package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	errUnavailable = errors.New("token storage unavailable")
	errInvalidVIN  = errors.New("invalid vin")
)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for UpdatedAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger storage failures are reported to. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store is the no-throw boundary over a Backend: storage failures are logged and
// reported to callers as "no stored token".
// Writes are last-write-wins; one process per vehicle is expected.
type Store struct {
	backend Backend
	now     func() time.Time
	logger  *slog.Logger

	initMu sync.Mutex
	ready  bool
}

// New creates a Store. No I/O is performed until Initialize or the first operation.
func New(backend Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("missing storage backend")
	}

	s := &Store{
		backend: backend,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Initialize prepares the backend. It is idempotent and reports whether storage is
// usable; a failed attempt is retried by the next call or operation.
func (s *Store) Initialize(ctx context.Context) bool {
	return s.init(ctx) == nil
}

func (s *Store) init(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.ready {
		return nil
	}
	if err := s.backend.Init(ctx); err != nil {
		s.logger.ErrorContext(ctx, "token storage unavailable, continuing without stored tokens", "error", err)
		return fmt.Errorf("%w: %w", errUnavailable, err)
	}
	s.ready = true
	return nil
}

// Put replaces the record for vin and reports whether it was written.
// Failures are logged, never returned.
func (s *Store) Put(ctx context.Context, vin, refreshToken string, source Source) bool {
	if err := s.put(ctx, vin, refreshToken, source); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist refresh token", "vin", vin, "source", source, "error", err)
		return false
	}
	s.logger.DebugContext(ctx, "refresh token persisted", "vin", vin, "source", source)
	return true
}

func (s *Store) put(ctx context.Context, vin, refreshToken string, source Source) error {
	key, err := keyFor(vin)
	if err != nil {
		return err
	}
	if refreshToken == "" {
		return fmt.Errorf("empty refresh token")
	}
	if err := s.init(ctx); err != nil {
		return err
	}

	return s.backend.Write(ctx, key, Record{
		RefreshToken: refreshToken,
		VIN:          vin,
		UpdatedAt:    s.now().UTC().Truncate(time.Second),
		Source:       source,
	})
}

// Get returns the stored refresh token for vin. Misses and storage errors both
// return false; only the log tells them apart.
func (s *Store) Get(ctx context.Context, vin string) (string, bool) {
	record, ok := s.Record(ctx, vin)
	if !ok {
		return "", false
	}
	return record.RefreshToken, true
}

// Record returns the full stored record for vin, with the same semantics as Get.
func (s *Store) Record(ctx context.Context, vin string) (Record, bool) {
	record, err := s.lookup(ctx, vin)
	switch {
	case errors.Is(err, ErrNotFound):
		s.logger.DebugContext(ctx, "no stored refresh token", "vin", vin)
		return Record{}, false
	case err != nil:
		s.logger.WarnContext(ctx, "stored refresh token unreadable, treating as missing", "vin", vin, "error", err)
		return Record{}, false
	}
	return record, true
}

func (s *Store) lookup(ctx context.Context, vin string) (Record, error) {
	key, err := keyFor(vin)
	if err != nil {
		return Record{}, err
	}
	if err := s.init(ctx); err != nil {
		return Record{}, err
	}
	return s.backend.Read(ctx, key)
}

// Clear removes the record for vin. Failures are logged, never returned.
func (s *Store) Clear(ctx context.Context, vin string) {
	if err := s.clear(ctx, vin); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear stored refresh token", "vin", vin, "error", err)
		return
	}
	s.logger.InfoContext(ctx, "stored refresh token cleared", "vin", vin)
}

func (s *Store) clear(ctx context.Context, vin string) error {
	key, err := keyFor(vin)
	if err != nil {
		return err
	}
	if err := s.init(ctx); err != nil {
		return err
	}
	return s.backend.Delete(ctx, key)
}

func keyFor(vin string) (string, error) {
	key := Key(vin)
	if key == keyPrefix {
		return "", fmt.Errorf("%w: %q", errInvalidVIN, vin)
	}
	return key, nil
}
