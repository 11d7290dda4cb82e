package tokenstore

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	vin1 = "YV1XZK8V4P2000001"
	vin2 = "YV1XZK8V4P2000002"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newFileStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	b, err := NewFileBackend(filepath.Join(t.TempDir(), "tokens"))
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(b, append([]Option{WithLogger(discardLogger())}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// failingBackend fails every operation with err.
type failingBackend struct {
	err error
}

func (f failingBackend) Init(context.Context) error {
	return nil
}

func (f failingBackend) Read(context.Context, string) (Record, error) {
	return Record{}, f.err
}

func (f failingBackend) Write(context.Context, string, Record) error {
	return f.err
}

func (f failingBackend) Delete(context.Context, string) error {
	return f.err
}

// memoryBackend is a map-backed Backend that counts Init calls.
type memoryBackend struct {
	mu      sync.Mutex
	records map[string]Record
	initErr error
	inits   int
}

func (m *memoryBackend) Init(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inits++
	return m.initErr
}

func (m *memoryBackend) Read(_ context.Context, key string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (m *memoryBackend) Write(_ context.Context, key string, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[string]Record)
	}
	m.records[key] = r
	return nil
}

func (m *memoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func TestNewRequiresBackend(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("New(nil) succeeded")
	}
}

func TestStorePutGetOverwrite(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	if !s.Initialize(ctx) {
		t.Fatal("Initialize() = false")
	}

	if !s.Put(ctx, vin1, "tok-A", SourceAuthorization) {
		t.Fatal("Put() = false")
	}
	if got, ok := s.Get(ctx, vin1); !ok || got != "tok-A" {
		t.Fatalf("Get() = %q, %v; want tok-A", got, ok)
	}

	s.Put(ctx, vin2, "tok-other", SourceConfig)
	s.Put(ctx, vin1, "tok-B", SourceRotation)

	if got, ok := s.Get(ctx, vin1); !ok || got != "tok-B" {
		t.Errorf("Get() after overwrite = %q, %v; want tok-B", got, ok)
	}
	if got, ok := s.Get(ctx, vin2); !ok || got != "tok-other" {
		t.Errorf("Get(vin2) = %q, %v; want tok-other", got, ok)
	}
}

func TestStoreRecordFields(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 8, 30, 15, 999, time.FixedZone("CEST", 2*60*60))
	s := newFileStore(t, WithClock(func() time.Time { return now }))

	s.Put(ctx, vin1, "tok-A", SourceConfig)
	s.Put(ctx, vin1, "tok-B", SourceRotation)

	r, ok := s.Record(ctx, vin1)
	if !ok {
		t.Fatal("Record() missing")
	}
	if r.RefreshToken != "tok-B" || r.VIN != vin1 || r.Source != SourceRotation {
		t.Errorf("Record() = %+v", r)
	}
	if want := now.UTC().Truncate(time.Second); !r.UpdatedAt.Equal(want) || r.UpdatedAt.Location() != time.UTC {
		t.Errorf("UpdatedAt = %v, want %v", r.UpdatedAt, want)
	}
}

func TestStoreClear(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	s.Put(ctx, vin1, "tok-A", SourceAuthorization)
	s.Put(ctx, vin2, "tok-2", SourceAuthorization)
	s.Clear(ctx, vin1)

	if got, ok := s.Get(ctx, vin1); ok {
		t.Errorf("Get() after Clear = %q, want miss", got)
	}
	if _, ok := s.Get(ctx, vin2); !ok {
		t.Error("Clear(vin1) removed vin2")
	}

	// clearing twice is fine
	s.Clear(ctx, vin1)
}

func TestStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "tokens")

	open := func() *Store {
		b, err := NewFileBackend(dir)
		if err != nil {
			t.Fatal(err)
		}
		s, err := New(b, WithLogger(discardLogger()))
		if err != nil {
			t.Fatal(err)
		}
		return s
	}

	open().Put(ctx, vin1, "tok-durable", SourceAuthorization)

	if got, ok := open().Get(ctx, vin1); !ok || got != "tok-durable" {
		t.Errorf("Get() in new store = %q, %v; want tok-durable", got, ok)
	}
}

func TestStoreNeverPropagatesBackendErrors(t *testing.T) {
	ctx := context.Background()
	s, err := New(failingBackend{err: errors.New("disk on fire")}, WithLogger(discardLogger()))
	if err != nil {
		t.Fatal(err)
	}

	if s.Put(ctx, vin1, "tok", SourceRotation) {
		t.Error("Put() = true for a failing backend")
	}
	if got, ok := s.Get(ctx, vin1); ok || got != "" {
		t.Errorf("Get() = %q, %v; want miss", got, ok)
	}
	s.Clear(ctx, vin1)
}

func TestStoreInitializeFailureDegrades(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}
	b, err := NewFileBackend(path)
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(b, WithLogger(discardLogger()))
	if err != nil {
		t.Fatal(err)
	}

	if s.Initialize(ctx) {
		t.Fatal("Initialize() = true for an unusable directory")
	}
	s.Put(ctx, vin1, "tok", SourceConfig)
	if _, ok := s.Get(ctx, vin1); ok {
		t.Error("Get() found a token in unusable storage")
	}
	s.Clear(ctx, vin1)
}

func TestStoreInitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := &memoryBackend{}
	s, err := New(b, WithLogger(discardLogger()))
	if err != nil {
		t.Fatal(err)
	}

	for range 3 {
		if !s.Initialize(ctx) {
			t.Fatal("Initialize() = false")
		}
	}
	s.Put(ctx, vin1, "tok", SourceConfig)
	if b.inits != 1 {
		t.Errorf("backend initialized %d times, want 1", b.inits)
	}
}

func TestStoreInitializeRetriesAfterFailure(t *testing.T) {
	ctx := context.Background()
	b := &memoryBackend{initErr: errors.New("not mounted yet")}
	s, err := New(b, WithLogger(discardLogger()))
	if err != nil {
		t.Fatal(err)
	}

	if s.Initialize(ctx) {
		t.Fatal("Initialize() = true despite failing backend")
	}
	b.initErr = nil
	if !s.Initialize(ctx) {
		t.Fatal("Initialize() = false after backend recovered")
	}
}

func TestStoreRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	b := &memoryBackend{}
	s, err := New(b, WithLogger(discardLogger()))
	if err != nil {
		t.Fatal(err)
	}

	s.Put(ctx, "", "tok", SourceConfig)
	s.Put(ctx, "---", "tok", SourceConfig)
	s.Put(ctx, vin1, "", SourceConfig)

	if len(b.records) != 0 {
		t.Errorf("invalid puts wrote %d records", len(b.records))
	}
	if _, ok := s.Get(ctx, ""); ok {
		t.Error("Get(\"\") reported a token")
	}
}

func TestStoreLogsMissAndErrorDifferently(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	healthy, err := New(&memoryBackend{}, WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	healthy.Get(ctx, vin1)
	miss := buf.String()
	buf.Reset()

	broken, err := New(failingBackend{err: errors.New("io error")}, WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	broken.Get(ctx, vin1)
	failure := buf.String()

	if !strings.Contains(miss, "level=DEBUG") || !strings.Contains(miss, "no stored refresh token") {
		t.Errorf("miss logged as %q", miss)
	}
	if !strings.Contains(failure, "level=WARN") || !strings.Contains(failure, "io error") {
		t.Errorf("storage error logged as %q", failure)
	}
}
