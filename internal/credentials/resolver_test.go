package credentials

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/florianilch/ex30link/internal/tokenstore"
)

// fakeStore is an in-memory TokenStore recording writes.
type fakeStore struct {
	mu      sync.Mutex
	tokens  map[string]string
	sources map[string]tokenstore.Source
	puts    int
	failing bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tokens:  make(map[string]string),
		sources: make(map[string]tokenstore.Source),
	}
}

func (f *fakeStore) Get(_ context.Context, vin string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[vin]
	return t, ok
}

func (f *fakeStore) Put(_ context.Context, vin, token string, source tokenstore.Source) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.failing {
		return false
	}
	f.tokens[vin] = token
	f.sources[vin] = source
	return true
}

func (f *fakeStore) setFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

const testVIN = "YV1XZK8V4P2000001"

func TestNewResolverRequiresStore(t *testing.T) {
	if _, err := NewResolver(nil); err == nil {
		t.Fatal("NewResolver(nil) succeeded")
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		stored     string
		fallback   string
		want       Resolved
		wantErr    error
		wantImport bool
	}{
		{
			name:     "stored wins over fallback",
			stored:   "stored-tok",
			fallback: "fallback-tok",
			want:     Resolved{Token: "stored-tok", Source: SourceStored},
		},
		{
			name:   "stored without fallback",
			stored: "stored-tok",
			want:   Resolved{Token: "stored-tok", Source: SourceStored},
		},
		{
			name:       "fallback when nothing stored",
			fallback:   "fallback-tok",
			want:       Resolved{Token: "fallback-tok", Source: SourceConfig},
			wantImport: true,
		},
		{
			name:    "neither",
			wantErr: ErrNoRefreshToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			if tt.stored != "" {
				store.tokens[testVIN] = tt.stored
			}
			r, err := NewResolver(store)
			if err != nil {
				t.Fatal(err)
			}

			got, err := r.Resolve(context.Background(), testVIN, tt.fallback)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}

			if tt.wantImport {
				if store.tokens[testVIN] != tt.fallback || store.sources[testVIN] != tokenstore.SourceConfig {
					t.Errorf("fallback not imported: %q (%s)", store.tokens[testVIN], store.sources[testVIN])
				}
			} else if store.puts != 0 {
				t.Errorf("Resolve() wrote %d times, want 0", store.puts)
			}
		})
	}
}

func TestOnRotationAndAuthorization(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	r, err := NewResolver(store)
	if err != nil {
		t.Fatal(err)
	}

	if !r.OnAuthorization(ctx, testVIN, "rt-auth") {
		t.Fatal("OnAuthorization() reported a failed write")
	}
	if store.tokens[testVIN] != "rt-auth" || store.sources[testVIN] != tokenstore.SourceAuthorization {
		t.Errorf("after OnAuthorization: %q (%s)", store.tokens[testVIN], store.sources[testVIN])
	}

	r.OnRotation(ctx, testVIN, "rt-rotated")
	if store.tokens[testVIN] != "rt-rotated" || store.sources[testVIN] != tokenstore.SourceRotation {
		t.Errorf("after OnRotation: %q (%s)", store.tokens[testVIN], store.sources[testVIN])
	}

	resolved, err := r.Resolve(ctx, testVIN, "fallback")
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Token != "rt-rotated" {
		t.Errorf("Resolve() after rotation = %q", resolved.Token)
	}
}

func TestOnRotationReportsFailedWrite(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.setFailing(true)
	r, err := NewResolver(store)
	if err != nil {
		t.Fatal(err)
	}

	if r.OnRotation(ctx, testVIN, "rt-rotated") {
		t.Error("OnRotation() = true for a failed write")
	}
	if r.OnAuthorization(ctx, testVIN, "rt-auth") {
		t.Error("OnAuthorization() = true for a failed write")
	}
}
