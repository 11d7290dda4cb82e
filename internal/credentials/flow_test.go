package credentials_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"golang.org/x/oauth2"

	"github.com/florianilch/ex30link/internal/authsession"
	"github.com/florianilch/ex30link/internal/credentials"
	"github.com/florianilch/ex30link/internal/pkce"
	"github.com/florianilch/ex30link/internal/tokenstore"
	"github.com/florianilch/ex30link/internal/volvoid"
)

const vin = "YV1XZK8V4P2000001"

func TestAuthorizationFlowPersistsRefreshToken(t *testing.T) {
	ctx := context.Background()

	var gotVerifier string
	vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotVerifier = r.PostForm.Get("code_verifier")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-1","refresh_token":"rt-123","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(vendor.Close)

	client, err := volvoid.New(volvoid.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://127.0.0.1:8582/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://auth.example.test/as/authorization.oauth2",
			TokenURL: vendor.URL,
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	sessions, err := authsession.New(client.AuthCodeURL)
	if err != nil {
		t.Fatal(err)
	}

	backend, err := tokenstore.NewFileBackend(filepath.Join(t.TempDir(), "tokens"))
	if err != nil {
		t.Fatal(err)
	}
	store, err := tokenstore.New(backend, tokenstore.WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		t.Fatal(err)
	}
	resolver, err := credentials.NewResolver(store)
	if err != nil {
		t.Fatal(err)
	}

	begun, err := sessions.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	authURL, err := url.Parse(begun.AuthorizationURL)
	if err != nil {
		t.Fatal(err)
	}
	state := authURL.Query().Get("state")
	challenge := authURL.Query().Get("code_challenge")

	verifier, err := sessions.Complete(begun.SessionID, state)
	if err != nil {
		t.Fatal(err)
	}

	tokens, err := client.Exchange(ctx, "auth-code", verifier, "")
	if err != nil {
		t.Fatal(err)
	}
	if pkce.DeriveChallenge(gotVerifier) != challenge {
		t.Error("verifier sent to the token endpoint does not match the challenge")
	}

	resolver.OnRotation(ctx, vin, tokens.RefreshToken)

	if got, ok := store.Get(ctx, vin); !ok || got != "rt-123" {
		t.Errorf("store.Get() = %q, %v; want rt-123", got, ok)
	}

	resolved, err := resolver.Resolve(ctx, vin, "config-token")
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Token != "rt-123" || resolved.Source != credentials.SourceStored {
		t.Errorf("Resolve() = %+v, want stored rt-123", resolved)
	}
}
