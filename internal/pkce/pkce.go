// Package pkce generates the proof key (RFC 7636) and anti-CSRF state used for the
// Volvo ID authorization-code flow.
package pkce

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/oauth2"
)

const (
	// verifierBytes yields a 43 character verifier (256 bits of entropy).
	verifierBytes = 32
	// stateBytes yields a 32 character state (192 bits of entropy).
	stateBytes = 24
)

// MethodS256 is the only challenge method sent to the authorization server.
const MethodS256 = "S256"

// Reader is the entropy source. Replaced in tests only.
var Reader io.Reader = rand.Reader

// GenerateVerifier returns a fresh code verifier, base64url-encoded without padding.
func GenerateVerifier() (string, error) {
	return randomString(verifierBytes)
}

// DeriveChallenge returns the S256 code challenge for verifier.
func DeriveChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// GenerateState returns a random anti-CSRF state value independent of any verifier.
func GenerateState() (string, error) {
	return randomString(stateBytes)
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(Reader, b); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
