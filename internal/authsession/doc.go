// Package authsession tracks in-flight Volvo ID authorization attempts.
//
// Each attempt is a single-use session binding a session ID to one PKCE verifier and
// one anti-CSRF state. Sessions live in memory only: an authorization interrupted by a
// restart has to be started again by the user.
//
// Expiry is checked by comparing timestamps at lookup time; there is no background
// timer. A session is removed once it is completed, regardless of the outcome.
package authsession
