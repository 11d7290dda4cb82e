// Package volvoid talks to the Volvo ID OAuth2 server on behalf of the application.
//
// Volvo ID is a confidential-client authorization server: the client secret travels in
// the form body of token requests and every authorization uses PKCE (S256). The package
// builds authorization URLs, exchanges authorization codes for tokens and provides a
// refresh-token backed oauth2.TokenSource.
//
// # Errors
//
// Exchange and refresh failures are classified so callers can tell a dead code or
// refresh token (ErrInvalidGrant, the user has to authorize again) from a transient
// problem (ErrNetwork, worth retrying later) and from anything else
// (ErrUnexpectedResponse). Nothing is retried here.
//
//	tokens, err := client.Exchange(ctx, code, verifier, client.RedirectURL())
//	switch {
//	case errors.Is(err, volvoid.ErrInvalidGrant):
//		// restart the authorization
//	case errors.Is(err, volvoid.ErrNetwork):
//		// let the user retry
//	}
package volvoid
