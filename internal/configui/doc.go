// Package configui serves the local configuration UI that authorizes a vehicle
// against Volvo ID: it starts PKCE authorization sessions, receives the OAuth
// redirect, exchanges the authorization code and stores the resulting refresh token.
package configui
