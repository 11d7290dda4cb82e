// Package tokenstore persists Volvo ID refresh tokens per vehicle.
//
// Records are keyed by a token key derived from the VIN and hold the refresh token,
// the VIN, the time of the last write and the provenance of the token. Two backends
// are provided with different deployment tradeoffs:
//   - File: one JSON document per vehicle under a private directory, atomic writes
//   - Keyring: OS-native credential storage (macOS Keychain, Secret Service, etc.)
//
// Backends report every failure. Store sits on top of a Backend and is the boundary
// where storage failures are logged and collapsed into "no stored token", since the
// application keeps working with a configured fallback token when storage is broken.
package tokenstore
