package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringBackend provides OS-native secure credential storage for token records.
// Uses macOS Keychain, Windows Credential Manager, or Linux Secret Service.
// The token key is used as the keyring user, the record is stored JSON-encoded.
type KeyringBackend struct {
	service string
}

// Compile-time check to ensure KeyringBackend implements Backend
var _ Backend = (*KeyringBackend)(nil)

// NewKeyringBackend creates a KeyringBackend storing records under the given service name.
func NewKeyringBackend(service string) (*KeyringBackend, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}

	return &KeyringBackend{
		service: service,
	}, nil
}

// Init is a no-op, the keyring needs no preparation.
func (k *KeyringBackend) Init(ctx context.Context) error {
	return ctx.Err()
}

// Read returns the record from the system keyring. Returns ErrNotFound if no entry exists.
func (k *KeyringBackend) Read(ctx context.Context, key string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	secret, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	var record Record
	if err := json.Unmarshal([]byte(secret), &record); err != nil {
		return Record{}, fmt.Errorf("decoding keyring entry for service %s, user %s: %w", k.service, key, err)
	}
	if record.RefreshToken == "" {
		return Record{}, fmt.Errorf("empty refresh token in keyring for service %s, user %s", k.service, key)
	}

	return record, nil
}

// Write persists the record to the system keyring, overwriting any existing value.
func (k *KeyringBackend) Write(ctx context.Context, key string, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	return keyring.Set(k.service, key, string(data))
}

// Delete removes the keyring entry. A missing entry is not an error.
func (k *KeyringBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := keyring.Delete(k.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
