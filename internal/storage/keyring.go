package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name entries are filed under in the OS
// keychain/credential manager
const KeyringService = "distctl"

// Keyring persists values in the OS keychain/credential manager
type Keyring struct {
	service string
	mu      sync.Mutex
}

// NewKeyring creates a keyring-backed store for service
func NewKeyring(service string) *Keyring {
	return &Keyring{service: service}
}

func (k *Keyring) Get(key string) (string, error) {
	value, err := keyring.Get(k.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load %s from keyring: %w", key, err)
	}
	return value, nil
}

func (k *Keyring) Set(key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		return fmt.Errorf("failed to save %s to keyring: %w", key, err)
	}
	return nil
}

func (k *Keyring) Delete(key string) error {
	if err := keyring.Delete(k.service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", key, err)
	}
	return nil
}

// Take reads and deletes key. The keyring has no compare-and-delete, so the
// pair is serialised within this process.
func (k *Keyring) Take(key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	value, err := k.Get(key)
	if err != nil {
		return "", err
	}
	if err := k.Delete(key); err != nil {
		return "", err
	}
	return value, nil
}
