// Package credential resolves mail server passwords from the system keyring.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

// ErrNoCredential is returned when neither a password nor a keyring key is set
var ErrNoCredential = errors.New("no password or keyring key configured")

// Config selects the keyring service and the file backend location
type Config struct {
	ServiceName  string
	FileDir      string
	FilePassword string
}

// Store reads and writes credentials in a keyring
type Store struct {
	ring keyring.Keyring
}

// Open returns a store over the first available system keyring backend
func Open(cfg Config) (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: cfg.ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(cfg.FilePassword),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

// NewStore wraps an already opened keyring
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Get retrieves a credential value by key
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a credential value by key
func (s *Store) Set(key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "mail-triage " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Resolve prefers an explicit password and falls back to the keyring entry
// named by key
func (s *Store) Resolve(password, key string) (string, error) {
	if password != "" {
		return password, nil
	}
	if key == "" {
		return "", ErrNoCredential
	}
	if s == nil {
		return "", fmt.Errorf("keyring unavailable for credential %q", key)
	}
	return s.Get(key)
}
