// Package credential keeps the session token in the system keyring.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "homesync"

// tokenKey is the keyring item holding the bearer token of a server.
func tokenKey(baseURL string) string {
	return "token:" + baseURL
}

// ErrNoToken is returned when no token is stored for a server.
var ErrNoToken = errors.New("no session token stored; run `homesync login`")

// Tokens stores session tokens per backend URL.
type Tokens struct {
	ring keyring.Keyring
}

// NewTokens wraps an opened keyring. Tests pass keyring.NewArrayKeyring.
func NewTokens(ring keyring.Keyring) *Tokens {
	return &Tokens{ring: ring}
}

// OpenTokens opens the system keyring, falling back to an encrypted file
// under dir when no platform keyring is available.
func OpenTokens(dir string) (*Tokens, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt("homesync-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewTokens(ring), nil
}

// Token returns the stored token for baseURL.
func (t *Tokens) Token(baseURL string) (string, error) {
	item, err := t.ring.Get(tokenKey(baseURL))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("getting token for %s: %w", baseURL, err)
	}
	return string(item.Data), nil
}

// SetToken stores token for baseURL.
func (t *Tokens) SetToken(baseURL, token string) error {
	err := t.ring.Set(keyring.Item{
		Key:   tokenKey(baseURL),
		Data:  []byte(token),
		Label: "homesync session",
	})
	if err != nil {
		return fmt.Errorf("setting token for %s: %w", baseURL, err)
	}
	return nil
}

// DeleteToken removes the token for baseURL. A missing token is not an
// error.
func (t *Tokens) DeleteToken(baseURL string) error {
	err := t.ring.Remove(tokenKey(baseURL))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting token for %s: %w", baseURL, err)
	}
	return nil
}

// Source returns a function suitable for api.TokenSource.
func (t *Tokens) Source(baseURL string) func() (string, error) {
	return func() (string, error) { return t.Token(baseURL) }
}
