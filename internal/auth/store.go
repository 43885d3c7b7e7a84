package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned by a TokenStore that holds no token.
var ErrNoToken = errors.New("no cached token")

// TokenStore caches the OAuth token between runs.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
	Delete() error
}

// FileTokenStore keeps the token as JSON in a file.
type FileTokenStore struct {
	Path string
}

// legacyToken is the token.json layout written by Python's google-auth
// library. It is still accepted on load.
type legacyToken struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	Expiry       string `json:"expiry"`
}

// Load reads the cached token, or returns ErrNoToken.
func (s *FileTokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	return decodeToken(data)
}

// Save writes the token with owner-only permissions.
func (s *FileTokenStore) Save(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token directory: %w", err)
		}
	}
	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// Delete removes the token file, or returns ErrNoToken if there is none.
func (s *FileTokenStore) Delete() error {
	err := os.Remove(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNoToken
	}
	if err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

func decodeToken(data []byte) (*oauth2.Token, error) {
	var lt legacyToken
	if err := json.Unmarshal(data, &lt); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if lt.Token != "" {
		return &oauth2.Token{
			AccessToken:  lt.Token,
			RefreshToken: lt.RefreshToken,
			TokenType:    "Bearer",
			Expiry:       parseLegacyExpiry(lt.Expiry),
		}, nil
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("parse token: no access or refresh token")
	}
	return &tok, nil
}

// parseLegacyExpiry accepts the ISO 8601 forms Python writes, with or
// without microseconds.
func parseLegacyExpiry(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999Z",
		"2006-01-02T15:04:05Z",
		time.RFC3339,
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

const (
	keyringService = "taskeroo"
	keyringItem    = "gmail-oauth-token"
)

// KeyringTokenStore keeps the token in the OS keyring.
type KeyringTokenStore struct {
	ring keyring.Keyring
}

// OpenKeyring opens the platform keyring, falling back to an encrypted file
// keyring under fileDir.
func OpenKeyring(fileDir string) (*KeyringTokenStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("taskeroo-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringTokenStore(ring), nil
}

// NewKeyringTokenStore wraps an already opened keyring.
func NewKeyringTokenStore(ring keyring.Keyring) *KeyringTokenStore {
	return &KeyringTokenStore{ring: ring}
}

func (s *KeyringTokenStore) Load() (*oauth2.Token, error) {
	item, err := s.ring.Get(keyringItem)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("getting token from keyring: %w", err)
	}
	return decodeToken(item.Data)
}

func (s *KeyringTokenStore) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	err = s.ring.Set(keyring.Item{
		Key:         keyringItem,
		Data:        data,
		Label:       "taskeroo Gmail token",
		Description: "OAuth token for the taskeroo mail categorizer",
	})
	if err != nil {
		return fmt.Errorf("setting token in keyring: %w", err)
	}
	return nil
}

func (s *KeyringTokenStore) Delete() error {
	if _, err := s.ring.Get(keyringItem); errors.Is(err, keyring.ErrKeyNotFound) {
		return ErrNoToken
	}
	if err := s.ring.Remove(keyringItem); err != nil {
		return fmt.Errorf("deleting token from keyring: %w", err)
	}
	return nil
}
