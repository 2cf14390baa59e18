package provider

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned by a TokenStore that holds no token yet.
var ErrNoToken = errors.New("no stored token")

// TokenStore persists the mailbox OAuth token between runs.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(token *oauth2.Token) error
	Description() string
}

// FileTokenStore keeps the token as JSON in a file readable only by the owner.
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

// NewFileTokenStore creates a store backed by path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Load reads the token file.
func (s *FileTokenStore) Load() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode token file %s: %w", s.path, err)
	}
	return &token, nil
}

// Save replaces the token file atomically.
func (s *FileTokenStore) Save(token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".token-*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write token: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// Description names the storage location.
func (s *FileTokenStore) Description() string {
	return "file " + s.path
}

const (
	keyringService = "ticket-triage"
	keyringUser    = "gmail-token"
)

// ErrKeyringUnavailable indicates the system keyring could not be used.
var ErrKeyringUnavailable = errors.New("system keyring unavailable")

// KeyringTokenStore keeps the token in the system keyring.
type KeyringTokenStore struct {
	service string
	user    string
}

// NewKeyringTokenStore creates a keyring store. An empty account uses the default.
func NewKeyringTokenStore(account string) *KeyringTokenStore {
	if account == "" {
		account = keyringUser
	}
	return &KeyringTokenStore{service: keyringService, user: account}
}

// Load reads the token from the keyring.
func (s *KeyringTokenStore) Load() (*oauth2.Token, error) {
	secret, err := keyring.Get(s.service, s.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(secret), &token); err != nil {
		return nil, fmt.Errorf("decode keyring token: %w", err)
	}
	return &token, nil
}

// Save writes the token to the keyring.
func (s *KeyringTokenStore) Save(token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := keyring.Set(s.service, s.user, string(data)); err != nil {
		return fmt.Errorf("%w: storing token: %v", ErrKeyringUnavailable, err)
	}
	return nil
}

// Description names the storage location.
func (s *KeyringTokenStore) Description() string {
	return "keyring " + s.service + "/" + s.user
}
