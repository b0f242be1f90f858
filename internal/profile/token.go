package profile

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Credential is the opaque bearer token plus the identity it was issued for.
// The backend owns its meaning; the client only stores and forwards it.
type Credential struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// TokenStore reads and writes the credential file of one profile.
// The sync engine only reads it; login and logout own the writes.
type TokenStore struct {
	path string
}

// NewTokenStore creates a token store backed by the given file path.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Load reads the stored credential. Returns nil without error when no
// credential has been saved.
func (s *TokenStore) Load() (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, err
	}
	if cred.Token == "" {
		return nil, nil
	}
	return &cred, nil
}

// Save writes the credential atomically (write to temp file, then rename).
func (s *TokenStore) Save(cred *Credential) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Clear removes the credential file. Missing file is not an error.
func (s *TokenStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Token returns the bearer token and whether one is present.
func (s *TokenStore) Token() (string, bool) {
	cred, err := s.Load()
	if err != nil || cred == nil {
		return "", false
	}
	return cred.Token, true
}

// UserID returns the stored account id, or empty when logged out.
func (s *TokenStore) UserID() string {
	cred, err := s.Load()
	if err != nil || cred == nil {
		return ""
	}
	return cred.UserID
}
