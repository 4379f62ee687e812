// Package auth manages the refreshable Twitch user credential: a JSON file
// holding the access/refresh token pair and its expiry, and a manager that
// returns a currently valid access token, refreshing through the Twitch
// identity endpoint when needed.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Credential is the persisted OAuth token pair. ExpiresAt is wall-clock
// Unix milliseconds. The whole record is replaced atomically on refresh.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Store persists the single live credential.
type Store interface {
	Load() (Credential, error)
	Save(Credential) error
}

// FileStore keeps the credential in a JSON file. Writes go to a temp file in
// the same directory followed by a rename, so a crash mid-write never leaves
// a truncated token file behind.
type FileStore struct {
	Path string
}

// Load reads the credential file. A missing file surfaces as os.ErrNotExist,
// which the manager maps to ErrNotAuthorized.
func (s FileStore) Load() (Credential, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return Credential{}, fmt.Errorf("load credential: %w", err)
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, fmt.Errorf("load credential: decode json: %w", err)
	}
	return cred, nil
}

// Save atomically replaces the credential file.
func (s FileStore) Save(cred Credential) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("save credential: create dir: %w", err)
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("save credential: encode json: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("save credential: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("save credential: write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("save credential: chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("save credential: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("save credential: rename: %w", err)
	}
	return nil
}
