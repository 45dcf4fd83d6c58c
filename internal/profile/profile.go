// Package profile validates the user profile and persists it locally so
// the client can skip the registration prompt on the next run.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pairline/pairline/internal/protocol"
)

var ErrNotFound = errors.New("no saved profile")

const (
	minAge = 13
	maxAge = 120
)

// Validate checks a profile before it is sent to the server.
func Validate(p protocol.Profile) error {
	if p.FullName == "" {
		return fmt.Errorf("full name must not be empty")
	}
	age, err := strconv.Atoi(p.Age)
	if err != nil {
		return fmt.Errorf("age must be a number, got %q", p.Age)
	}
	if age < minAge || age > maxAge {
		return fmt.Errorf("age must be between %d and %d", minAge, maxAge)
	}
	if p.Gender == "" {
		return fmt.Errorf("gender must not be empty")
	}
	return nil
}

// Store persists the profile as JSON in the user config directory.
type Store struct {
	path string
}

// NewStore creates a store rooted at the default config location.
func NewStore() (*Store, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	return &Store{path: filepath.Join(dir, "pairline", "profile.json")}, nil
}

// NewStoreAt creates a store with an explicit file path.
func NewStoreAt(path string) *Store {
	return &Store{path: path}
}

// Load reads the saved profile. Returns ErrNotFound when none exists.
func (s *Store) Load() (protocol.Profile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return protocol.Profile{}, ErrNotFound
		}
		return protocol.Profile{}, fmt.Errorf("read profile: %w", err)
	}
	var p protocol.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return protocol.Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	if err := Validate(p); err != nil {
		return protocol.Profile{}, fmt.Errorf("saved profile invalid: %w", err)
	}
	return p, nil
}

// Save validates and writes the profile, creating the directory when
// needed.
func (s *Store) Save(p protocol.Profile) error {
	if err := Validate(p); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}
