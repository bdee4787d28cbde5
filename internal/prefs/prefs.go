// Package prefs persists the one user preference the voice client keeps:
// the preferred microphone, valid for 30 days after it was chosen.
package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Expiry is how long a stored preference stays valid.
const Expiry = 30 * 24 * time.Hour

type file struct {
	PreferredMic string    `yaml:"preferred_mic"`
	Expires      time.Time `yaml:"expires"`
}

// Store is a YAML-file backed preference store.
type Store struct {
	path string
	now  func() time.Time

	mu   sync.Mutex
	data file
}

// DefaultPath returns <user config dir>/proxvoice/prefs.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "proxvoice", "prefs.yaml"), nil
}

// Open loads path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	return open(path, time.Now)
}

func open(path string, now func() time.Time) (*Store, error) {
	s := &Store{path: path, now: now}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse preferences %s: %w", path, err)
	}
	return s, nil
}

// PreferredMic returns the stored device id, or "" when unset or expired.
func (s *Store) PreferredMic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.PreferredMic == "" || !s.now().Before(s.data.Expires) {
		return ""
	}
	return s.data.PreferredMic
}

// SetPreferredMic stores id and renews the expiry.
func (s *Store) SetPreferredMic(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = file{PreferredMic: id, Expires: s.now().Add(Expiry)}

	raw, err := yaml.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create preferences dir: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write preferences %s: %w", s.path, err)
	}
	return nil
}
