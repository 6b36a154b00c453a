// Package store is the persisted key-value settings store: a JSON file
// written atomically on every change.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
)

// Well-known keys.
const (
	KeyHistory     = "history"
	KeyLanguage    = "language"
	KeyPrompt      = "prompt"
	KeyCloud       = "cloud"
	KeyTranslate   = "translate"
	KeyAutoPaste   = "autopaste"
	KeySounds      = "sounds"
	KeyCreativity  = "creativity"
	KeyCredential  = "credential" // obfuscated, see Obfuscator
)

type Store struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// Open loads the store file, creating parent directories as needed. A
// missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: map[string]string{}}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading store: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.values); err != nil {
			return nil, fmt.Errorf("parsing store: %w", err)
		}
	}
	return s, nil
}

func (s *Store) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

func (s *Store) GetDefault(key, def string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

// Set updates a key and writes the file. The write is atomic so a crash
// mid-save never corrupts previously persisted state.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	data, err := json.MarshalIndent(s.values, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("serializing store: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing store: %w", err)
	}
	return nil
}

// LoadHistory and SaveHistory let the store act as the history repository.
func (s *Store) LoadHistory() (string, error) { return s.Get(KeyHistory), nil }
func (s *Store) SaveHistory(blob string) error {
	return s.Set(KeyHistory, blob)
}

// DefaultPath returns the OS-specific store location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "jot", "settings.json"), nil
}
