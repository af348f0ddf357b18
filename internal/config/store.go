package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tempscope/tempscope/internal/log"
)

// Store owns the on-disk config file. All reads and mutations go
// through it so the poll loop, the watcher and the dashboard see a
// consistent view.
type Store struct {
	path string
	mu   sync.RWMutex
	cfg  Config
}

// Load opens the config file at path, creating it with defaults if it
// does not exist. An unreadable or malformed file is reported and the
// defaults are used without overwriting it.
func Load(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}

	s := &Store{path: path, cfg: Default()}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.save(); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		log.Info("created default config", "path", path)
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("config unreadable, using defaults", "path", path, "error", err)
		return s, nil
	}

	// Decode over the defaults so missing keys keep their default value.
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		log.Warn("config malformed, using defaults", "path", path, "error", err)
		return s, nil
	}
	s.cfg = cfg

	if problems := cfg.Validate(); len(problems) > 0 {
		for _, p := range problems {
			log.Warn("config problem", "path", path, "problem", p)
		}
	}

	return s, nil
}

// Get returns a copy of the current config.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update applies fn to the config under lock and persists the result.
func (s *Store) Update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.cfg)
	return s.save()
}

// Reload re-reads the file from disk, keeping the current config on
// any failure.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

// Path returns the file path of the store.
func (s *Store) Path() string {
	return s.path
}

// save writes the config to disk. Caller must hold the write lock
// (or be the only reference, as in Load).
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to temp file first, then rename (atomic write)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath) // Clean up temp file
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
