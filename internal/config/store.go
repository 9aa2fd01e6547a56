package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Store persists a Configuration to dresapi.json.
// It provides atomic writes (write-tmp-then-rename), file locking (flock for
// cross-process, mutex for in-process) and never writes credentials.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewStore creates a new Store for the given file path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger,
	}
}

// Save writes cfg to disk.
//
// The write sequence is:
//  1. Acquire in-process mutex and flock on path+".lock"
//  2. Clear cfg.User and cfg.Password in memory
//  3. Marshal cfg as indented JSON with a trailing newline
//  4. Restore cfg.User and cfg.Password
//  5. Skip the write if the file already holds identical bytes
//  6. Write to path+".tmp" with 0600 permissions, fsync, rename
//
// Callers sharing cfg across goroutines must serialize Save with their own
// reads of the credential fields.
func (s *Store) Save(cfg *Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	lockPath := s.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer func() { _ = lockFile.Close() }()

	unlock, err := lockExclusive(lockFile)
	if err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer unlock()

	data, err := marshalWithoutCredentials(cfg)
	if err != nil {
		return err
	}

	if current, readErr := os.ReadFile(s.path); readErr == nil && xxhash.Sum64(current) == xxhash.Sum64(data) {
		s.logger.Debug("config unchanged, skipping write", "path", s.path)
		return nil
	}

	if err := s.writeAtomic(data); err != nil {
		return err
	}

	// Ensure 0600 after rename in case the file pre-existed with wider bits.
	if err := os.Chmod(s.path, 0600); err != nil {
		s.logger.Warn("failed to set permissions on config file", "error", err)
	}

	s.logger.Debug("config saved", "path", s.path)
	return nil
}

// marshalWithoutCredentials serializes cfg with user and password cleared,
// restoring both fields before returning.
func marshalWithoutCredentials(cfg *Configuration) ([]byte, error) {
	user, password := cfg.User, cfg.Password
	cfg.User, cfg.Password = "", ""
	defer func() {
		cfg.User, cfg.Password = user, password
	}()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return append(data, '\n'), nil
}

// writeAtomic writes data to a temp file, fsyncs it, and renames it
// over the target path. On any error the temp file is cleaned up.
func (s *Store) writeAtomic(data []byte) error {
	tmpPath := s.path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp to config: %w", err)
	}
	return nil
}

// Exists returns true if the config file exists on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Path returns the configured file path.
func (s *Store) Path() string {
	return s.path
}
