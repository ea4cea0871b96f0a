// Package configstore persists the whitelisted subset of AgentTalk's
// Runtime State to a JSON file, atomically.
//
// Grounded on agenttalk/config_loader.py: load never fails (missing or
// invalid file yields defaults), save writes a temp file then renames over
// the target, and a single mutex spans the write+rename pair.
package configstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/agenttalk/agenttalk/internal/state"
)

// Store owns the on-disk config file location and serializes writes.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *log.Logger
}

// New returns a Store rooted at <dir>/config.json. The directory is created
// if absent.
func New(dir string, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("configstore: create config dir: %w", err)
	}
	return &Store{path: filepath.Join(dir, "config.json"), logger: logger}, nil
}

// Load reads the persisted config into s. Missing file, unreadable file, or
// invalid JSON all resolve to "keep current defaults" — never an error the
// caller must treat as fatal (§4.7 step 3).
func (st *Store) Load(s *state.State) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if !os.IsNotExist(err) {
			st.logger.Warn("config load failed, using defaults", "path", st.path, "err", err)
		}
		return
	}
	var p state.Persistable
	if err := json.Unmarshal(data, &p); err != nil {
		st.logger.Warn("config file invalid, using defaults", "path", st.path, "err", err)
		return
	}
	s.ApplyPersistable(p)
}

// Save writes the current persistable state atomically: write to a temp
// file alongside the target, then rename over it. Callers hold no lock of
// their own; Save serializes internally.
func (st *Store) Save(s *state.State) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	data, err := json.MarshalIndent(s.ToPersistable(), "", "  ")
	if err != nil {
		return fmt.Errorf("configstore: marshal: %w", err)
	}

	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("configstore: write temp file: %w", err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("configstore: rename temp file: %w", err)
	}
	return nil
}

// DefaultDir returns the per-user config directory AgentTalk uses for its
// config file, PID lock, log file, and models directory (§6).
func DefaultDir() string {
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, "AgentTalk")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "agenttalk")
}
