package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Store reads and writes the state file. There is no file locking: a single
// process owns the file, and concurrent batches are excluded upstream.
type Store struct {
	path   string
	logger *slog.Logger
}

func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Load returns the persisted state. A missing file is a normal first run; a
// corrupt file is logged and discarded so the pipeline can keep going.
func (st *Store) Load() State {
	raw, err := os.ReadFile(st.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			st.logger.Warn("state file unreadable, starting fresh", "path", st.path, "error", err)
		}
		return Empty()
	}

	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		st.logger.Warn("state file corrupt, starting fresh", "path", st.path, "error", err)
		return Empty()
	}
	if s.Seen == nil {
		s.Seen = make(map[string]SeenRecord)
	}
	if s.Alerted == nil {
		s.Alerted = make(map[string]time.Time)
	}
	return s
}

// Save overwrites the state file with the full document, pretty-printed so
// it stays diffable by hand.
func (st *Store) Save(s State) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if dir := filepath.Dir(st.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	if err := os.WriteFile(st.path, raw, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}
