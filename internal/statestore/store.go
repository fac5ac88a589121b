// Package statestore persists the ledger as a JSON snapshot with atomic
// replace-on-write and rotating backups. A crash can never leave a
// half-written primary: writes land in a temp file that is renamed over the
// previous snapshot only after the old one has been rotated away.
package statestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/skittixch/GeminiTrader-sub000/internal/ledger"
	"github.com/skittixch/GeminiTrader-sub000/internal/logger"
)

const snapshotVersion = 1

// DefaultBackups is how many prior snapshots are kept when the caller does
// not say otherwise.
const DefaultBackups = 3

type snapshot struct {
	Version int            `json:"version"`
	SavedAt time.Time      `json:"saved_at"`
	Ledger  *ledger.Ledger `json:"ledger"`
}

// Store reads and writes ledger snapshots at a fixed path.
type Store struct {
	path    string
	backups int
	schema  *jsonschema.Schema
}

// New builds a store writing to path and keeping up to backups rotated
// copies (path.bak1 is the newest).
func New(path string, backups int) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("statestore: path is required")
	}
	if backups < 0 {
		backups = 0
	}
	schema, err := jsonschema.CompileString("snapshot.json", snapshotSchema)
	if err != nil {
		return nil, fmt.Errorf("statestore: compiling snapshot schema: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("statestore: creating state dir: %w", err)
		}
	}
	return &Store{path: path, backups: backups, schema: schema}, nil
}

// Save atomically replaces the primary snapshot and rotates backups. Only
// ledger state is written; transient caches never reach disk.
func (s *Store) Save(l *ledger.Ledger) error {
	if l == nil {
		return fmt.Errorf("statestore: nil ledger")
	}
	snap := snapshot{
		Version: snapshotVersion,
		SavedAt: time.Now().UTC(),
		Ledger:  l.Clone(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("statestore: marshal snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("statestore: write temp snapshot: %w", err)
	}
	s.rotate()
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("statestore: replace snapshot: %w", err)
	}
	return nil
}

// rotate shifts path.bak1..bakN-1 up one slot and moves the current primary
// into bak1. Missing files are skipped; rotation failures are logged, not
// fatal, because the fresh snapshot still lands.
func (s *Store) rotate() {
	if s.backups <= 0 {
		return
	}
	for i := s.backups - 1; i >= 1; i-- {
		from := s.backupPath(i)
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if err := os.Rename(from, s.backupPath(i+1)); err != nil {
			logger.Warnf("statestore: rotating %s failed: %v", from, err)
		}
	}
	if _, err := os.Stat(s.path); err == nil {
		if err := os.Rename(s.path, s.backupPath(1)); err != nil {
			logger.Warnf("statestore: archiving primary failed: %v", err)
		}
	}
}

// Load returns the newest readable snapshot, falling back through backups.
// found is false when no snapshot exists at all or every copy is invalid;
// the caller starts fresh in both cases.
func (s *Store) Load() (*ledger.Ledger, bool, error) {
	candidates := []string{s.path}
	for i := 1; i <= s.backups; i++ {
		candidates = append(candidates, s.backupPath(i))
	}
	sawAny := false
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				logger.Warnf("statestore: reading %s: %v", path, err)
				sawAny = true
			}
			continue
		}
		sawAny = true
		l, err := s.decode(data)
		if err != nil {
			logger.Warnf("statestore: snapshot %s is invalid, trying next: %v", path, err)
			continue
		}
		if path != s.path {
			logger.Warnf("statestore: recovered state from backup %s", path)
		}
		return l, true, nil
	}
	if sawAny {
		logger.Errorf("statestore: no readable snapshot among %d copies, starting fresh", len(candidates))
	}
	return nil, false, nil
}

func (s *Store) decode(data []byte) (*ledger.Ledger, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := s.schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	if snap.Ledger == nil {
		return nil, fmt.Errorf("snapshot has no ledger")
	}
	return snap.Ledger, nil
}

func (s *Store) backupPath(i int) string {
	return fmt.Sprintf("%s.bak%d", s.path, i)
}
