// Package store persists the per-machine postponement counter.
//
// The counter is a plain-text file holding a single non-negative integer. It
// survives reboots and process restarts and is only ever reset externally
// when a new upgrade campaign starts. The store is single-writer: the
// workflow runs at most once per scheduled invocation, so no file locking is
// attempted. Concurrent invocations are a deployment error, not a supported
// mode.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/winseng/upgrade-agent/internal/logging"
)

var log = logging.L("store")

// Store is a durable counter of postponements used on this machine.
type Store struct {
	path string
}

// New creates a Store backed by the given file path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the current postponement count. A missing file means no
// postponements have been used yet; in that case 0 is persisted so the file
// exists for operators to inspect, then returned.
func (s *Store) Load() (int, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		if writeErr := s.write(0); writeErr != nil {
			// Still a valid count of 0 even if it could not be recorded.
			log.Warn("failed to initialize postponement counter", "path", s.path, "error", writeErr)
		}
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read postponement counter: %w", err)
	}

	count, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse postponement counter %q: %w", strings.TrimSpace(string(data)), err)
	}
	if count < 0 {
		return 0, fmt.Errorf("postponement counter is negative: %d", count)
	}

	return count, nil
}

// Increment durably adds one to the stored count and returns the new value.
// The write is atomic (temp file, fsync, rename) so a crash after return
// cannot lose the increment.
func (s *Store) Increment() (int, error) {
	count, err := s.Load()
	if err != nil {
		return 0, err
	}

	count++
	if err := s.write(count); err != nil {
		return 0, err
	}

	return count, nil
}

func (s *Store) write(count int) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create counter directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp counter file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := fmt.Fprintf(tmp, "%d\n", count); err != nil {
		cleanup()
		return fmt.Errorf("write counter: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync counter: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close counter: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace counter: %w", err)
	}
	if err := os.Chmod(s.path, 0644); err != nil {
		return fmt.Errorf("chmod counter: %w", err)
	}

	return nil
}
