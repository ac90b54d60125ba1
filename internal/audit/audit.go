// Package audit keeps a local, tamper-evident record of what the upgrade
// workflow decided and why. Compliance reviews of a forced OS upgrade start
// with "who postponed, when, and what finally triggered the install" — this
// trail answers that without any fleet backend.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/winseng/upgrade-agent/internal/logging"
)

var log = logging.L("audit")

// Event types recorded by the workflow.
const (
	EventRunStarted      = "run_started"
	EventGateAbort       = "gate_abort"
	EventGateWait        = "gate_wait"
	EventPromptShown     = "prompt_shown"
	EventDecision        = "decision"
	EventPostponed       = "postponed"
	EventDeferred        = "deferred"
	EventInstallLaunched = "install_launched"
	EventRunExit         = "run_exit"
)

// criticalEvents are event types that require fsync after writing.
var criticalEvents = map[string]bool{
	EventPostponed:       true,
	EventInstallLaunched: true,
	EventRunExit:         true,
}

// Entry is a single audit record.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	EventType string         `json:"eventType"`
	RunID     string         `json:"runId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	PrevHash  string         `json:"prevHash"`
	EntryHash string         `json:"entryHash"`
}

// Trail writes tamper-evident JSONL audit records with a SHA-256 hash chain.
type Trail struct {
	mu       sync.Mutex
	file     *os.File
	filePath string
	maxSize  int64
	written  int64
	prevHash string
}

// Open creates or appends to the audit trail at {dir}/audit.jsonl.
func Open(dir string, maxSizeMB int) (*Trail, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}

	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}

	t := &Trail{
		filePath: filepath.Join(dir, "audit.jsonl"),
		maxSize:  int64(maxSizeMB) * 1024 * 1024,
		prevHash: "genesis",
	}

	if err := t.openFile(); err != nil {
		return nil, err
	}

	return t, nil
}

// Record writes one audit entry with hash-chain linking. The chain only
// advances after a successful write, so a failed write never leaves a gap.
// Safe to call on a nil receiver (no-op), keeping the workflow free of
// audit-availability conditionals.
func (t *Trail) Record(eventType, runID string, details map[string]any) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		EventType: eventType,
		RunID:     runID,
		Details:   details,
		PrevHash:  t.prevHash,
	}

	entryHash, err := computeHash(entry)
	if err != nil {
		log.Error("failed to hash audit entry", "error", err, "eventType", eventType)
		return
	}
	entry.EntryHash = entryHash

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error("failed to marshal audit entry", "error", err, "eventType", eventType)
		return
	}
	data = append(data, '\n')

	if t.written+int64(len(data)) > t.maxSize {
		if err := t.truncateForReuse(); err != nil {
			log.Error("audit trail rollover failed", "error", err)
			return
		}
	}

	n, err := t.file.Write(data)
	if err != nil {
		log.Error("failed to write audit entry", "error", err, "eventType", eventType)
		return
	}
	t.written += int64(n)
	t.prevHash = entry.EntryHash

	if criticalEvents[eventType] {
		if err := t.file.Sync(); err != nil {
			log.Error("failed to fsync audit entry", "error", err, "eventType", eventType)
		}
	}
}

// Close flushes and closes the trail. Safe on a nil receiver.
func (t *Trail) Close() error {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file != nil {
		return t.file.Close()
	}
	return nil
}

// computeHash produces the SHA-256 hash for an entry. Fields are
// length-prefixed so no field value can masquerade as a delimiter.
func computeHash(entry Entry) (string, error) {
	h := sha256.New()
	for _, field := range []string{entry.Timestamp, entry.EventType, entry.RunID, entry.PrevHash} {
		fmt.Fprintf(h, "%d:%s", len(field), field)
	}
	if entry.Details != nil {
		detailBytes, err := json.Marshal(entry.Details)
		if err != nil {
			return "", fmt.Errorf("marshal details for hash: %w", err)
		}
		fmt.Fprintf(h, "%d:", len(detailBytes))
		h.Write(detailBytes)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (t *Trail) openFile() error {
	f, err := os.OpenFile(t.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open audit trail: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat audit trail: %w", err)
	}

	t.file = f
	t.written = info.Size()
	return nil
}

// truncateForReuse archives the full trail to audit.jsonl.1 and starts a new
// chain. One generation of history is enough here: a full upgrade campaign
// produces a few hundred entries at most.
func (t *Trail) truncateForReuse() error {
	if t.file != nil {
		t.file.Close()
	}

	backup := t.filePath + ".1"
	os.Remove(backup)
	if err := os.Rename(t.filePath, backup); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to archive audit trail", "error", err)
	}

	t.prevHash = "genesis"
	return t.openFile()
}
