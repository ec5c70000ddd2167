package event

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Recorder appends lifecycle events to per-session durable logs. The log is
// the source of truth; nothing here keeps running totals.
type Recorder struct {
	dataDir string
}

// NewRecorder returns a Recorder rooted at dataDir.
func NewRecorder(dataDir string) *Recorder {
	return &Recorder{dataDir: dataDir}
}

// SessionsDir is where active session logs live.
func (r *Recorder) SessionsDir() string {
	return filepath.Join(r.dataDir, "sessions")
}

// ArchiveDir is where finalized session logs are moved.
func (r *Recorder) ArchiveDir() string {
	return filepath.Join(r.SessionsDir(), "archive")
}

// OrphanedDir is where stale abandoned logs are swept.
func (r *Recorder) OrphanedDir() string {
	return filepath.Join(r.SessionsDir(), "orphaned")
}

// LogPath returns the active event log path for a session.
func (r *Recorder) LogPath(sessionID string) string {
	return filepath.Join(r.SessionsDir(), "active-"+sessionID+".jsonl")
}

// Finalized reports whether the session's active log has been archived.
func (r *Recorder) Finalized(sessionID string) bool {
	if _, err := os.Stat(r.LogPath(sessionID)); err == nil {
		return false
	}
	matches, _ := filepath.Glob(filepath.Join(r.ArchiveDir(), "*-"+sessionID+".jsonl"))
	return len(matches) > 0
}

// RecordStart appends an open tool-call record. A missing call ID gets a
// generated one so the open-call set stays keyed. Events for an already
// finalized session are dropped, not errors: the host fires hooks
// best-effort and must never be blocked.
func (r *Recorder) RecordStart(sessionID, callID, tool, detail string, ts time.Time) error {
	if r.Finalized(sessionID) {
		return nil
	}
	if callID == "" {
		callID = uuid.NewString()
	}
	return r.append(sessionID, Record{
		Kind:      KindStart,
		SessionID: sessionID,
		CallID:    callID,
		Tool:      tool,
		Detail:    detail,
		Timestamp: ts,
	})
}

// RecordEnd appends a close record. Matching against the open-call set
// happens at replay time, so an end with no matching start still lands in
// the log and surfaces as a flagged orphan rather than being rejected.
func (r *Recorder) RecordEnd(sessionID, callID, tool string, ts time.Time) error {
	if r.Finalized(sessionID) {
		return nil
	}
	return r.append(sessionID, Record{
		Kind:      KindEnd,
		SessionID: sessionID,
		CallID:    callID,
		Tool:      tool,
		Timestamp: ts,
	})
}

// RecordStop appends the terminal stop record. Returns false when the
// session was already finalized, in which case the stop is a no-op.
func (r *Recorder) RecordStop(sessionID string, ts time.Time) (bool, error) {
	if r.Finalized(sessionID) {
		return false, nil
	}
	err := r.append(sessionID, Record{
		Kind:      KindStop,
		SessionID: sessionID,
		Timestamp: ts,
	})
	return err == nil, err
}

func (r *Recorder) append(sessionID string, rec Record) error {
	if err := os.MkdirAll(r.SessionsDir(), 0o755); err != nil {
		return fmt.Errorf("creating sessions dir: %w", err)
	}

	f, err := os.OpenFile(r.LogPath(sessionID), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

// ReadLog reads and decodes the session's event log in record order.
// Malformed lines are skipped; a missing log yields an empty slice.
func (r *Recorder) ReadLog(sessionID string) ([]Record, error) {
	return readRecords(r.LogPath(sessionID))
}

func readRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// Load replays the session's full event log into session state.
func (r *Recorder) Load(sessionID string) (*Session, error) {
	records, err := r.ReadLog(sessionID)
	if err != nil {
		return nil, err
	}
	return Replay(sessionID, records), nil
}

// Archive moves the active log into the archive dir, marking the session
// finalized. Archiving an already finalized session is a no-op.
func (r *Recorder) Archive(sessionID string, when time.Time) (string, error) {
	src := r.LogPath(sessionID)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	if err := os.MkdirAll(r.ArchiveDir(), 0o755); err != nil {
		return "", fmt.Errorf("creating archive dir: %w", err)
	}
	dst := filepath.Join(r.ArchiveDir(), when.Format("2006-01-02-15-04-05")+"-"+sessionID+".jsonl")
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("archiving event log: %w", err)
	}
	return dst, nil
}

// ActiveSessions lists session IDs with an active event log, most recently
// modified first.
func (r *Recorder) ActiveSessions() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(r.SessionsDir(), "active-*.jsonl"))
	if err != nil {
		return nil, err
	}

	type entry struct {
		id    string
		mtime time.Time
	}
	entries := make([]entry, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		base := filepath.Base(path)
		id := base[len("active-") : len(base)-len(".jsonl")]
		entries = append(entries, entry{id: id, mtime: info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].mtime.After(entries[j].mtime)
	})

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}

// SweepOrphaned moves active logs whose last write predates cutoff into the
// orphaned dir. Returns the number of logs moved.
func (r *Recorder) SweepOrphaned(cutoff time.Time) (int, error) {
	matches, err := filepath.Glob(filepath.Join(r.SessionsDir(), "active-*.jsonl"))
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.MkdirAll(r.OrphanedDir(), 0o755); err != nil {
			return moved, fmt.Errorf("creating orphaned dir: %w", err)
		}
		if err := os.Rename(path, filepath.Join(r.OrphanedDir(), filepath.Base(path))); err != nil {
			continue
		}
		moved++
	}
	return moved, nil
}
