// Package transcript reads host-owned session transcripts incrementally and
// extracts authoritative per-turn token usage. The engine never writes to a
// transcript.
package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Reader locates and parses transcripts under the host agent's data dir.
// Cursor state lives in stateDir so polling never re-reads from the start.
type Reader struct {
	agentDir string
	stateDir string
}

// NewReader returns a Reader over agentDir, keeping cursors under stateDir.
func NewReader(agentDir, stateDir string) *Reader {
	return &Reader{agentDir: agentDir, stateDir: stateDir}
}

// Result is the output of a full transcript read.
type Result struct {
	Turns       []Turn // deduplicated, in first-appearance order
	ParseErrors int
	Model       string // last non-empty model identifier seen
	Found       bool   // false when no transcript exists yet
}

// Locate searches <agentDir>/projects/*/<sessionID>.jsonl for the session's
// transcript. Returns "" when the host hasn't written one yet.
func (r *Reader) Locate(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	projectsDir := filepath.Join(r.agentDir, "projects")
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		candidate := filepath.Join(projectsDir, e.Name(), sessionID+".jsonl")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// ReadAll parses the session's whole transcript, deduplicating turns by ID
// with the last occurrence winning (the host re-emits identical usage for
// streamed responses; the final record carries the billed figures).
// A missing transcript degrades to an empty, found=false result.
func (r *Reader) ReadAll(sessionID string) (*Result, error) {
	path := r.Locate(sessionID)
	if path == "" {
		return &Result{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Result{}, nil
		}
		return nil, fmt.Errorf("reading transcript: %w", err)
	}

	res := &Result{Found: true}
	turns := parseLines(data, res)
	res.Turns = turns
	return res, nil
}

// PollResult is the output of one incremental poll.
type PollResult struct {
	Turns       []Turn // turns newly appended since the last poll
	ParseErrors int
	Offset      int64 // cursor position after this poll
}

// Poll reads only bytes appended since the previous poll, advancing the
// session's durable cursor past complete lines. A truncated trailing record
// stays before the cursor and is retried next poll. A vanished or shrunken
// transcript resets the cursor to zero. Turns returned across polls may
// repeat IDs when the host re-emits a record; consumers joining across polls
// dedupe by Turn.ID.
func (r *Reader) Poll(sessionID string) (*PollResult, error) {
	path := r.Locate(sessionID)
	if path == "" {
		return &PollResult{}, nil
	}

	offset := r.loadCursor(sessionID)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PollResult{}, nil
		}
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < offset {
		offset = 0 // transcript replaced; restart from scratch
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking transcript: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}

	// Only consume complete records. Anything after the last newline may
	// still be mid-flush by the host.
	complete := bytes.LastIndexByte(data, '\n')
	if complete < 0 {
		return &PollResult{Offset: offset}, nil
	}
	data = data[:complete+1]

	res := &Result{}
	turns := parseLines(data, res)

	newOffset := offset + int64(len(data))
	if err := r.saveCursor(sessionID, newOffset); err != nil {
		return nil, err
	}

	return &PollResult{Turns: turns, ParseErrors: res.ParseErrors, Offset: newOffset}, nil
}

// ResetCursor discards the session's cursor state.
func (r *Reader) ResetCursor(sessionID string) error {
	err := os.Remove(r.cursorPath(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (r *Reader) cursorPath(sessionID string) string {
	return filepath.Join(r.stateDir, "cursors", sessionID+".offset")
}

func (r *Reader) loadCursor(sessionID string) int64 {
	data, err := os.ReadFile(r.cursorPath(sessionID))
	if err != nil {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// saveCursor persists the offset, never moving it backwards.
func (r *Reader) saveCursor(sessionID string, offset int64) error {
	if offset <= r.loadCursor(sessionID) {
		return nil
	}
	dir := filepath.Dir(r.cursorPath(sessionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cursor dir: %w", err)
	}
	return os.WriteFile(r.cursorPath(sessionID), []byte(strconv.FormatInt(offset, 10)), 0o600)
}

// parseLines extracts deduplicated turns from raw transcript bytes.
func parseLines(data []byte, res *Result) []Turn {
	byID := make(map[string]int) // ID -> index in turns
	var turns []Turn

	for len(data) > 0 {
		var line []byte
		if nl := bytes.IndexByte(data, '\n'); nl >= 0 {
			line, data = data[:nl], data[nl+1:]
		} else {
			line, data = data, nil
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		if !assistantTurn(line) {
			// Valid records of other types (user, system, summary) are
			// irrelevant here; anything that is not even JSON is malformed.
			if !json.Valid(line) {
				res.ParseErrors++
			}
			continue
		}

		var entry RawEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			res.ParseErrors++
			continue
		}
		if entry.Message == nil || entry.Message.Usage == nil {
			continue
		}

		id := entry.RequestID
		if id == "" {
			id = entry.Message.ID
		}
		if id == "" {
			continue
		}

		u := entry.Message.Usage
		cacheWrite := u.CacheCreationInputTokens
		if u.CacheCreation != nil {
			cacheWrite = u.CacheCreation.Ephemeral5mInputTokens + u.CacheCreation.Ephemeral1hInputTokens
		}

		var ts time.Time
		if entry.Timestamp != "" {
			ts, _ = time.Parse(time.RFC3339Nano, entry.Timestamp)
		}

		turn := Turn{
			ID:         id,
			Model:      entry.Message.Model,
			Timestamp:  ts,
			Input:      u.InputTokens,
			Output:     u.OutputTokens,
			CacheWrite: cacheWrite,
			CacheRead:  u.CacheReadInputTokens,
		}

		if entry.Message.Model != "" {
			res.Model = entry.Message.Model
		}

		if idx, seen := byID[id]; seen {
			turn.Ordinal = turns[idx].Ordinal
			turns[idx] = turn // last record per ID carries final billed usage
			continue
		}
		turn.Ordinal = len(turns)
		byID[id] = len(turns)
		turns = append(turns, turn)
	}

	return turns
}
