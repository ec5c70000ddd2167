package live

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/kspervik/agentmeter/internal/config"
	"github.com/kspervik/agentmeter/internal/event"
	"github.com/kspervik/agentmeter/internal/report"
	"github.com/kspervik/agentmeter/internal/transcript"
)

func TestDiffSnapshots(t *testing.T) {
	prev := Snapshot{
		Calls:        10,
		APICalls:     24,
		Tokens:       1_000_000,
		TotalCostUSD: 1.05,
	}
	curr := Snapshot{
		Calls:        13,
		APICalls:     30,
		Tokens:       1_250_000,
		TotalCostUSD: 1.31,
	}

	delta := diffSnapshots(prev, curr)
	if delta.Calls != 3 {
		t.Fatalf("Calls delta = %d, want 3", delta.Calls)
	}
	if delta.APICalls != 6 {
		t.Fatalf("APICalls delta = %d, want 6", delta.APICalls)
	}
	if delta.Tokens != 250_000 {
		t.Fatalf("Tokens delta = %d, want 250000", delta.Tokens)
	}
	if math.Abs(delta.TotalCostUSD-0.26) > 1e-9 {
		t.Fatalf("Cost delta = %.2f, want 0.26", delta.TotalCostUSD)
	}
	if delta.isZero() {
		t.Fatal("delta unexpectedly reported as zero")
	}
}

func TestPublishEventRingBuffer(t *testing.T) {
	s := New(Config{Interval: 10 * time.Second, EventsBuffer: 2}, nil, nil, nil)

	s.publishEvent(Event{ID: 1})
	s.publishEvent(Event{ID: 2})
	s.publishEvent(Event{ID: 3})

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.events) != 2 {
		t.Fatalf("events len = %d, want 2", len(s.events))
	}
	if s.events[0].ID != 2 || s.events[1].ID != 3 {
		t.Fatalf("events ring contains IDs [%d, %d], want [2, 3]", s.events[0].ID, s.events[1].ID)
	}
}

type stubReports struct {
	report *report.SessionReport
}

func (s *stubReports) BuildReport(sessionID string, _ time.Time) (*report.SessionReport, error) {
	r := *s.report
	r.SessionID = sessionID
	return &r, nil
}

type stubSessions struct {
	active []string
}

func (s *stubSessions) ActiveSessions() ([]string, error) {
	return s.active, nil
}

func (s *stubSessions) LogPath(string) string { return "" }

func TestPollOnce_PublishesSnapshotThenDeltas(t *testing.T) {
	reports := &stubReports{report: &report.SessionReport{
		Live:      true,
		CallCount: 2,
		Turns:     3,
		TotalCost: 0.10,
		Usage:     report.TokenUsage{Input: 100, Output: 50},
	}}
	s := New(Config{Interval: 10 * time.Second}, reports, &stubSessions{active: []string{"s1"}}, nil)

	s.pollOnce()
	s.mu.RLock()
	if len(s.events) != 1 || s.events[0].Type != "snapshot" {
		t.Fatalf("events after first poll = %+v", s.events)
	}
	s.mu.RUnlock()

	// Nothing changed, so no new event.
	s.pollOnce()
	s.mu.RLock()
	if len(s.events) != 1 {
		t.Fatalf("unchanged poll emitted an event: %+v", s.events)
	}
	s.mu.RUnlock()

	reports.report.Turns = 4
	reports.report.TotalCost = 0.15
	s.pollOnce()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.events) != 2 {
		t.Fatalf("changed poll emitted %d events, want 2 total", len(s.events))
	}
	ev := s.events[1]
	if ev.Type != "usage_delta" || ev.Delta.APICalls != 1 {
		t.Fatalf("delta event = %+v", ev)
	}
}

func TestPollOnce_NoActiveSessionRecordsError(t *testing.T) {
	s := New(Config{Interval: 10 * time.Second}, &stubReports{report: &report.SessionReport{}}, &stubSessions{}, nil)

	s.pollOnce()

	status := s.snapshotStatus()
	if status.LastError == "" {
		t.Fatal("expected LastError with no active session")
	}
	if status.PollCount != 1 {
		t.Fatalf("PollCount = %d, want 1", status.PollCount)
	}
}

func turnLine(reqID string, input, output int64) string {
	return `{"type":"assistant","timestamp":"2025-06-01T10:01:00Z","requestId":"` + reqID +
		`","message":{"id":"m-` + reqID + `","model":"claude-sonnet-4-6","usage":{"input_tokens":` +
		strconv.FormatInt(input, 10) + `,"output_tokens":` + strconv.FormatInt(output, 10) +
		`,"cache_creation_input_tokens":0,"cache_read_input_tokens":0}}}` + "\n"
}

// Idle polls must go through the transcript cursor instead of re-reading the
// whole file, and must not rebuild the report when nothing changed.
func TestPollOnce_AdvancesTranscriptCursor(t *testing.T) {
	dataDir := t.TempDir()
	agentDir := t.TempDir()
	rates, err := config.LoadRates(filepath.Join(t.TempDir(), "rates.toml"))
	if err != nil {
		t.Fatal(err)
	}
	rec := event.NewRecorder(dataDir)
	rd := transcript.NewReader(agentDir, dataDir)
	agg := report.NewAggregator(rec, rd, rates)

	const sid = "s1"
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if err := rec.RecordStart(sid, "c1", "Edit", "main.go", base); err != nil {
		t.Fatal(err)
	}
	if err := rec.RecordEnd(sid, "c1", "Edit", base.Add(5*time.Second)); err != nil {
		t.Fatal(err)
	}

	projectDir := filepath.Join(agentDir, "projects", "-home-user-demo")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatal(err)
	}
	transcriptPath := filepath.Join(projectDir, sid+".jsonl")
	first := turnLine("req1", 2100, 471)
	if err := os.WriteFile(transcriptPath, []byte(first), 0o600); err != nil {
		t.Fatal(err)
	}

	s := New(Config{Interval: 10 * time.Second, SessionID: sid}, agg, rec, rd)

	s.pollOnce()
	s.pollOnce()
	s.pollOnce()

	cursorPath := filepath.Join(dataDir, "cursors", sid+".offset")
	data, err := os.ReadFile(cursorPath)
	if err != nil {
		t.Fatalf("no cursor after polls: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != strconv.Itoa(len(first)) {
		t.Fatalf("cursor = %s, want %d", got, len(first))
	}

	s.mu.RLock()
	if len(s.events) != 1 || s.events[0].Type != "snapshot" {
		t.Fatalf("idle polls emitted extra events: %+v", s.events)
	}
	s.mu.RUnlock()

	// New turn appended past the cursor triggers a rebuild.
	second := turnLine("req2", 900, 120)
	f, err := os.OpenFile(transcriptPath, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(second); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	s.pollOnce()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.events) != 2 {
		t.Fatalf("poll after transcript append emitted %d events, want 2", len(s.events))
	}
	ev := s.events[1]
	if ev.Type != "usage_delta" || ev.Delta.APICalls != 1 {
		t.Fatalf("delta event = %+v", ev)
	}

	data, err = os.ReadFile(cursorPath)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != strconv.Itoa(len(first)+len(second)) {
		t.Fatalf("cursor = %s, want %d", got, len(first)+len(second))
	}
}
