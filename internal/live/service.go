// Package live provides the long-running session monitor service.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/kspervik/agentmeter/internal/report"
	"github.com/kspervik/agentmeter/internal/transcript"
)

// Config controls the monitor runtime behavior.
type Config struct {
	SessionID    string // fixed session; empty follows the most recent active one
	Addr         string
	Interval     time.Duration
	EventsBuffer int
}

// Snapshot is the compact live view of one session, carried in status
// responses and stream events.
type Snapshot struct {
	At                time.Time `json:"at"`
	SessionID         string    `json:"session_id"`
	Live              bool      `json:"live"`
	WallClockSecs     int64     `json:"wall_clock_secs"`
	Calls             int       `json:"calls"`
	OpenCalls         int       `json:"open_calls"`
	APICalls          int       `json:"api_calls"`
	Tokens            int64     `json:"tokens"`
	TotalCostUSD      float64   `json:"total_cost_usd"`
	SavingsUSD        float64   `json:"savings_usd"`
	PeakContextTokens int64     `json:"peak_context_tokens"`
}

// Delta is the change between two consecutive snapshots.
type Delta struct {
	Calls        int     `json:"calls"`
	APICalls     int     `json:"api_calls"`
	Tokens       int64   `json:"tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

func (d Delta) isZero() bool {
	return d.Calls == 0 &&
		d.APICalls == 0 &&
		d.Tokens == 0 &&
		d.TotalCostUSD == 0
}

// Event is emitted whenever the session snapshot changes.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
	Delta     Delta     `json:"delta"`
}

// Status is the /v1/status response body.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	LastPollAt      time.Time `json:"last_poll_at"`
	PollIntervalSec int       `json:"poll_interval_sec"`
	PollCount       int64     `json:"poll_count"`
	SessionID       string    `json:"session_id,omitempty"`
	Summary         Snapshot  `json:"summary"`
	LastError       string    `json:"last_error,omitempty"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

// ReportSource builds a session report from durable state.
type ReportSource interface {
	BuildReport(sessionID string, now time.Time) (*report.SessionReport, error)
}

// SessionLister lists active sessions, most recently touched first, and
// locates a session's event log on disk.
type SessionLister interface {
	ActiveSessions() ([]string, error)
	LogPath(sessionID string) string
}

// TranscriptPoller reads transcript bytes appended since the previous poll,
// advancing a durable cursor.
type TranscriptPoller interface {
	Poll(sessionID string) (*transcript.PollResult, error)
}

// Service provides the monitor runtime and HTTP API.
type Service struct {
	cfg         Config
	reports     ReportSource
	sessions    SessionLister
	transcripts TranscriptPoller
	poke        chan struct{}

	// Poll-loop state, touched only from pollOnce.
	trackedSession string
	lastLogSize    int64

	mu          sync.RWMutex
	startedAt   time.Time
	lastPollAt  time.Time
	pollCount   int64
	lastError   string
	hasSnapshot bool
	snapshot    Snapshot
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new monitor service with the provided config. transcripts
// may be nil; without it every poll falls back to a full report rebuild.
func New(cfg Config, reports ReportSource, sessions SessionLister, transcripts TranscriptPoller) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 10 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8791"
	}

	return &Service{
		cfg:         cfg,
		reports:     reports,
		sessions:    sessions,
		transcripts: transcripts,
		poke:        make(chan struct{}, 1),
		startedAt:   time.Now(),
		subs:        make(map[int]chan Event),
	}
}

// Poke requests an immediate poll. Used by the filesystem watcher; safe to
// call from any goroutine, extra pokes coalesce.
func (s *Service) Poke() {
	select {
	case s.poke <- struct{}{}:
	default:
	}
}

// Run serves the HTTP endpoints and polls until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/stream", s.handleStream)

	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// First poll happens before the ticker so /v1/status has data right away.
	s.pollOnce()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.pollOnce()
		case <-s.poke:
			s.pollOnce()
		case err := <-errCh:
			return fmt.Errorf("live http server: %w", err)
		}
	}
}

func (s *Service) pollOnce() {
	now := time.Now()

	sessionID, err := s.targetSession()
	if err == nil && sessionID == "" {
		err = errors.New("no active session")
	}

	// Rebuilding the report re-reads the full transcript, so idle ticks
	// skip it when the incremental checks show nothing new.
	if err == nil && !s.dirty(sessionID) {
		s.mu.Lock()
		s.lastPollAt = now
		s.pollCount++
		s.lastError = ""
		s.mu.Unlock()
		return
	}

	var snap Snapshot
	if err == nil {
		var r *report.SessionReport
		r, err = s.reports.BuildReport(sessionID, now)
		if err == nil {
			snap = snapshotFromReport(r, now)
		}
	}

	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.lastPollAt = now
		s.pollCount++
		s.mu.Unlock()
		log.Printf("agentmeter live poll error: %v", err)
		return
	}

	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	prev := s.snapshot
	prevExists := s.hasSnapshot

	s.hasSnapshot = true
	s.snapshot = snap
	s.lastPollAt = now
	s.pollCount++
	s.lastError = ""

	if !prevExists || prev.SessionID != snap.SessionID {
		s.nextEventID++
		ev = Event{
			ID:        s.nextEventID,
			Type:      "snapshot",
			Timestamp: now,
			Snapshot:  snap,
		}
		publish = true
	} else {
		delta := diffSnapshots(prev, snap)
		if !delta.isZero() {
			s.nextEventID++
			ev = Event{
				ID:        s.nextEventID,
				Type:      "usage_delta",
				Timestamp: now,
				Snapshot:  snap,
				Delta:     delta,
			}
			publish = true
		}
	}
	s.mu.Unlock()

	if publish {
		s.publishEvent(ev)
	}
}

// dirty reports whether durable state changed since the previous poll. The
// transcript check goes through the cursor, so only newly appended bytes are
// read; the event log check is a bare size stat. When neither source can be
// checked there is no way to tell, and the poll rebuilds.
func (s *Service) dirty(sessionID string) bool {
	fresh := sessionID != s.trackedSession
	if fresh {
		s.trackedSession = sessionID
		s.lastLogSize = -1
	}

	changed := fresh
	checked := false

	if s.transcripts != nil {
		if pr, err := s.transcripts.Poll(sessionID); err == nil {
			checked = true
			if len(pr.Turns) > 0 || pr.ParseErrors > 0 {
				changed = true
			}
		}
	}

	if s.sessions != nil {
		if path := s.sessions.LogPath(sessionID); path != "" {
			size := int64(-2) // log absent (archived after a stop, or not yet written)
			if fi, err := os.Stat(path); err == nil {
				size = fi.Size()
			}
			checked = true
			if size != s.lastLogSize {
				s.lastLogSize = size
				changed = true
			}
		}
	}

	return changed || !checked
}

func (s *Service) targetSession() (string, error) {
	if s.cfg.SessionID != "" {
		return s.cfg.SessionID, nil
	}
	if s.sessions == nil {
		return "", errors.New("no session lister configured")
	}
	active, err := s.sessions.ActiveSessions()
	if err != nil {
		return "", err
	}
	if len(active) == 0 {
		return "", nil
	}
	return active[0], nil
}

func snapshotFromReport(r *report.SessionReport, at time.Time) Snapshot {
	return Snapshot{
		At:                at,
		SessionID:         r.SessionID,
		Live:              r.Live,
		WallClockSecs:     int64(r.WallClock / time.Second),
		Calls:             r.CallCount,
		OpenCalls:         r.OpenCalls,
		APICalls:          r.Turns,
		Tokens:            r.Usage.Total(),
		TotalCostUSD:      r.TotalCost,
		SavingsUSD:        r.Savings,
		PeakContextTokens: r.PeakContextTokens,
	}
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		Calls:        curr.Calls - prev.Calls,
		APICalls:     curr.APICalls - prev.APICalls,
		Tokens:       curr.Tokens - prev.Tokens,
		TotalCostUSD: curr.TotalCostUSD - prev.TotalCostUSD,
	}
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		PollIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       s.pollCount,
		SessionID:       s.cfg.SessionID,
		Summary:         s.snapshot,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// New subscribers get the current snapshot before any deltas.
	current := Event{
		Type:      "snapshot",
		Timestamp: time.Now(),
		Snapshot:  s.snapshotStatus().Summary,
	}
	writeSSE(w, current)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
