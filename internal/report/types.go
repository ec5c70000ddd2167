// Package report joins event-log timing with transcript token usage and
// prices the result. Reports are pure functions of durable state.
package report

import (
	"time"

	"github.com/kspervik/agentmeter/internal/event"
)

// TokenUsage holds per-class token totals.
type TokenUsage struct {
	Input      int64
	Output     int64
	CacheWrite int64
	CacheRead  int64
}

// Total is the sum across all four classes.
func (u TokenUsage) Total() int64 {
	return u.Input + u.Output + u.CacheWrite + u.CacheRead
}

// TokenCosts holds per-class USD costs.
type TokenCosts struct {
	Input      float64
	Output     float64
	CacheWrite float64
	CacheRead  float64
}

// Total is the sum across all four classes.
func (c TokenCosts) Total() float64 {
	return c.Input + c.Output + c.CacheWrite + c.CacheRead
}

// CategoryDuration is the summed duration of one call category.
type CategoryDuration struct {
	Category event.Category
	Duration time.Duration
	Calls    int
}

// SessionReport is the derived, immutable summary of one session.
type SessionReport struct {
	SessionID string
	StartedAt time.Time
	StoppedAt time.Time // zero for a live report
	Live      bool      // built while the session was still active
	Empty     bool      // no event log and no transcript data at all

	WallClock  time.Duration
	Categories []CategoryDuration // sorted by duration descending
	TimedTotal time.Duration      // sum over Categories
	CallCount  int

	Turns int
	Usage TokenUsage
	Costs TokenCosts

	TotalCost         float64
	Savings           float64
	PeakContextTokens int64

	Models        []string // resolved model names, sorted
	UnknownModels []string // identifiers priced at the default entry, sorted

	// Data-quality flags, carried visibly rather than suppressed.
	OpenCalls   int // calls with no end event
	OrphanEnds  int // end events with no matching start
	ParseErrors int // malformed transcript lines skipped

	Suggestions []string
}

// Flagged reports whether any data-quality anomaly was observed.
func (r *SessionReport) Flagged() bool {
	return r.OpenCalls > 0 || r.OrphanEnds > 0 || r.ParseErrors > 0 || len(r.UnknownModels) > 0
}

// HistoryEntry is a finalized session report plus its completion date.
type HistoryEntry struct {
	SessionID string
	Date      time.Time // completion day, truncated to midnight UTC
	StartedAt time.Time

	WallClock  time.Duration
	Categories []CategoryDuration
	CallCount  int
	Turns      int

	Usage             TokenUsage
	TotalCost         float64
	Savings           float64
	PeakContextTokens int64
	Flagged           bool
}

// EntryFromReport derives the persistable history entry for a finalized report.
func EntryFromReport(r *SessionReport, date time.Time) HistoryEntry {
	return HistoryEntry{
		SessionID:         r.SessionID,
		Date:              date.UTC().Truncate(24 * time.Hour),
		StartedAt:         r.StartedAt,
		WallClock:         r.WallClock,
		Categories:        r.Categories,
		CallCount:         r.CallCount,
		Turns:             r.Turns,
		Usage:             r.Usage,
		TotalCost:         r.TotalCost,
		Savings:           r.Savings,
		PeakContextTokens: r.PeakContextTokens,
		Flagged:           r.Flagged(),
	}
}

// DayStats is one day's aggregate in a history report.
type DayStats struct {
	Date     time.Time
	Sessions int
	Cost     float64
}

// HistoryReport aggregates finalized sessions over a date range.
type HistoryReport struct {
	Since, Until time.Time
	Sessions     int

	TotalCost     float64
	TotalSavings  float64
	TotalCalls    int
	TotalTurns    int
	TotalDuration time.Duration
	Usage         TokenUsage

	AvgCostPerSession float64
	PeakContextTokens int64
	CacheReadRatio    float64 // cache reads over total context input

	ByDay      []DayStats         // ascending by date
	ByCategory []CategoryDuration // descending by duration
}
