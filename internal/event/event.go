// Package event records and replays tool-call lifecycle events.
package event

import (
	"sort"
	"time"
)

// Kind identifies a lifecycle event.
type Kind string

const (
	KindStart Kind = "start"
	KindEnd   Kind = "end"
	KindStop  Kind = "stop"
)

// Category buckets tool calls for the time breakdown.
type Category string

const (
	CategoryRead     Category = "Reading files"
	CategoryWrite    Category = "Writing files"
	CategoryEdit     Category = "Editing files"
	CategoryExecute  Category = "Running commands"
	CategorySearch   Category = "Searching code"
	CategoryDelegate Category = "Delegating to sub-task"
	CategoryBrowse   Category = "Browsing web"
	CategoryMCP      Category = "MCP tool call"
	CategoryOther    Category = "Other"
)

var toolCategories = map[string]Category{
	"Read":      CategoryRead,
	"Write":     CategoryWrite,
	"Edit":      CategoryEdit,
	"MultiEdit": CategoryEdit,
	"Bash":      CategoryExecute,
	"Task":      CategoryDelegate,
	"Grep":      CategorySearch,
	"Glob":      CategorySearch,
	"WebFetch":  CategoryBrowse,
	"WebSearch": CategoryBrowse,
}

// CategoryFor maps a tool name to its category.
func CategoryFor(tool string) Category {
	if len(tool) > 5 && tool[:5] == "mcp__" {
		return CategoryMCP
	}
	if c, ok := toolCategories[tool]; ok {
		return c
	}
	return CategoryOther
}

// Record is one durable line in a session event log.
type Record struct {
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"session_id"`
	CallID    string    `json:"call_id,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolCall is one reconstructed call with a measurable start and end.
type ToolCall struct {
	CallID   string
	Tool     string
	Category Category
	Detail   string
	Start    time.Time
	End      time.Time // zero while the call is open
}

// Open reports whether the call has no matching end yet.
func (c ToolCall) Open() bool {
	return c.End.IsZero()
}

// Duration returns end-start for closed calls, or the elapsed time up to
// now for open ones.
func (c ToolCall) Duration(now time.Time) time.Duration {
	if c.Open() {
		if now.IsZero() || now.Before(c.Start) {
			return 0
		}
		return now.Sub(c.Start)
	}
	return c.End.Sub(c.Start)
}

// Session is the replayed state of one session's event log.
type Session struct {
	SessionID  string
	Calls      []ToolCall // closed calls, ordered by start
	OpenCalls  []ToolCall // calls with no end event, ordered by start
	OrphanEnds int        // end events with no matching start
	FirstEvent time.Time
	LastEvent  time.Time
	StoppedAt  time.Time // zero until a stop event is seen
}

// Stopped reports whether a terminal stop event was recorded.
func (s *Session) Stopped() bool {
	return !s.StoppedAt.IsZero()
}

// Replay folds an ordered record sequence into session state.
//
// Open calls are a set keyed by call ID, so concurrent calls never corrupt
// each other. Duplicate delivery of the same logical event (same call ID and
// kind) is ignored. An end event matches its call ID when present; otherwise
// it closes the oldest open call with the same tool name, and counts as an
// orphan when nothing matches.
func Replay(sessionID string, records []Record) *Session {
	s := &Session{SessionID: sessionID}
	open := make(map[string]*ToolCall)
	openOrder := []string{}
	closed := make(map[string]struct{})

	for _, rec := range records {
		if !rec.Timestamp.IsZero() {
			if s.FirstEvent.IsZero() || rec.Timestamp.Before(s.FirstEvent) {
				s.FirstEvent = rec.Timestamp
			}
			if s.LastEvent.IsZero() || rec.Timestamp.After(s.LastEvent) {
				s.LastEvent = rec.Timestamp
			}
		}

		switch rec.Kind {
		case KindStart:
			if rec.CallID == "" {
				continue
			}
			if _, dup := open[rec.CallID]; dup {
				continue // redelivered start
			}
			if _, dup := closed[rec.CallID]; dup {
				continue
			}
			open[rec.CallID] = &ToolCall{
				CallID:   rec.CallID,
				Tool:     rec.Tool,
				Category: CategoryFor(rec.Tool),
				Detail:   rec.Detail,
				Start:    rec.Timestamp,
			}
			openOrder = append(openOrder, rec.CallID)

		case KindEnd:
			id := rec.CallID
			if id == "" || open[id] == nil {
				id = oldestOpenFor(open, openOrder, rec.Tool)
			}
			call, ok := open[id]
			if !ok {
				if _, already := closed[rec.CallID]; already {
					continue // redelivered end
				}
				s.OrphanEnds++
				continue
			}
			call.End = rec.Timestamp
			if call.End.Before(call.Start) {
				call.End = call.Start
			}
			s.Calls = append(s.Calls, *call)
			closed[id] = struct{}{}
			delete(open, id)

		case KindStop:
			if s.StoppedAt.IsZero() {
				s.StoppedAt = rec.Timestamp
			}
		}
	}

	for _, id := range openOrder {
		if call, ok := open[id]; ok {
			s.OpenCalls = append(s.OpenCalls, *call)
		}
	}
	sortCalls(s.Calls)
	sortCalls(s.OpenCalls)
	return s
}

func oldestOpenFor(open map[string]*ToolCall, order []string, tool string) string {
	for _, id := range order {
		call, ok := open[id]
		if !ok {
			continue
		}
		if tool == "" || call.Tool == tool {
			return id
		}
	}
	return ""
}

func sortCalls(calls []ToolCall) {
	sort.SliceStable(calls, func(i, j int) bool {
		return calls[i].Start.Before(calls[j].Start)
	})
}
