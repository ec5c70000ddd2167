package render

import (
	"strings"
	"testing"
	"time"

	"github.com/kspervik/agentmeter/internal/event"
	"github.com/kspervik/agentmeter/internal/report"
)

func TestFormatTokens(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1234, "1.2K"},
		{234500, "234.5K"},
		{1234567, "1.2M"},
		{1234567890, "1.2B"},
	}
	for _, tt := range tests {
		if got := FormatTokens(tt.n); got != tt.want {
			t.Errorf("FormatTokens(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatCost(t *testing.T) {
	tests := []struct {
		cost float64
		want string
	}{
		{0, "$0.00"},
		{0.0042, "$0.0042"},
		{0.130215, "$0.13"},
		{12.5, "$12.5"},
		{123.4, "$123"},
		{1234.5, "$1,235"},
	}
	for _, tt := range tests {
		if got := FormatCost(tt.cost); got != tt.want {
			t.Errorf("FormatCost(%v) = %q, want %q", tt.cost, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{125 * time.Second, "2m 5s"},
		{3725 * time.Second, "1h 2m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	if got := FormatNumber(1234567); got != "1,234,567" {
		t.Errorf("FormatNumber = %q", got)
	}
	if got := FormatNumber(-1234); got != "-1,234" {
		t.Errorf("FormatNumber negative = %q", got)
	}
}

func sampleReport() *report.SessionReport {
	return &report.SessionReport{
		SessionID:  "0f2a9c1e-dead-beef",
		WallClock:  5 * time.Minute,
		TimedTotal: 150 * time.Second,
		CallCount:  2,
		Turns:      1,
		Categories: []report.CategoryDuration{
			{Category: event.CategoryEdit, Duration: 108 * time.Second, Calls: 1},
			{Category: event.CategoryExecute, Duration: 42 * time.Second, Calls: 1},
		},
		Usage:             report.TokenUsage{Input: 2100, Output: 471, CacheWrite: 12400, CacheRead: 234500},
		Costs:             report.TokenCosts{Input: 0.0063, Output: 0.007065, CacheWrite: 0.0465, CacheRead: 0.07035},
		TotalCost:         0.130215,
		Savings:           0.63315,
		PeakContextTokens: 249000,
		Models:            []string{"claude-sonnet-4-6"},
	}
}

func TestRenderSession_ContainsKeyFigures(t *testing.T) {
	out := RenderSession(sampleReport())

	for _, want := range []string{
		"Editing files", "Running commands",
		"1m 48s", "42s",
		"$0.13", "249.0K",
		"Cache read", "claude-sonnet-4-6",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("session output missing %q", want)
		}
	}
	if strings.Contains(out, "Data quality") {
		t.Error("clean report shows data-quality notes")
	}
}

func TestRenderSession_AnomaliesVisible(t *testing.T) {
	r := sampleReport()
	r.OpenCalls = 1
	r.UnknownModels = []string{"mystery-model"}

	out := RenderSession(r)
	if !strings.Contains(out, "never reported an end event") {
		t.Error("open call note missing")
	}
	if !strings.Contains(out, "mystery-model") {
		t.Error("unknown model note missing")
	}
}

func TestRenderSession_Empty(t *testing.T) {
	out := RenderSession(&report.SessionReport{SessionID: "x", Empty: true})
	if !strings.Contains(out, "No activity") {
		t.Errorf("empty session output = %q", out)
	}
}

func TestRenderSummaryBox(t *testing.T) {
	out := RenderSummaryBox(sampleReport())
	if !strings.Contains(out, "Task done") || !strings.Contains(out, "╔") {
		t.Errorf("summary box = %q", out)
	}
	if !strings.Contains(out, "Editing files 1m 48s") {
		t.Errorf("summary box missing top category: %q", out)
	}
}

func TestRenderHistory_EmptyRange(t *testing.T) {
	out := RenderHistory(&report.HistoryReport{})
	if !strings.Contains(out, "No finalized sessions") {
		t.Errorf("empty history output = %q", out)
	}
}
