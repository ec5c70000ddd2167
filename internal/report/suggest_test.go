package report

import (
	"strings"
	"testing"
	"time"

	"github.com/kspervik/agentmeter/internal/event"
)

func day(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

func entry(id string, d int, cost float64) HistoryEntry {
	return HistoryEntry{
		SessionID: id,
		Date:      day(d),
		WallClock: 10 * time.Minute,
		CallCount: 5,
		Turns:     8,
		TotalCost: cost,
		Usage:     TokenUsage{Input: 1000, Output: 500, CacheRead: 9000},
		Categories: []CategoryDuration{
			{Category: event.CategoryEdit, Duration: 4 * time.Minute, Calls: 3},
			{Category: event.CategoryExecute, Duration: time.Minute, Calls: 2},
		},
	}
}

func TestAggregate_RangeAndTotals(t *testing.T) {
	entries := []HistoryEntry{
		entry("a", 1, 1.00),
		entry("b", 2, 2.00),
		entry("c", 2, 3.00),
		entry("d", 5, 4.00),
	}

	agg := Aggregate(entries, day(1), day(2))
	if agg.Sessions != 3 {
		t.Fatalf("Sessions = %d, want 3 inside [day1, day2]", agg.Sessions)
	}
	if agg.TotalCost != 6.00 {
		t.Errorf("TotalCost = %.2f, want 6.00", agg.TotalCost)
	}
	if agg.AvgCostPerSession != 2.00 {
		t.Errorf("AvgCostPerSession = %.2f, want 2.00", agg.AvgCostPerSession)
	}
	if len(agg.ByDay) != 2 || agg.ByDay[0].Date != day(1) || agg.ByDay[1].Sessions != 2 {
		t.Errorf("ByDay = %+v", agg.ByDay)
	}
	if len(agg.ByCategory) == 0 || agg.ByCategory[0].Category != event.CategoryEdit {
		t.Errorf("ByCategory = %+v, want editing first by duration", agg.ByCategory)
	}
}

func TestAggregate_OpenBounds(t *testing.T) {
	entries := []HistoryEntry{entry("a", 1, 1.00), entry("b", 28, 1.00)}

	agg := Aggregate(entries, time.Time{}, time.Time{})
	if agg.Sessions != 2 {
		t.Fatalf("Sessions = %d, want all with open bounds", agg.Sessions)
	}
}

func TestAggregate_Empty(t *testing.T) {
	agg := Aggregate(nil, time.Time{}, time.Time{})
	if agg.Sessions != 0 || agg.TotalCost != 0 || agg.AvgCostPerSession != 0 {
		t.Errorf("empty aggregate carries data: %+v", agg)
	}
}

func TestSuggest_DominantCategoryAndCap(t *testing.T) {
	entries := []HistoryEntry{
		entry("a", 1, 1.00),
		entry("b", 2, 1.00),
		entry("c", 3, 1.00),
	}

	got := Suggest(entries, 10)
	if len(got) == 0 {
		t.Fatal("no suggestions for dominated category history")
	}
	if !strings.Contains(got[0], string(event.CategoryEdit)) {
		t.Errorf("first suggestion %q does not name the dominant category", got[0])
	}

	if capped := Suggest(entries, 1); len(capped) != 1 {
		t.Errorf("topN=1 returned %d suggestions", len(capped))
	}
}

func TestSuggest_ExpensiveQuartile(t *testing.T) {
	entries := []HistoryEntry{
		entry("a", 1, 20.00),
		entry("b", 2, 0.50),
		entry("c", 3, 0.50),
		entry("d", 4, 0.50),
	}

	got := Suggest(entries, 10)
	found := false
	for _, s := range got {
		if strings.Contains(s, "total spend") {
			found = true
		}
	}
	if !found {
		t.Errorf("no expensive-session hint in %v", got)
	}
}

func TestSuggest_EmptyHistory(t *testing.T) {
	if got := Suggest(nil, 5); got != nil {
		t.Errorf("Suggest(nil) = %v, want nil", got)
	}
}
