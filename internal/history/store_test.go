package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kspervik/agentmeter/internal/event"
	"github.com/kspervik/agentmeter/internal/report"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testEntry(id string, date time.Time, cost float64) report.HistoryEntry {
	return report.HistoryEntry{
		SessionID: id,
		Date:      date,
		StartedAt: date.Add(9 * time.Hour),
		WallClock: 15 * time.Minute,
		CallCount: 12,
		Turns:     7,
		Usage:     report.TokenUsage{Input: 2100, Output: 471, CacheWrite: 12400, CacheRead: 234500},
		TotalCost: cost,
		Savings:   cost / 4,
		PeakContextTokens: 249000,
		Categories: []report.CategoryDuration{
			{Category: event.CategoryEdit, Duration: 108 * time.Second, Calls: 5},
			{Category: event.CategoryExecute, Duration: 42 * time.Second, Calls: 7},
		},
	}
}

func TestAppendAndQuery_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := s.Append(testEntry("s1", date, 0.13)); err != nil {
		t.Fatal(err)
	}

	got, err := s.Query(time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("entries = %d, want 1", len(got))
	}

	e := got[0]
	if e.SessionID != "s1" || !e.Date.Equal(date) {
		t.Errorf("identity = %s/%s", e.SessionID, e.Date)
	}
	if e.WallClock != 15*time.Minute || e.CallCount != 12 || e.Turns != 7 {
		t.Errorf("counters = %+v", e)
	}
	if e.Usage.CacheRead != 234500 || e.TotalCost != 0.13 {
		t.Errorf("usage/cost = %+v", e)
	}
	if len(e.Categories) != 2 || e.Categories[0].Category != event.CategoryEdit {
		t.Errorf("categories = %+v, want editing first", e.Categories)
	}
}

func TestAppend_ReplacesSameSessionAndDate(t *testing.T) {
	s := openTestStore(t)
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := s.Append(testEntry("s1", date, 0.10)); err != nil {
		t.Fatal(err)
	}
	// A replayed stop re-finalizes with the recomputed report.
	if err := s.Append(testEntry("s1", date, 0.13)); err != nil {
		t.Fatal(err)
	}

	got, err := s.Query(time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("entries = %d, want 1 after replace", len(got))
	}
	if got[0].TotalCost != 0.13 {
		t.Errorf("TotalCost = %v, want the later write", got[0].TotalCost)
	}
	if len(got[0].Categories) != 2 {
		t.Errorf("categories duplicated on replace: %+v", got[0].Categories)
	}
}

func TestQuery_InclusiveRangeAndOrder(t *testing.T) {
	s := openTestStore(t)
	day := func(d int) time.Time { return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC) }

	for i, id := range []string{"c", "a", "b", "d"} {
		if err := s.Append(testEntry(id, day([]int{3, 1, 2, 5}[i]), 1.0)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Query(day(1), day(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("entries = %d, want 3 inside inclusive range", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].SessionID != want {
			t.Errorf("order[%d] = %s, want %s", i, got[i].SessionID, want)
		}
	}
}

func TestQuery_EmptyRange(t *testing.T) {
	s := openTestStore(t)

	got, err := s.Query(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{})
	if err != nil {
		t.Fatalf("empty range must not error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("entries = %d, want 0", len(got))
	}
}

func TestSuggest_UsesStoredEntries(t *testing.T) {
	s := openTestStore(t)
	day := func(d int) time.Time { return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC) }
	for d := 1; d <= 3; d++ {
		if err := s.Append(testEntry("s"+string(rune('0'+d)), day(d), 2.0)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Suggest(time.Time{}, time.Time{}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 {
		t.Error("no suggestions over a populated range")
	}
}

func TestOpen_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Close()
}
