// Package history persists finalized session reports in SQLite and serves
// date-range queries over them.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kspervik/agentmeter/internal/event"
	"github.com/kspervik/agentmeter/internal/report"

	_ "modernc.org/sqlite" // register sqlite driver
)

const dateLayout = "2006-01-02"

// Store is the SQLite-backed history of finalized sessions.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the history database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores one finalized entry. Re-finalizing the same session on the
// same day replaces the earlier row, so replayed stop events cannot double
// count.
func (s *Store) Append(e report.HistoryEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	date := e.Date.Format(dateLayout)
	startedAt := ""
	if !e.StartedAt.IsZero() {
		startedAt = e.StartedAt.UTC().Format(time.RFC3339)
	}
	flagged := 0
	if e.Flagged {
		flagged = 1
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO history
		(session_id, date, started_at, wall_clock_secs, call_count, turn_count,
		 input_tokens, output_tokens, cache_write_tokens, cache_read_tokens,
		 total_cost, savings, peak_context_tokens, flagged, finalized_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, date, startedAt, int64(e.WallClock/time.Second), e.CallCount, e.Turns,
		e.Usage.Input, e.Usage.Output, e.Usage.CacheWrite, e.Usage.CacheRead,
		e.TotalCost, e.Savings, e.PeakContextTokens, flagged,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM history_categories WHERE session_id = ? AND date = ?",
		e.SessionID, date); err != nil {
		return err
	}
	for _, c := range e.Categories {
		_, err := tx.Exec(`INSERT INTO history_categories
			(session_id, date, category, duration_secs, calls)
			VALUES (?, ?, ?, ?, ?)`,
			e.SessionID, date, string(c.Category), int64(c.Duration/time.Second), c.Calls,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Query returns entries whose date falls inside [since, until], both
// inclusive; a zero bound is open. Entries come back ordered by date, then
// start time. An empty range is a valid, empty result.
func (s *Store) Query(since, until time.Time) ([]report.HistoryEntry, error) {
	q := `SELECT session_id, date, started_at, wall_clock_secs, call_count, turn_count,
		input_tokens, output_tokens, cache_write_tokens, cache_read_tokens,
		total_cost, savings, peak_context_tokens, flagged
		FROM history`
	var args []any
	var where []string
	if !since.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, since.Format(dateLayout))
	}
	if !until.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, until.Format(dateLayout))
	}
	for i, w := range where {
		if i == 0 {
			q += " WHERE " + w
		} else {
			q += " AND " + w
		}
	}
	q += " ORDER BY date ASC, started_at ASC"

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	type key struct{ sid, date string }
	var entries []report.HistoryEntry
	idx := make(map[key]int)

	for rows.Next() {
		var e report.HistoryEntry
		var dateStr string
		var startedAt sql.NullString
		var wallSecs int64
		var flagged int

		err := rows.Scan(&e.SessionID, &dateStr, &startedAt, &wallSecs, &e.CallCount, &e.Turns,
			&e.Usage.Input, &e.Usage.Output, &e.Usage.CacheWrite, &e.Usage.CacheRead,
			&e.TotalCost, &e.Savings, &e.PeakContextTokens, &flagged)
		if err != nil {
			return nil, err
		}

		e.Date, _ = time.Parse(dateLayout, dateStr)
		if startedAt.Valid && startedAt.String != "" {
			e.StartedAt, _ = time.Parse(time.RFC3339, startedAt.String)
		}
		e.WallClock = time.Duration(wallSecs) * time.Second
		e.Flagged = flagged != 0

		idx[key{e.SessionID, dateStr}] = len(entries)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	catRows, err := s.db.Query(`SELECT session_id, date, category, duration_secs, calls
		FROM history_categories`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = catRows.Close() }()

	for catRows.Next() {
		var sid, dateStr, category string
		var durSecs int64
		var calls int
		if err := catRows.Scan(&sid, &dateStr, &category, &durSecs, &calls); err != nil {
			return nil, err
		}
		if i, ok := idx[key{sid, dateStr}]; ok {
			entries[i].Categories = append(entries[i].Categories, report.CategoryDuration{
				Category: event.Category(category),
				Duration: time.Duration(durSecs) * time.Second,
				Calls:    calls,
			})
		}
	}
	if err := catRows.Err(); err != nil {
		return nil, err
	}

	// Row order from the categories scan is not defined; restore the report
	// convention of longest first.
	for i := range entries {
		cats := entries[i].Categories
		sort.Slice(cats, func(a, b int) bool {
			if cats[a].Duration != cats[b].Duration {
				return cats[a].Duration > cats[b].Duration
			}
			return cats[a].Category < cats[b].Category
		})
	}
	return entries, nil
}

// Suggest runs the pattern heuristics over the stored range.
func (s *Store) Suggest(since, until time.Time, topN int) ([]string, error) {
	entries, err := s.Query(since, until)
	if err != nil {
		return nil, err
	}
	return report.Suggest(entries, topN), nil
}
