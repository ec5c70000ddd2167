package report

import (
	"sort"
	"time"

	"github.com/kspervik/agentmeter/internal/event"
)

// Aggregate folds history entries into a range report. Zero since/until
// leave that bound open. Bounds are inclusive and compared by entry date.
func Aggregate(entries []HistoryEntry, since, until time.Time) *HistoryReport {
	agg := &HistoryReport{Since: since, Until: until}

	byDay := make(map[time.Time]*DayStats)
	byCat := make(map[event.Category]*CategoryDuration)

	for _, e := range entries {
		if !since.IsZero() && e.Date.Before(since) {
			continue
		}
		if !until.IsZero() && e.Date.After(until) {
			continue
		}

		agg.Sessions++
		agg.TotalCost += e.TotalCost
		agg.TotalSavings += e.Savings
		agg.TotalCalls += e.CallCount
		agg.TotalTurns += e.Turns
		agg.TotalDuration += e.WallClock
		agg.Usage.Input += e.Usage.Input
		agg.Usage.Output += e.Usage.Output
		agg.Usage.CacheWrite += e.Usage.CacheWrite
		agg.Usage.CacheRead += e.Usage.CacheRead
		if e.PeakContextTokens > agg.PeakContextTokens {
			agg.PeakContextTokens = e.PeakContextTokens
		}

		d := byDay[e.Date]
		if d == nil {
			d = &DayStats{Date: e.Date}
			byDay[e.Date] = d
		}
		d.Sessions++
		d.Cost += e.TotalCost

		for _, cd := range e.Categories {
			c := byCat[cd.Category]
			if c == nil {
				c = &CategoryDuration{Category: cd.Category}
				byCat[cd.Category] = c
			}
			c.Duration += cd.Duration
			c.Calls += cd.Calls
		}
	}

	if agg.Sessions > 0 {
		agg.AvgCostPerSession = agg.TotalCost / float64(agg.Sessions)
	}
	agg.CacheReadRatio = cacheRatio(agg.Usage)

	agg.ByDay = make([]DayStats, 0, len(byDay))
	for _, d := range byDay {
		agg.ByDay = append(agg.ByDay, *d)
	}
	sort.Slice(agg.ByDay, func(i, j int) bool { return agg.ByDay[i].Date.Before(agg.ByDay[j].Date) })

	agg.ByCategory = make([]CategoryDuration, 0, len(byCat))
	for _, c := range byCat {
		agg.ByCategory = append(agg.ByCategory, *c)
	}
	sort.Slice(agg.ByCategory, func(i, j int) bool {
		if agg.ByCategory[i].Duration != agg.ByCategory[j].Duration {
			return agg.ByCategory[i].Duration > agg.ByCategory[j].Duration
		}
		return agg.ByCategory[i].Category < agg.ByCategory[j].Category
	})

	return agg
}
