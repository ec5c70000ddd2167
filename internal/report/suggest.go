package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kspervik/agentmeter/internal/event"
)

// Thresholds below are tuned against observed sessions, not derived.
const (
	repeatedCommandMin   = 3
	peakContextWarn      = 150_000
	lowCacheRatio        = 0.30
	dominantCategoryFrac = 0.5
)

// sessionSuggestions derives actionable hints from one session's shape.
func sessionSuggestions(r *SessionReport, sess *event.Session) []string {
	var out []string

	if cmd, n := mostRepeatedCommand(sess); n >= repeatedCommandMin {
		out = append(out, fmt.Sprintf("%q ran %d times; consider batching or scripting it", cmd, n))
	}

	if len(r.Categories) > 0 && r.TimedTotal > 0 {
		top := r.Categories[0]
		if float64(top.Duration) > dominantCategoryFrac*float64(r.TimedTotal) {
			out = append(out, fmt.Sprintf("%s dominated tool time (%s of %s)",
				top.Category, top.Duration.Round(time.Second), r.TimedTotal.Round(time.Second)))
		}
	}

	if r.PeakContextTokens > peakContextWarn {
		out = append(out, fmt.Sprintf("peak context reached %d tokens; splitting the task into smaller sessions would cut per-turn input cost", r.PeakContextTokens))
	}

	if ratio := cacheRatio(r.Usage); r.Turns >= 5 && ratio < lowCacheRatio {
		out = append(out, fmt.Sprintf("cache reads covered only %.0f%% of context input; stable system prompts and file ordering improve cache hits", ratio*100))
	}

	return out
}

// mostRepeatedCommand finds the most frequent executed command. Only the
// first whitespace-separated word is compared, so varying arguments still
// group under one program.
func mostRepeatedCommand(sess *event.Session) (string, int) {
	counts := make(map[string]int)
	for _, c := range sess.Calls {
		if c.Category != event.CategoryExecute || c.Detail == "" {
			continue
		}
		head := c.Detail
		if i := strings.IndexByte(head, ' '); i > 0 {
			head = head[:i]
		}
		counts[head]++
	}
	best, n := "", 0
	for cmd, c := range counts {
		if c > n || (c == n && cmd < best) {
			best, n = cmd, c
		}
	}
	return best, n
}

func cacheRatio(u TokenUsage) float64 {
	denom := u.Input + u.CacheWrite + u.CacheRead
	if denom == 0 {
		return 0
	}
	return float64(u.CacheRead) / float64(denom)
}

// Suggest derives spending-pattern hints from finalized history entries,
// most significant first, capped at topN.
func Suggest(entries []HistoryEntry, topN int) []string {
	if len(entries) == 0 || topN <= 0 {
		return nil
	}

	var out []string
	agg := Aggregate(entries, time.Time{}, time.Time{})

	var timed time.Duration
	for _, c := range agg.ByCategory {
		timed += c.Duration
	}
	if len(agg.ByCategory) > 0 && timed > 0 {
		top := agg.ByCategory[0]
		frac := float64(top.Duration) / float64(timed)
		if frac > dominantCategoryFrac {
			out = append(out, fmt.Sprintf("%s accounts for %.0f%% of tool time across %d sessions; roughly $%.2f of spend tracks that activity",
				top.Category, frac*100, agg.Sessions, agg.TotalCost*frac))
		}
	}

	if agg.CacheReadRatio < lowCacheRatio && agg.TotalTurns >= 10 {
		out = append(out, fmt.Sprintf("cache reads cover %.0f%% of context input overall; improving prompt stability is the single largest lever on input cost",
			agg.CacheReadRatio*100))
	}

	if expensive := expensiveShare(entries); expensive != "" {
		out = append(out, expensive)
	}

	if agg.Sessions >= 3 {
		out = append(out, fmt.Sprintf("average session costs $%.2f over %d sessions; cache savings so far total $%.2f",
			agg.AvgCostPerSession, agg.Sessions, agg.TotalSavings))
	}

	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// expensiveShare reports when a small fraction of sessions carries most of
// the spend.
func expensiveShare(entries []HistoryEntry) string {
	if len(entries) < 4 {
		return ""
	}
	costs := make([]float64, len(entries))
	total := 0.0
	for i, e := range entries {
		costs[i] = e.TotalCost
		total += e.TotalCost
	}
	if total == 0 {
		return ""
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(costs)))
	topCount := (len(costs) + 3) / 4 // top quartile
	topSum := 0.0
	for _, c := range costs[:topCount] {
		topSum += c
	}
	if share := topSum / total; share > 0.6 {
		return fmt.Sprintf("the top %d of %d sessions account for %.0f%% of total spend; reviewing what made them expensive pays off most",
			topCount, len(costs), share*100)
	}
	return ""
}
