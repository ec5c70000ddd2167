package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/kspervik/agentmeter/internal/config"
	"github.com/kspervik/agentmeter/internal/event"
	"github.com/kspervik/agentmeter/internal/transcript"
)

// Aggregator builds session reports from the event log, the transcript and
// the rate table. It holds no mutable state; building the same session twice
// against unchanged inputs yields identical reports.
type Aggregator struct {
	events      *event.Recorder
	transcripts *transcript.Reader
	rates       *config.RateTable
}

func NewAggregator(events *event.Recorder, transcripts *transcript.Reader, rates *config.RateTable) *Aggregator {
	return &Aggregator{events: events, transcripts: transcripts, rates: rates}
}

// BuildReport reconstructs the session's full report. now only affects the
// durations of still-open calls in a live session; a stopped session's
// report is independent of it.
func (a *Aggregator) BuildReport(sessionID string, now time.Time) (*SessionReport, error) {
	sess, err := a.events.Load(sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading event log: %w", err)
	}

	tr, err := a.transcripts.ReadAll(sessionID)
	if err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}

	r := &SessionReport{
		SessionID:   sessionID,
		StoppedAt:   sess.StoppedAt,
		Live:        !sess.Stopped(),
		OpenCalls:   len(sess.OpenCalls),
		OrphanEnds:  sess.OrphanEnds,
		ParseErrors: tr.ParseErrors,
		Turns:       len(tr.Turns),
	}

	if len(sess.Calls) == 0 && len(sess.OpenCalls) == 0 && sess.FirstEvent.IsZero() && len(tr.Turns) == 0 {
		r.Empty = true
		return r, nil
	}

	a.fillTiming(r, sess, tr, now)
	a.fillUsage(r, tr)
	r.Suggestions = sessionSuggestions(r, sess)
	return r, nil
}

func (a *Aggregator) fillTiming(r *SessionReport, sess *event.Session, tr *transcript.Result, now time.Time) {
	start := sess.FirstEvent
	end := sess.LastEvent
	for _, t := range tr.Turns {
		if t.Timestamp.IsZero() {
			continue
		}
		if start.IsZero() || t.Timestamp.Before(start) {
			start = t.Timestamp
		}
		if t.Timestamp.After(end) {
			end = t.Timestamp
		}
	}
	if sess.Stopped() {
		end = sess.StoppedAt
	} else if len(sess.OpenCalls) > 0 && now.After(end) {
		end = now
	}
	r.StartedAt = start
	if !start.IsZero() && end.After(start) {
		r.WallClock = end.Sub(start)
	}

	type bucket struct {
		dur   time.Duration
		calls int
	}
	byCat := make(map[event.Category]*bucket)
	add := func(c event.ToolCall, d time.Duration) {
		b := byCat[c.Category]
		if b == nil {
			b = &bucket{}
			byCat[c.Category] = b
		}
		b.dur += d
		b.calls++
		r.TimedTotal += d
		r.CallCount++
	}
	for _, c := range sess.Calls {
		add(c, c.Duration(now))
	}
	// Open calls in a live session accrue up to now. Once stopped they are
	// anomalies, not durations.
	if !sess.Stopped() {
		for _, c := range sess.OpenCalls {
			add(c, c.Duration(now))
		}
	}

	r.Categories = make([]CategoryDuration, 0, len(byCat))
	for cat, b := range byCat {
		r.Categories = append(r.Categories, CategoryDuration{Category: cat, Duration: b.dur, Calls: b.calls})
	}
	sort.Slice(r.Categories, func(i, j int) bool {
		if r.Categories[i].Duration != r.Categories[j].Duration {
			return r.Categories[i].Duration > r.Categories[j].Duration
		}
		return r.Categories[i].Category < r.Categories[j].Category
	})
}

func (a *Aggregator) fillUsage(r *SessionReport, tr *transcript.Result) {
	models := make(map[string]bool)
	unknown := make(map[string]bool)
	for _, t := range tr.Turns {
		entry, resolved, exact := a.rates.Resolve(t.Model, t.Timestamp)
		switch {
		case exact:
			models[resolved] = true
		case t.Model != "":
			unknown[t.Model] = true
		default:
			// A turn with no model identifier is still default-priced, and
			// that guess has to surface like any other unresolved model.
			unknown["(missing)"] = true
		}

		r.Usage.Input += t.Input
		r.Usage.Output += t.Output
		r.Usage.CacheWrite += t.CacheWrite
		r.Usage.CacheRead += t.CacheRead

		r.Costs.Input += entry.Cost(t.Input, 0, 0, 0)
		r.Costs.Output += entry.Cost(0, t.Output, 0, 0)
		r.Costs.CacheWrite += entry.Cost(0, 0, t.CacheWrite, 0)
		r.Costs.CacheRead += entry.Cost(0, 0, 0, t.CacheRead)
		r.Savings += entry.CacheSavings(t.CacheRead)

		if ctx := t.ContextTokens(); ctx > r.PeakContextTokens {
			r.PeakContextTokens = ctx
		}
	}
	r.TotalCost = r.Costs.Total()
	r.Models = sortedKeys(models)
	r.UnknownModels = sortedKeys(unknown)
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
