package render

import (
	"fmt"
	"strings"

	"github.com/kspervik/agentmeter/internal/report"
)

// RenderSession renders the full terminal report for one session.
func RenderSession(r *report.SessionReport) string {
	var b strings.Builder

	title := "Session " + shortID(r.SessionID)
	if r.Live {
		title += " (live)"
	}
	b.WriteString(RenderTitle(title))
	b.WriteString("\n\n")

	if r.Empty {
		b.WriteString(mutedStyle.Render("  No activity recorded for this session yet."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(statusLine(r))
	b.WriteString("\n\n")

	if len(r.Categories) > 0 {
		b.WriteString(RenderTable(categoryTable(r)))
		b.WriteString("\n")
	}

	if r.Turns > 0 {
		b.WriteString(RenderTable(costTable(r)))
		b.WriteString(fmt.Sprintf("  API calls: %d   Cache saved you: %s vs all-input pricing\n\n",
			r.Turns, FormatCost(r.Savings)))
	}

	if notes := anomalyNotes(r); len(notes) > 0 {
		b.WriteString("  " + warnStyle.Render("Data quality") + "\n")
		for _, n := range notes {
			b.WriteString("  • " + n + "\n")
		}
		b.WriteString("\n")
	}

	if len(r.Suggestions) > 0 {
		b.WriteString("  " + headerStyle.Render("Worth changing") + "\n")
		for i, s := range r.Suggestions {
			b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, s))
		}
	}

	return b.String()
}

// RenderSummaryBox renders the compact end-of-session box.
func RenderSummaryBox(r *report.SessionReport) string {
	header := fmt.Sprintf("  Task done · %s · Cost: %s · Peak: %s tokens  ",
		FormatDuration(r.WallClock), FormatCost(r.TotalCost), FormatTokens(r.PeakContextTokens))
	w := len([]rune(header))

	var b strings.Builder
	b.WriteString("╔" + strings.Repeat("═", w) + "╗\n")
	b.WriteString("║" + header + "║\n")
	b.WriteString("╚" + strings.Repeat("═", w) + "╝\n")

	top := r.Categories
	if len(top) > 3 {
		top = top[:3]
	}
	if len(top) > 0 {
		parts := make([]string, 0, len(top))
		for _, c := range top {
			parts = append(parts, fmt.Sprintf("%s %s", c.Category, FormatDuration(c.Duration)))
		}
		b.WriteString("  " + strings.Join(parts, "   ") + "\n")
	}
	return b.String()
}

// RenderHistory renders the aggregate view over a date range.
func RenderHistory(agg *report.HistoryReport) string {
	var b strings.Builder

	b.WriteString(RenderTitle(rangeTitle(agg)))
	b.WriteString("\n\n")

	if agg.Sessions == 0 {
		b.WriteString(mutedStyle.Render("  No finalized sessions in this range."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(RenderTable(Table{
		Title:   "Totals",
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Sessions", FormatNumber(int64(agg.Sessions))},
			{"Total cost", FormatCost(agg.TotalCost)},
			{"Avg cost / session", FormatCost(agg.AvgCostPerSession)},
			{"Cache savings", FormatCost(agg.TotalSavings)},
			{"Tool calls", FormatNumber(int64(agg.TotalCalls))},
			{"API calls", FormatNumber(int64(agg.TotalTurns))},
			{"Time in sessions", FormatDuration(agg.TotalDuration)},
			{"Peak context", FormatTokens(agg.PeakContextTokens) + " tokens"},
			{"Cache read ratio", FormatPercent(agg.CacheReadRatio)},
		},
	}))
	b.WriteString("\n")

	if len(agg.ByDay) > 0 {
		rows := make([][]string, 0, len(agg.ByDay))
		spark := make([]float64, 0, len(agg.ByDay))
		for _, d := range agg.ByDay {
			rows = append(rows, []string{
				d.Date.Format("2006-01-02"),
				FormatNumber(int64(d.Sessions)),
				FormatCost(d.Cost),
			})
			spark = append(spark, d.Cost)
		}
		b.WriteString(RenderTable(Table{
			Title:   "By day",
			Headers: []string{"Date", "Sessions", "Cost"},
			Rows:    rows,
		}))
		b.WriteString("  " + mutedStyle.Render("spend "+RenderSparkline(spark)) + "\n\n")
	}

	if len(agg.ByCategory) > 0 {
		rows := make([][]string, 0, len(agg.ByCategory))
		for _, c := range agg.ByCategory {
			rows = append(rows, []string{string(c.Category), FormatDuration(c.Duration), FormatNumber(int64(c.Calls))})
		}
		b.WriteString(RenderTable(Table{
			Title:   "Where the time went",
			Headers: []string{"Category", "Duration", "Calls"},
			Rows:    rows,
		}))
	}

	return b.String()
}

// RenderSuggestions renders pattern hints as a numbered list.
func RenderSuggestions(suggestions []string) string {
	if len(suggestions) == 0 {
		return mutedStyle.Render("  Nothing stands out yet; more finalized sessions sharpen the picture.") + "\n"
	}
	var b strings.Builder
	b.WriteString("  " + headerStyle.Render("Worth changing") + "\n")
	for i, s := range suggestions {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, s))
	}
	return b.String()
}

func statusLine(r *report.SessionReport) string {
	parts := []string{
		"Duration " + FormatDuration(r.WallClock),
		"Cost " + costStyle.Render(FormatCost(r.TotalCost)),
		"Peak " + FormatTokens(r.PeakContextTokens) + " tokens",
	}
	if len(r.Models) > 0 {
		parts = append(parts, strings.Join(r.Models, ", "))
	}
	return "  " + strings.Join(parts, " · ")
}

func categoryTable(r *report.SessionReport) Table {
	rows := make([][]string, 0, len(r.Categories)+1)
	for _, c := range r.Categories {
		share := ""
		if r.TimedTotal > 0 {
			share = FormatPercent(float64(c.Duration) / float64(r.TimedTotal))
		}
		rows = append(rows, []string{string(c.Category), FormatDuration(c.Duration), FormatNumber(int64(c.Calls)), share})
	}
	rows = append(rows, []string{"---"})
	rows = append(rows, []string{"Total", FormatDuration(r.TimedTotal), FormatNumber(int64(r.CallCount)), ""})
	return Table{
		Title:   "Time breakdown",
		Headers: []string{"Category", "Duration", "Calls", "Share"},
		Rows:    rows,
	}
}

func costTable(r *report.SessionReport) Table {
	rows := [][]string{
		{"Input (uncached)", FormatTokens(r.Usage.Input), FormatCost(r.Costs.Input)},
		{"Output", FormatTokens(r.Usage.Output), FormatCost(r.Costs.Output)},
		{"Cache write", FormatTokens(r.Usage.CacheWrite), FormatCost(r.Costs.CacheWrite)},
		{"Cache read", FormatTokens(r.Usage.CacheRead), FormatCost(r.Costs.CacheRead)},
		{"---"},
		{"Total", FormatTokens(r.Usage.Total()), FormatCost(r.TotalCost)},
	}
	return Table{
		Title:   "Cost breakdown",
		Headers: []string{"Token type", "Tokens", "Cost"},
		Rows:    rows,
	}
}

func anomalyNotes(r *report.SessionReport) []string {
	var notes []string
	if r.OpenCalls > 0 {
		notes = append(notes, fmt.Sprintf("%d tool call(s) never reported an end event", r.OpenCalls))
	}
	if r.OrphanEnds > 0 {
		notes = append(notes, fmt.Sprintf("%d end event(s) had no matching start", r.OrphanEnds))
	}
	if r.ParseErrors > 0 {
		notes = append(notes, fmt.Sprintf("%d malformed transcript line(s) skipped", r.ParseErrors))
	}
	if len(r.UnknownModels) > 0 {
		notes = append(notes, fmt.Sprintf("unknown model(s) priced at default rates: %s", strings.Join(r.UnknownModels, ", ")))
	}
	return notes
}

func rangeTitle(agg *report.HistoryReport) string {
	const layout = "Jan 2"
	switch {
	case !agg.Since.IsZero() && !agg.Until.IsZero():
		return fmt.Sprintf("History %s – %s", agg.Since.Format(layout), agg.Until.Format(layout))
	case !agg.Since.IsZero():
		return "History since " + agg.Since.Format(layout)
	default:
		return "History"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "(unknown)"
	}
	return id
}
