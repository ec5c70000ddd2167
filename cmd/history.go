package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kspervik/agentmeter/internal/render"
	"github.com/kspervik/agentmeter/internal/report"
)

var (
	flagSince string
	flagUntil string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show finalized session history",
	Long: `Aggregates finalized sessions over a date range. By default the range is
the configured trailing window of days; --since/--until set explicit
inclusive bounds (YYYY-MM-DD).`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&flagSince, "since", "", "Range start date (YYYY-MM-DD, inclusive)")
	historyCmd.Flags().StringVar(&flagUntil, "until", "", "Range end date (YYYY-MM-DD, inclusive)")
	rootCmd.AddCommand(historyCmd)
}

// resolveRange turns flags into inclusive date bounds.
func resolveRange(st *stack) (since, until time.Time, err error) {
	const layout = "2006-01-02"
	if flagSince != "" {
		since, err = time.Parse(layout, flagSince)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing --since: %w", err)
		}
	}
	if flagUntil != "" {
		until, err = time.Parse(layout, flagUntil)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing --until: %w", err)
		}
	}
	if since.IsZero() && until.IsZero() {
		today := time.Now().UTC().Truncate(24 * time.Hour)
		return today.AddDate(0, 0, -(st.days() - 1)), today, nil
	}
	return since, until, nil
}

func runHistory(_ *cobra.Command, _ []string) error {
	st, err := loadStack()
	if err != nil {
		return err
	}

	since, until, err := resolveRange(st)
	if err != nil {
		return err
	}

	store, err := st.openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entries, err := store.Query(since, until)
	if err != nil {
		return err
	}

	fmt.Print(render.RenderHistory(report.Aggregate(entries, since, until)))
	return nil
}
