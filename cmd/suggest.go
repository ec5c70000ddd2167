package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kspervik/agentmeter/internal/render"
)

var flagTopN int

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Show spending-pattern suggestions from recent history",
	RunE:  runSuggest,
}

func init() {
	suggestCmd.Flags().IntVar(&flagTopN, "top", 0, "Maximum suggestions to show (defaults to config)")
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(_ *cobra.Command, _ []string) error {
	st, err := loadStack()
	if err != nil {
		return err
	}

	since, until, err := resolveRange(st)
	if err != nil {
		return err
	}

	topN := flagTopN
	if topN <= 0 {
		topN = st.cfg.Report.TopSuggestions
	}
	if topN <= 0 {
		topN = 3
	}

	store, err := st.openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	suggestions, err := store.Suggest(since, until, topN)
	if err != nil {
		return err
	}

	fmt.Print(render.RenderSuggestions(suggestions))
	return nil
}
