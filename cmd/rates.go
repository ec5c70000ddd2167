package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kspervik/agentmeter/internal/config"
	"github.com/kspervik/agentmeter/internal/render"
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Show the effective rate table",
	Long: `Lists per-million-token prices after merging builtin rates with the user
override file. Overrides live in ` + "`rates.toml`" + ` next to the config file.`,
	RunE: runRates,
}

func init() {
	rootCmd.AddCommand(ratesCmd)
}

func runRates(_ *cobra.Command, _ []string) error {
	rates, err := config.LoadRates(config.RatesPath())
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	rows := make([][]string, 0, len(rates.Models()))
	for _, name := range rates.Models() {
		entry, _, _ := rates.Resolve(name, now)
		label := name
		if name == rates.DefaultModelName() {
			label += " (default)"
		}
		rows = append(rows, []string{
			label,
			fmt.Sprintf("$%.2f", entry.InputPerMTok),
			fmt.Sprintf("$%.2f", entry.OutputPerMTok),
			fmt.Sprintf("$%.2f", entry.CacheWritePerMTok),
			fmt.Sprintf("$%.2f", entry.CacheReadPerMTok),
		})
	}

	fmt.Print(render.RenderTable(render.Table{
		Title:   "Rates per million tokens",
		Headers: []string{"Model", "Input", "Output", "Cache write", "Cache read"},
		Rows:    rows,
	}))
	fmt.Printf("  Override file: %s\n", config.RatesPath())
	return nil
}
