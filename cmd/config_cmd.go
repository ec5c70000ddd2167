package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kspervik/agentmeter/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Default days:     %d\n", cfg.General.DefaultDays)
	fmt.Printf("    Agent directory:  %s\n", config.AgentDir(cfg))
	fmt.Printf("    Stale after:      %dh\n", cfg.General.StaleAfterHours)
	fmt.Println()

	fmt.Println("  [Report]")
	fmt.Printf("    Top suggestions:  %d\n", cfg.Report.TopSuggestions)
	fmt.Println()

	fmt.Println("  [Live]")
	fmt.Printf("    Address:          %s\n", cfg.Live.Addr)
	fmt.Printf("    Poll interval:    %ds\n", cfg.Live.PollIntervalSecs)
	fmt.Println()

	fmt.Printf("  Data directory: %s\n", config.DataDir())
	fmt.Println("  Run `agentmeter setup` to reconfigure.")
	return nil
}
