package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/kspervik/agentmeter/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive configuration wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg, _ := config.Load()

	agentDir := cfg.General.AgentDir
	days := strconv.Itoa(cfg.General.DefaultDays)
	addr := cfg.Live.Addr
	suggestions := strconv.Itoa(cfg.Report.TopSuggestions)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Agent directory").
				Description("Where the host agent keeps its transcripts (blank for ~/.claude)").
				Value(&agentDir),
			huh.NewSelect[string]().
				Title("Default history window").
				Options(
					huh.NewOption("7 days", "7"),
					huh.NewOption("30 days", "30"),
					huh.NewOption("90 days", "90"),
				).
				Value(&days),
			huh.NewInput().
				Title("Live monitor address").
				Description("Listen address for `agentmeter serve`").
				Value(&addr),
			huh.NewSelect[string]().
				Title("Suggestions shown").
				Options(
					huh.NewOption("3", "3"),
					huh.NewOption("5", "5"),
					huh.NewOption("10", "10"),
				).
				Value(&suggestions),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	cfg.General.AgentDir = agentDir
	if n, err := strconv.Atoi(days); err == nil && n > 0 {
		cfg.General.DefaultDays = n
	}
	if addr != "" {
		cfg.Live.Addr = addr
	}
	if n, err := strconv.Atoi(suggestions); err == nil && n > 0 {
		cfg.Report.TopSuggestions = n
	}

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	fmt.Println("  Run `agentmeter setup` anytime to reconfigure.")
	return nil
}
