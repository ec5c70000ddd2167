// Package cmd implements the agentmeter command line interface.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kspervik/agentmeter/internal/config"
	"github.com/kspervik/agentmeter/internal/event"
	"github.com/kspervik/agentmeter/internal/history"
	"github.com/kspervik/agentmeter/internal/report"
	"github.com/kspervik/agentmeter/internal/transcript"
)

var (
	flagDays     int
	flagDataDir  string
	flagAgentDir string
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "agentmeter",
	Short:   "Coding agent usage and cost meter",
	Long:    "Reconstruct what your coding agent sessions did, how long each activity took, and what they cost.",
	Version: version,
	RunE:    runReport,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&flagDays, "days", "n", 0, "Time window in days (defaults to config)")
	rootCmd.PersistentFlags().StringVarP(&flagDataDir, "data-dir", "d", "", "Meter data directory (default XDG data dir)")
	rootCmd.PersistentFlags().StringVar(&flagAgentDir, "agent-dir", "", "Agent home directory holding transcripts (default ~/.claude)")
}

// stack bundles the wired pipeline shared by most commands.
type stack struct {
	cfg      config.Config
	recorder *event.Recorder
	reader   *transcript.Reader
	rates    *config.RateTable
	agg      *report.Aggregator
}

// loadStack builds the pipeline from config and flags. Flags win over the
// config file.
func loadStack() (*stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	dataDir := flagDataDir
	if dataDir == "" {
		dataDir = config.DataDir()
	}
	agentDir := flagAgentDir
	if agentDir == "" {
		agentDir = config.AgentDir(cfg)
	}

	rates, err := config.LoadRates(config.RatesPath())
	if err != nil {
		return nil, fmt.Errorf("loading rate table: %w", err)
	}

	recorder := event.NewRecorder(dataDir)
	reader := transcript.NewReader(agentDir, dataDir)

	return &stack{
		cfg:      cfg,
		recorder: recorder,
		reader:   reader,
		rates:    rates,
		agg:      report.NewAggregator(recorder, reader, rates),
	}, nil
}

func (s *stack) historyPath() string {
	dataDir := flagDataDir
	if dataDir == "" {
		dataDir = config.DataDir()
	}
	return filepath.Join(dataDir, "history.db")
}

func (s *stack) openHistory() (*history.Store, error) {
	return history.Open(s.historyPath())
}

func (s *stack) days() int {
	if flagDays > 0 {
		return flagDays
	}
	if s.cfg.General.DefaultDays > 0 {
		return s.cfg.General.DefaultDays
	}
	return 7
}
