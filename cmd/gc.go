package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Sweep stale session logs into the orphaned directory",
	Long: `Moves active event logs that have seen no activity for the configured
stale window. Orphaned logs stay on disk for inspection; they are never
deleted automatically.`,
	RunE: runGC,
}

func init() {
	rootCmd.AddCommand(gcCmd)
}

func runGC(_ *cobra.Command, _ []string) error {
	st, err := loadStack()
	if err != nil {
		return err
	}

	staleAfter := time.Duration(st.cfg.General.StaleAfterHours) * time.Hour
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}

	moved, err := st.recorder.SweepOrphaned(time.Now().Add(-staleAfter))
	if err != nil {
		return err
	}

	if moved == 0 {
		fmt.Println("  Nothing stale.")
	} else {
		fmt.Printf("  Moved %d stale session log(s) to %s\n", moved, st.recorder.OrphanedDir())
	}
	return nil
}
