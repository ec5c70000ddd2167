package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kspervik/agentmeter/internal/render"
)

var flagSummaryBox bool

var reportCmd = &cobra.Command{
	Use:   "report [session-id]",
	Short: "Show the full report for a session",
	Long: `Reconstructs the session report from the event log and transcript.
Without a session ID it reports on the most recently active session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&flagSummaryBox, "summary", false, "Print the compact summary box instead of the full report")
	rootCmd.AddCommand(reportCmd)
}

func runReport(_ *cobra.Command, args []string) error {
	st, err := loadStack()
	if err != nil {
		return err
	}

	var sessionID string
	if len(args) > 0 {
		sessionID = args[0]
	} else {
		active, err := st.recorder.ActiveSessions()
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		if len(active) == 0 {
			return fmt.Errorf("no active session; pass a session ID")
		}
		sessionID = active[0]
	}

	r, err := st.agg.BuildReport(sessionID, time.Now().UTC())
	if err != nil {
		return err
	}

	if flagSummaryBox {
		fmt.Print(render.RenderSummaryBox(r))
		return nil
	}
	fmt.Print(render.RenderSession(r))
	return nil
}
