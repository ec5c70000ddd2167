package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kspervik/agentmeter/internal/report"
)

var hookCmd = &cobra.Command{
	Use:   "hook [pre|post|stop]",
	Short: "Hook entry points invoked by the agent host",
	Long: `Records tool-call lifecycle events delivered on stdin by the host's hook
system. Always prints an empty JSON object and exits zero: a metering
failure must never break the host session.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"pre", "post", "stop"},
	Run:       runHook,
}

func init() {
	rootCmd.AddCommand(hookCmd)
}

// hookPayload is the host's hook event, delivered as JSON on stdin.
type hookPayload struct {
	SessionID string          `json:"session_id"`
	ToolName  string          `json:"tool_name"`
	ToolUseID string          `json:"tool_use_id"`
	ToolInput json.RawMessage `json:"tool_input"`
}

func runHook(_ *cobra.Command, args []string) {
	// The host contract: stdout carries exactly "{}", everything else goes
	// to stderr, and the exit code is always zero.
	defer fmt.Println("{}")

	var payload hookPayload
	if data, err := io.ReadAll(os.Stdin); err == nil {
		_ = json.Unmarshal(data, &payload)
	}
	if payload.SessionID == "" {
		payload.SessionID = "unknown"
	}

	st, err := loadStack()
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentmeter hook: %v\n", err)
		return
	}

	now := time.Now().UTC()
	switch args[0] {
	case "pre":
		detail := detailFromInput(payload.ToolName, payload.ToolInput)
		err = st.recorder.RecordStart(payload.SessionID, payload.ToolUseID, payload.ToolName, detail, now)
	case "post":
		err = st.recorder.RecordEnd(payload.SessionID, payload.ToolUseID, payload.ToolName, now)
	case "stop":
		err = finalizeSession(st, payload.SessionID, now)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentmeter hook %s: %v\n", args[0], err)
	}
}

// detailFromInput pulls the human-meaningful part of a tool invocation.
func detailFromInput(tool string, input json.RawMessage) string {
	if len(input) == 0 {
		return ""
	}
	var fields struct {
		Command  string `json:"command"`
		FilePath string `json:"file_path"`
		Path     string `json:"path"`
		Pattern  string `json:"pattern"`
		URL      string `json:"url"`
	}
	if err := json.Unmarshal(input, &fields); err != nil {
		return ""
	}

	var detail string
	switch tool {
	case "Bash":
		detail = fields.Command
	case "Read", "Write", "Edit", "MultiEdit":
		detail = fields.FilePath
		if detail == "" {
			detail = fields.Path
		}
	case "Grep", "Glob":
		detail = fields.Pattern
	case "WebFetch":
		detail = fields.URL
	}
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return detail
}

// finalizeSession recomputes the report from durable state, persists it to
// history, and archives the event log. Replaying a stop for an already
// finalized session is a no-op.
func finalizeSession(st *stack, sessionID string, now time.Time) error {
	recorded, err := st.recorder.RecordStop(sessionID, now)
	if err != nil {
		return err
	}
	if !recorded {
		// Replayed stop for an already finalized session.
		return nil
	}

	r, err := st.agg.BuildReport(sessionID, now)
	if err != nil {
		return fmt.Errorf("building final report: %w", err)
	}

	if !r.Empty {
		store, err := st.openHistory()
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
		defer func() { _ = store.Close() }()

		if err := store.Append(report.EntryFromReport(r, now)); err != nil {
			return fmt.Errorf("recording history: %w", err)
		}
	}

	if _, err := st.recorder.Archive(sessionID, now); err != nil {
		return fmt.Errorf("archiving event log: %w", err)
	}
	return nil
}
