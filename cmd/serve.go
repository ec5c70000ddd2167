package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kspervik/agentmeter/internal/config"
	"github.com/kspervik/agentmeter/internal/live"
)

var (
	flagServeAddr     string
	flagServeInterval time.Duration
	flagServeSession  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a live session monitor over HTTP/SSE",
	Long: `Runs an HTTP service exposing the live session snapshot at /v1/status and
a server-sent-event stream at /v1/stream. Session and transcript files are
watched so updates arrive faster than the poll interval.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", "", "HTTP listen address (defaults to config)")
	serveCmd.Flags().DurationVar(&flagServeInterval, "interval", 0, "Polling interval (defaults to config)")
	serveCmd.Flags().StringVar(&flagServeSession, "session", "", "Pin to one session instead of following the most recent")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	st, err := loadStack()
	if err != nil {
		return err
	}

	addr := flagServeAddr
	if addr == "" {
		addr = st.cfg.Live.Addr
	}
	interval := flagServeInterval
	if interval <= 0 {
		interval = time.Duration(st.cfg.Live.PollIntervalSecs) * time.Second
	}

	svc := live.New(live.Config{
		SessionID: flagServeSession,
		Addr:      addr,
		Interval:  interval,
	}, st.agg, st.recorder, st.reader)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agentDir := flagAgentDir
	if agentDir == "" {
		agentDir = config.AgentDir(st.cfg)
	}
	if watcher, err := live.NewWatcher(svc, st.recorder.SessionsDir(), agentDir); err == nil {
		defer func() { _ = watcher.Close() }()
		go watcher.Run(ctx)
	} else {
		fmt.Fprintf(os.Stderr, "  File watching unavailable (%v); relying on polling\n", err)
	}

	fmt.Printf("  agentmeter live monitor on http://%s\n", addr)
	fmt.Printf("  Polling every %s; Ctrl-C to stop\n", interval)

	return svc.Run(ctx)
}
