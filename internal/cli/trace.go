package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sayquiz/internal/harness"
	"github.com/roach88/sayquiz/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string // optional - list sessions when empty
}

// TraceResult holds the timeline of one session.
type TraceResult struct {
	SessionID string               `json:"session_id"`
	Timeline  []harness.TraceEntry `json:"timeline"`
	Stats     TraceStats           `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Events    int  `json:"events"`
	Signals   int  `json:"signals"`
	Rejected  int  `json:"rejected"`
	Score     int  `json:"score"`
	Total     int  `json:"total"`
	Completed bool `json:"completed"`
}

// SessionList holds the sessions of a journal.
type SessionList struct {
	Sessions []journal.Session `json:"sessions"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print a journaled session",
		Long: `Print the timeline of a journaled quiz session.

Without --session the sessions in the journal are listed. With it, every
processed event (with its phase change, or the code it was rejected
with) and every emitted signal is printed in seq order.

Examples:
  sayquiz trace --db ./quiz.db
  sayquiz trace --db ./quiz.db --session 0193...
  sayquiz trace --db ./quiz.db --session 0193... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID to print")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Opening a missing file would create an empty journal.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	if opts.Session == "" {
		return listSessions(ctx, opts, j, cmd)
	}

	entries, err := j.Timeline(ctx, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read timeline", err)
	}
	timeline, err := harness.FromJournal(entries)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to decode timeline", err)
	}

	result := TraceResult{
		SessionID: opts.Session,
		Timeline:  timeline,
		Stats:     traceStats(timeline),
	}
	return newFormatter(opts.RootOptions, cmd).Report(result, opts.Session, func(w io.Writer) {
		outputTraceText(w, result)
	})
}

func listSessions(ctx context.Context, opts *TraceOptions, j *journal.Journal, cmd *cobra.Command) error {
	sessions, err := j.Sessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	return newFormatter(opts.RootOptions, cmd).Report(SessionList{Sessions: sessions}, "", func(w io.Writer) {
		if len(sessions) == 0 {
			fmt.Fprintln(w, "No sessions found.")
			return
		}
		fmt.Fprintln(w, "=== Sessions ===")
		for _, s := range sessions {
			fmt.Fprintf(w, "  %s  seq %d..%d  %d events, %d signals\n", s.ID, s.FirstSeq, s.LastSeq, s.Events, s.Signals)
		}
	})
}

// traceStats counts the timeline and takes the score from its last signal.
func traceStats(timeline []harness.TraceEntry) TraceStats {
	var stats TraceStats
	for _, e := range timeline {
		if e.Type == harness.TraceEvent {
			stats.Events++
			if e.Rejected != "" {
				stats.Rejected++
			}
			continue
		}
		stats.Signals++
		if e.Signal != nil {
			stats.Score = e.Signal.Score
			stats.Total = e.Signal.Total
			stats.Completed = e.Signal.Completed
		}
	}
	return stats
}

func outputTraceText(w io.Writer, result TraceResult) {
	if len(result.Timeline) == 0 {
		fmt.Fprintf(w, "No events found for session: %s\n", result.SessionID)
		return
	}

	fmt.Fprintf(w, "Trace for Session: %s\n", result.SessionID)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	for _, entry := range result.Timeline {
		fmt.Fprintf(w, "  %s\n", entry.String())
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Events:    %d (%d rejected)\n", result.Stats.Events, result.Stats.Rejected)
	fmt.Fprintf(w, "  Signals:   %d\n", result.Stats.Signals)
	fmt.Fprintf(w, "  Score:     %d/%d\n", result.Stats.Score, result.Stats.Total)
	fmt.Fprintf(w, "  Completed: %v\n", result.Stats.Completed)
}
