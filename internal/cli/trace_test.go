package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sayquiz/internal/journal"
	"github.com/roach88/sayquiz/internal/session"
)

func runTraceCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func signalPayload(t *testing.T, sig session.Signal) string {
	t.Helper()
	data, err := json.Marshal(sig)
	require.NoError(t, err)
	return string(data)
}

// seedJournal writes a short one-question session "s-1".
func seedJournal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quiz.db")
	j, err := journal.Open(path)
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	require.NoError(t, j.WriteEvent(ctx, journal.EventRecord{Seq: 1, SessionID: "s-1", Kind: "start", PhaseBefore: "MENU", PhaseAfter: "QUESTION"}))
	require.NoError(t, j.WriteSignal(ctx, journal.SignalRecord{Seq: 2, SessionID: "s-1", Kind: "phase_changed",
		Payload: signalPayload(t, session.Signal{Kind: session.SignalPhaseChanged, Phase: session.PhaseQuestion, Total: 1})}))
	require.NoError(t, j.WriteEvent(ctx, journal.EventRecord{Seq: 3, SessionID: "s-1", Kind: "skip", PhaseBefore: "QUESTION", PhaseAfter: "QUESTION", Rejected: "E_INVALID_SKIP"}))
	require.NoError(t, j.WriteEvent(ctx, journal.EventRecord{Seq: 4, SessionID: "s-1", Kind: "recognition", PhaseBefore: "QUESTION", PhaseAfter: "MATCHED"}))
	require.NoError(t, j.WriteSignal(ctx, journal.SignalRecord{Seq: 5, SessionID: "s-1", Kind: "matched",
		Payload: signalPayload(t, session.Signal{Kind: session.SignalMatched, Phase: session.PhaseMatched, Score: 1, Total: 1, Transcript: "cat"})}))
	return path
}

func TestTraceMissingDatabaseFlag(t *testing.T) {
	_, err := runTraceCmd(t, "text", "--session", "s-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTraceNonExistentDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")

	_, err := runTraceCmd(t, "text", "--db", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open journal")
	assert.NoFileExists(t, path, "a missing journal is not created")
}

func TestTraceListsSessions(t *testing.T) {
	out, err := runTraceCmd(t, "text", "--db", seedJournal(t))
	require.NoError(t, err)

	assert.Contains(t, out, "=== Sessions ===")
	assert.Contains(t, out, "s-1  seq 1..4  3 events, 2 signals")
}

func TestTraceListsSessionsJSON(t *testing.T) {
	out, err := runTraceCmd(t, "json", "--db", seedJournal(t))
	require.NoError(t, err)

	var response struct {
		Status string      `json:"status"`
		Data   SessionList `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	require.Len(t, response.Data.Sessions, 1)
	assert.Equal(t, "s-1", response.Data.Sessions[0].ID)
	assert.Equal(t, 3, response.Data.Sessions[0].Events)
}

func TestTraceEmptyJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz.db")
	j, err := journal.Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	out, err := runTraceCmd(t, "text", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found")

	out, err = runTraceCmd(t, "text", "--db", path, "--session", "nope")
	require.NoError(t, err)
	assert.Contains(t, out, "No events found for session: nope")
}

func TestTraceSessionTimeline(t *testing.T) {
	out, err := runTraceCmd(t, "text", "--db", seedJournal(t), "--session", "s-1")
	require.NoError(t, err)

	assert.Contains(t, out, "Trace for Session: s-1")
	assert.Contains(t, out, "0001 event start MENU->QUESTION")
	assert.Contains(t, out, "0003 event skip QUESTION->QUESTION rejected=E_INVALID_SKIP")
	assert.Contains(t, out, `0005 signal matched MATCHED index=0 score=1/1 transcript="cat"`)
	assert.Contains(t, out, "Events:    3 (1 rejected)")
	assert.Contains(t, out, "Score:     1/1")
}

func TestTraceSessionTimelineJSON(t *testing.T) {
	out, err := runTraceCmd(t, "json", "--db", seedJournal(t), "--session", "s-1")
	require.NoError(t, err)

	var response struct {
		Status    string      `json:"status"`
		SessionID string      `json:"session_id"`
		Data      TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "s-1", response.SessionID)
	require.Len(t, response.Data.Timeline, 5)
	assert.Equal(t, "signal", response.Data.Timeline[4].Type)
	require.NotNil(t, response.Data.Timeline[4].Signal)
	assert.Equal(t, "cat", response.Data.Timeline[4].Signal.Transcript)
	assert.Equal(t, TraceStats{Events: 3, Signals: 2, Rejected: 1, Score: 1, Total: 1}, response.Data.Stats)
}

func TestTraceHelpText(t *testing.T) {
	out, err := runTraceCmd(t, "text", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--db")
	assert.Contains(t, out, "--session")
}
