package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sayquiz/internal/session"
)

func sampleTrace() []TraceEntry {
	return []TraceEntry{
		{Seq: 1, Type: TraceEvent, Kind: "start", PhaseBefore: "MENU", PhaseAfter: "QUESTION"},
		{Seq: 2, Type: TraceSignal, Kind: "matched", Signal: &session.Signal{Kind: session.SignalMatched, Phase: session.PhaseMatched, Score: 1, Total: 2, Transcript: "a cat"}},
		{Seq: 3, Type: TraceEvent, Kind: "skip", PhaseBefore: "MATCHED", PhaseAfter: "MATCHED"},
		{Seq: 4, Type: TraceSignal, Kind: "matched", Signal: &session.Signal{Kind: session.SignalMatched, Phase: session.PhaseMatched, Index: 1, Score: 2, Total: 2}},
		{Seq: 5, Type: TraceEvent, Kind: "pause", PhaseBefore: "END", PhaseAfter: "END", Rejected: "E_INVALID_PHASE"},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Name: "signal.matched", Expect: map[string]any{"index": 1, "score": 2}}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Name: "event.pause", Expect: map[string]any{"rejected": "E_INVALID_PHASE"}}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Name: "signal.matched", Expect: map[string]any{"transcript": "a cat", "completed": false}}))

	err := assertTraceContains(trace, Assertion{Name: "signal.matched", Expect: map[string]any{"index": 5}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signal.matched with index=5")
	assert.Contains(t, err.Error(), "0003 event skip MATCHED->MATCHED")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Names: []string{"event.start", "signal.matched", "signal.matched"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Names: []string{"event.skip", "event.pause"}}))

	err := assertTraceOrder(trace, Assertion{Names: []string{"event.skip", "event.start"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event.start not found after the preceding entries")

	err = assertTraceOrder(trace, Assertion{Names: []string{"signal.matched", "signal.matched", "signal.matched"}})
	assert.Error(t, err, "a name matches each entry at most once")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Name: "signal.matched", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Name: "signal.session_ended", Count: 0}))

	err := assertTraceCount(trace, Assertion{Name: "event.start", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 occurrences")
}

func TestAssertCuesPlayed(t *testing.T) {
	assert.NoError(t, assertCuesPlayed([]string{"correct", "quiz_completed"}, Assertion{Cues: []string{"correct", "quiz_completed"}}))
	assert.NoError(t, assertCuesPlayed(nil, Assertion{Cues: []string{}}))
	assert.Error(t, assertCuesPlayed([]string{"correct"}, Assertion{Cues: []string{"incorrect"}}))
	assert.Error(t, assertCuesPlayed([]string{"correct"}, Assertion{Cues: []string{}}))
}

func TestCompareState(t *testing.T) {
	state := map[string]any{"phase": "END", "score": 3, "completed": true, "answer": ""}

	assert.NoError(t, compareState(state, map[string]any{"phase": "END", "score": 3, "completed": true}))
	assert.NoError(t, compareState(state, map[string]any{"answer": ""}))

	err := compareState(state, map[string]any{"score": 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score = 3")

	err = compareState(state, map[string]any{"mood": "happy"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "mood" to exist`)
}

func TestEvaluateAssertions_CollectsFailures(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()
	result.State = map[string]any{"phase": "END"}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertFinalState, Expect: map[string]any{"phase": "END"}},
		{Type: AssertTraceCount, Name: "event.start", Count: 3},
		{Type: "bogus"},
	})

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "trace_count")
	assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
}

func TestFormatTrace(t *testing.T) {
	got := string(FormatTrace("sample", sampleTrace()[:3]))

	assert.Equal(t, "scenario: sample\n"+
		"0001 event start MENU->QUESTION\n"+
		"0002 signal matched MATCHED index=0 score=1/2 transcript=\"a cat\"\n"+
		"0003 event skip MATCHED->MATCHED\n", got)
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
