package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sayquiz/internal/journal"
)

func TestClock_Stamps(t *testing.T) {
	tests := []struct {
		name  string
		clock *Clock
		want  []int64
	}{
		{"fresh", NewClock(), []int64{1, 2, 3}},
		{"after existing", NewClockAt(41), []int64{42, 43, 44}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int64
			for range tt.want {
				got = append(got, tt.clock.Next())
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want[len(tt.want)-1], tt.clock.Current())
		})
	}
}

func TestClock_CurrentBeforeFirstStamp(t *testing.T) {
	assert.Equal(t, int64(0), NewClock().Current())
}

func TestClockAfter_EmptyJournal(t *testing.T) {
	j, err := journal.Open("")
	require.NoError(t, err)
	defer j.Close()

	c, err := ClockAfter(context.Background(), j)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Next())
}

func TestClockAfter_ContinuesJournalFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quiz.db")

	j, err := journal.Open(path)
	require.NoError(t, err)
	require.NoError(t, j.WriteEvent(ctx, journal.EventRecord{Seq: 7, SessionID: "s-1", Kind: "start", PhaseBefore: "MENU", PhaseAfter: "QUESTION"}))
	require.NoError(t, j.WriteSignal(ctx, journal.SignalRecord{Seq: 9, SessionID: "s-1", Kind: "phase_changed"}))
	require.NoError(t, j.Close())

	j, err = journal.Open(path)
	require.NoError(t, err)
	defer j.Close()

	c, err := ClockAfter(ctx, j)
	require.NoError(t, err)
	assert.Equal(t, int64(10), c.Next(), "signals count toward the position too")
}
