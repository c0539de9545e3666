package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// FormatTrace renders a trace as the line-oriented golden text:
//
//	scenario: <name>
//	0001 event start MENU->QUESTION
//	0002 signal phase_changed QUESTION index=0 score=0/3
//
// Rejected events carry " rejected=<code>". Signals append " completed"
// and a quoted transcript when set.
func FormatTrace(name string, trace []TraceEntry) []byte {
	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario: %s\n", name)
	for _, entry := range trace {
		buf.WriteString(entry.String())
		buf.WriteByte('\n')
	}
	return []byte(buf.String())
}

// String renders the entry as one golden trace line.
func (e TraceEntry) String() string {
	if e.Type == TraceEvent {
		line := fmt.Sprintf("%04d event %s %s->%s", e.Seq, e.Kind, e.PhaseBefore, e.PhaseAfter)
		if e.Rejected != "" {
			line += " rejected=" + e.Rejected
		}
		return line
	}

	line := fmt.Sprintf("%04d signal %s", e.Seq, e.Kind)
	if s := e.Signal; s != nil {
		line += fmt.Sprintf(" %s index=%d score=%d/%d", s.Phase, s.Index, s.Score, s.Total)
		if s.Completed {
			line += " completed"
		}
		if s.Transcript != "" {
			line += fmt.Sprintf(" transcript=%q", s.Transcript)
		}
	}
	return line
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result for further checks, or an error if the scenario could
// not run. Test failure (via goldie) occurs if the trace doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, FormatTrace(scenarioName, result.Trace))
}
