package harness

import (
	"fmt"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEntry // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, entry := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", entry.String())
		}
	}

	return buf.String()
}

// assertTraceContains checks that some entry with the assertion's name
// matches every expected field.
func assertTraceContains(trace []TraceEntry, assertion Assertion) error {
	for _, entry := range trace {
		if entry.Name() == assertion.Name && matchFields(entry.fields(), assertion.Expect) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s with %s", assertion.Name, formatExpect(assertion.Expect)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the named entries appear in the specified
// order. Entries don't need to be consecutive, and each name is matched
// after the position of the previous one, so a name may repeat.
func assertTraceOrder(trace []TraceEntry, assertion Assertion) error {
	pos := 0
	for _, name := range assertion.Names {
		found := false
		for pos < len(trace) {
			entry := trace[pos]
			pos++
			if entry.Name() == name {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("entries in order: %v", assertion.Names),
				Actual:   fmt.Sprintf("%s not found after the preceding entries", name),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the named entry appears exactly the
// specified number of times.
func assertTraceCount(trace []TraceEntry, assertion Assertion) error {
	count := 0
	for _, entry := range trace {
		if entry.Name() == assertion.Name {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Name),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the final state snapshot (subset match).
func assertFinalState(state map[string]any, assertion Assertion) error {
	return compareState(state, assertion.Expect)
}

// assertCuesPlayed checks the exact sequence of cues started.
func assertCuesPlayed(cues []string, assertion Assertion) error {
	equal := len(cues) == len(assertion.Cues)
	for i := 0; equal && i < len(cues); i++ {
		equal = cues[i] == assertion.Cues[i]
	}
	if equal {
		return nil
	}
	return &AssertionError{
		Type:     AssertCuesPlayed,
		Expected: fmt.Sprintf("%v", assertion.Cues),
		Actual:   fmt.Sprintf("%v", cues),
	}
}

// compareState checks expected keys against a state snapshot. Values are
// compared by their printed form, so YAML scalars match Go values.
func compareState(state map[string]any, expect map[string]any) error {
	for _, key := range sortedKeys(expect) {
		actual, ok := state[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("fields are %v", sortedKeys(state)),
			}
		}
		if fmt.Sprint(expect[key]) != fmt.Sprint(actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %v", key, expect[key]),
				Actual:   fmt.Sprintf("%s = %v", key, actual),
			}
		}
	}
	return nil
}

// matchFields checks that actual carries every expected field.
// Extra fields in actual are ignored.
func matchFields(actual map[string]string, expected map[string]any) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok || got != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func formatExpect(expect map[string]any) string {
	if len(expect) == 0 {
		return "(any fields)"
	}
	parts := make([]string, 0, len(expect))
	for _, k := range sortedKeys(expect) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, expect[k]))
	}
	return strings.Join(parts, " ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		case AssertCuesPlayed:
			err = assertCuesPlayed(result.Cues, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
