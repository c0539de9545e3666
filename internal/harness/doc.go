// Package harness runs scripted quiz sessions against the real engine.
//
// A scenario is a YAML file naming a dataset, session settings, a list of
// steps and a list of assertions. Steps stand in for everything outside the
// engine: the learner's speech (say, interim, no_speech, fail), the passage
// of time (tick), the end of a sound cue (finish_cue, complete_cues) and
// the on-screen controls (skip, pause, resume, review, prev, next, home,
// audio, listen).
//
// The engine runs with deterministic collaborators. Queue generation draws 0
// unless the scenario sets a seed, IDs are sequential, the countdown reads a
// fake clock that only moves on tick, and cues never finish on their own.
// Every processed event and emitted signal is journaled to an in-memory
// database, and the journal is the trace assertions and golden files see.
//
// Settings given in a scenario replace the defaults entirely, so timed
// scenarios must say use_timer: true.
//
// # Golden files
//
// RunWithGolden renders the trace with FormatTrace and compares it against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
