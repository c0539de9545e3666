// Package session implements the quiz session state machine.
//
// The machine is a pure transition function:
//
//	(State, Event) -> (State, []Effect, error)
//
// It performs no I/O. Starting timers, opening recognition streams, playing
// cues and rendering are returned as Effects for the engine to execute in
// order. This keeps every rule testable without real audio, clocks or
// speech recognition.
//
// PHASES:
//
//	MENU -> QUESTION -> MATCHED -> QUESTION ... -> END -> REVIEW
//
// PAUSED preempts QUESTION, MATCHED or REVIEW and remembers which one.
// "Home" tears the session down from any phase except MENU and PAUSED.
//
// STALE INPUT:
//
// Recognition results, recognition errors, timer signals and cue
// completions are asynchronous and may arrive after the session has moved
// on. They are checked against the current phase (and for recognition, the
// active stream ID) and dropped silently when they no longer apply. User
// controls that do not apply in the current phase return a
// *TransitionError instead; the engine logs it and carries on.
package session
