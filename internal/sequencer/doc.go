// Package sequencer builds and reorders the question queue of a quiz session.
//
// A queue is a fixed-length list of dataset indices. It is built once at
// session start by Generate and afterwards only reordered by Skip, which
// defers the current question to the back. Advance computes navigation
// targets and rejects out-of-range moves without touching any state, which
// is what disabled previous/next controls at the queue boundaries map onto.
//
// Randomness comes from a Source so that tests and scripted scenarios can run
// with a deterministic draw sequence.
package sequencer
