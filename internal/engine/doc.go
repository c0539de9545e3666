// Package engine runs a quiz session.
//
// The engine owns the session state, the countdown timer and the
// recognition stream. Learner input and collaborator callbacks (recognition
// results, cue completions, timer ticks) are enqueued from any goroutine
// and processed one at a time by a single Run loop. Each input goes through
// session.Machine.Transition and the returned effects are executed against
// the collaborators in order.
//
// Single-writer event loop:
//  1. Events are enqueued to a FIFO queue
//  2. Run (or Apply/Drain in tests) dequeues them one at a time
//  3. Inputs are transitioned, journaled and their effects executed
//  4. Ticks re-evaluate the countdown, whose warning and expiry become
//     further inputs
//
// Collaborator failures never escape the loop. They are logged and, where
// the session needs to know, turned into follow-up events.
package engine
