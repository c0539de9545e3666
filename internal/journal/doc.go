// Package journal records a session as it happens.
//
// Every event the engine processes and every signal it emits is written
// with its logical sequence number, so a session can be inspected after
// the fact with the trace command. The default DSN is ":memory:", which
// keeps the journal for the lifetime of the process only.
//
// The journal is append-only. Writes come from the engine's Run goroutine;
// reads may happen concurrently.
package journal
