package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDGenerator returns "<prefix>-1", "<prefix>-2", ... so session
// and recognition stream IDs are stable across runs and golden traces.
//
// Thread-safety: SequentialIDGenerator is safe for concurrent use.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDGenerator creates a generator. An empty prefix becomes "id".
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next ID in sequence.
//
// Implements session.IDGenerator.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// ZeroRand is a random source that always draws 0.
//
// A Fisher-Yates shuffle of n indices driven by ZeroRand yields
// [1, 2, ..., n-1, 0], which scenario files can rely on.
type ZeroRand struct{}

// IntN always returns 0.
func (ZeroRand) IntN(int) int { return 0 }

// ScriptedRand replays a fixed list of draws, each reduced modulo n.
// It panics when the script is exhausted to surface misconfigured tests.
type ScriptedRand struct {
	mu    sync.Mutex
	draws []int
	idx   int
}

// NewScriptedRand creates a source replaying draws in order.
func NewScriptedRand(draws ...int) *ScriptedRand {
	return &ScriptedRand{draws: draws}
}

// IntN returns the next scripted draw modulo n.
func (r *ScriptedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.idx >= len(r.draws) {
		panic("ScriptedRand: all draws exhausted")
	}
	v := r.draws[r.idx]
	r.idx++
	return v % n
}
