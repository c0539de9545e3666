package sequencer

import (
	"fmt"
	"math/rand/v2"
)

// Source supplies uniform random integers in [0, n).
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
}

// globalSource draws from the math/rand/v2 top-level generator.
type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// DefaultSource returns a Source backed by the process-wide generator.
func DefaultSource() Source {
	return globalSource{}
}

// NewSeededSource returns a reproducible Source for the given seed.
func NewSeededSource(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Queue is the ordered list of dataset indices asked during a session.
type Queue []int

// Len returns the queue length.
func (q Queue) Len() int { return len(q) }

// At returns the dataset index at queue position i.
func (q Queue) At(i int) int { return q[i] }

// IsLast reports whether i is the final queue position.
func (q Queue) IsLast(i int) bool { return i == len(q)-1 }

// Clone returns an independent copy of the queue.
func (q Queue) Clone() Queue {
	if q == nil {
		return nil
	}
	out := make(Queue, len(q))
	copy(out, q)
	return out
}

// Generate builds a queue of sampleSize dataset indices drawn from
// [0, datasetSize).
//
// Without replacement the result is a prefix of a Fisher-Yates shuffle of
// every index, so all entries are distinct. With replacement each position is
// an independent uniform draw and repeats are allowed.
//
// No partial queue is ever returned: on error the queue is nil.
func Generate(src Source, datasetSize, sampleSize int, withReplacement bool) (Queue, error) {
	if sampleSize < 0 {
		return nil, fmt.Errorf("sample size must not be negative: %d", sampleSize)
	}
	if src == nil {
		src = DefaultSource()
	}

	if withReplacement {
		if datasetSize <= 0 && sampleSize > 0 {
			return nil, &InsufficientDataError{Requested: sampleSize, Available: datasetSize}
		}
		q := make(Queue, sampleSize)
		for i := range q {
			q[i] = src.IntN(datasetSize)
		}
		return q, nil
	}

	if sampleSize > datasetSize {
		return nil, &InsufficientDataError{Requested: sampleSize, Available: datasetSize}
	}

	all := make(Queue, datasetSize)
	for i := range all {
		all[i] = i
	}
	for i := len(all) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		all[i], all[j] = all[j], all[i]
	}

	return all[:sampleSize:sampleSize], nil
}

// Skip defers the question at index to the back of the queue.
//
// The returned queue is a reordered copy; the input is never modified. The
// element now at index is the next question to render. Skipping the last
// position returns the queue unchanged together with an InvalidSkipError.
func Skip(q Queue, index int) (Queue, error) {
	if index < 0 || index >= len(q)-1 {
		return q, &InvalidSkipError{Index: index, Length: len(q)}
	}

	out := make(Queue, 0, len(q))
	out = append(out, q[:index]...)
	out = append(out, q[index+1:]...)
	out = append(out, q[index])
	return out, nil
}

// Advance returns index+delta when it lies inside the queue.
// Out-of-range targets return (index, false) so the caller can treat the
// request as a no-op.
func Advance(q Queue, index, delta int) (int, bool) {
	next := index + delta
	if next < 0 || next >= len(q) {
		return index, false
	}
	return next, true
}
