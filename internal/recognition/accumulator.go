package recognition

// Accumulator maintains the result list of one stream. A stream has at most
// one trailing interim result, which later updates replace until it is
// settled by a final one.
//
// Not safe for concurrent use.
type Accumulator struct {
	streamID string
	results  []Result
}

// NewAccumulator creates an empty list for streamID.
func NewAccumulator(streamID string) *Accumulator {
	return &Accumulator{streamID: streamID}
}

// Update merges r into the list and returns the Event describing the change.
func (a *Accumulator) Update(r Result) Event {
	idx := len(a.results)
	if idx > 0 && !a.results[idx-1].IsFinal {
		idx--
		a.results[idx] = r
	} else {
		a.results = append(a.results, r)
	}
	return a.event(idx)
}

// UpdateAll merges one response carrying several results. The response
// replaces the whole interim tail, so an unstable interim pair sent together
// settles as two entries rather than one overwriting the other. The returned
// Event points at the first entry the response touched.
func (a *Accumulator) UpdateAll(rs []Result) Event {
	idx := len(a.results)
	for idx > 0 && !a.results[idx-1].IsFinal {
		idx--
	}
	a.results = append(a.results[:idx], rs...)
	return a.event(idx)
}

// Len returns the number of results on the stream.
func (a *Accumulator) Len() int {
	return len(a.results)
}

func (a *Accumulator) event(idx int) Event {
	snapshot := make([]Result, len(a.results))
	copy(snapshot, a.results)
	return Event{StreamID: a.streamID, ResultIndex: idx, Results: snapshot}
}

// Hypothesis is a convenience constructor for a single-alternative result.
func Hypothesis(transcript string, final bool) Result {
	return Result{
		Alternatives: []Alternative{{Transcript: transcript}},
		IsFinal:      final,
	}
}
