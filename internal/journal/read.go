package journal

import (
	"context"
	"fmt"
	"sort"
)

// Session summarizes one journaled session.
type Session struct {
	ID       string `json:"id"`
	Events   int    `json:"events"`
	Signals  int    `json:"signals"`
	FirstSeq int64  `json:"first_seq"`
	LastSeq  int64  `json:"last_seq"`
}

// Entry is one line of a timeline: exactly one of Event or Signal is set.
type Entry struct {
	Seq    int64         `json:"seq"`
	Event  *EventRecord  `json:"event,omitempty"`
	Signal *SignalRecord `json:"signal,omitempty"`
}

// ReadEvents returns the events of sessionID ordered by seq. Returns an
// empty slice, not nil, when there are none.
func (j *Journal) ReadEvents(ctx context.Context, sessionID string) ([]EventRecord, error) {
	return j.queryEvents(ctx, `
		SELECT seq, session_id, kind, phase_before, phase_after, rejected, payload
		FROM events
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
}

// ReadSignals returns the signals of sessionID ordered by seq.
func (j *Journal) ReadSignals(ctx context.Context, sessionID string) ([]SignalRecord, error) {
	return j.querySignals(ctx, `
		SELECT seq, session_id, kind, payload
		FROM signals
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
}

// Timeline merges the events and signals of sessionID in seq order.
func (j *Journal) Timeline(ctx context.Context, sessionID string) ([]Entry, error) {
	events, err := j.ReadEvents(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	signals, err := j.ReadSignals(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return merge(events, signals), nil
}

// FullTimeline merges every event and signal in the journal in seq order,
// including those recorded outside a session.
func (j *Journal) FullTimeline(ctx context.Context) ([]Entry, error) {
	events, err := j.queryEvents(ctx, `
		SELECT seq, session_id, kind, phase_before, phase_after, rejected, payload
		FROM events
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, err
	}
	signals, err := j.querySignals(ctx, `
		SELECT seq, session_id, kind, payload
		FROM signals
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, err
	}
	return merge(events, signals), nil
}

func merge(events []EventRecord, signals []SignalRecord) []Entry {
	entries := make([]Entry, 0, len(events)+len(signals))
	for i := range events {
		entries = append(entries, Entry{Seq: events[i].Seq, Event: &events[i]})
	}
	for i := range signals {
		entries = append(entries, Entry{Seq: signals[i].Seq, Signal: &signals[i]})
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Seq < entries[b].Seq })
	return entries
}

func (j *Journal) queryEvents(ctx context.Context, query string, args ...any) ([]EventRecord, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []EventRecord{}
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(&rec.Seq, &rec.SessionID, &rec.Kind, &rec.PhaseBefore, &rec.PhaseAfter, &rec.Rejected, &rec.Payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func (j *Journal) querySignals(ctx context.Context, query string, args ...any) ([]SignalRecord, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	signals := []SignalRecord{}
	for rows.Next() {
		var rec SignalRecord
		if err := rows.Scan(&rec.Seq, &rec.SessionID, &rec.Kind, &rec.Payload); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		signals = append(signals, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return signals, nil
}

// Sessions lists every journaled session ordered by first seq. Events
// processed before any session started are not listed.
func (j *Journal) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT e.session_id, COUNT(*), MIN(e.seq), MAX(e.seq),
		       (SELECT COUNT(*) FROM signals s WHERE s.session_id = e.session_id)
		FROM events e
		WHERE e.session_id <> ''
		GROUP BY e.session_id
		ORDER BY MIN(e.seq) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Events, &s.FirstSeq, &s.LastSeq, &s.Signals); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// MaxSeq returns the highest seq in the journal, or 0 when it is empty.
// An engine appending to an existing file starts its clock here.
func (j *Journal) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := j.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM (
			SELECT seq FROM events
			UNION ALL
			SELECT seq FROM signals
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query max seq: %w", err)
	}
	return seq, nil
}
