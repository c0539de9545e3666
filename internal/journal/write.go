package journal

import (
	"context"
	"fmt"
)

// EventRecord is one processed event.
type EventRecord struct {
	Seq         int64  `json:"seq"`
	SessionID   string `json:"session_id,omitempty"`
	Kind        string `json:"kind"`
	PhaseBefore string `json:"phase_before"`
	PhaseAfter  string `json:"phase_after"`

	// Rejected is the transition error code when the event was refused.
	Rejected string `json:"rejected,omitempty"`

	// Payload is the event encoded as JSON.
	Payload string `json:"payload"`
}

// SignalRecord is one emitted signal.
type SignalRecord struct {
	Seq       int64  `json:"seq"`
	SessionID string `json:"session_id,omitempty"`
	Kind      string `json:"kind"`
	Payload   string `json:"payload"`
}

// WriteEvent appends an event record. Writing the same seq twice is a
// no-op, so a retried write cannot duplicate history.
func (j *Journal) WriteEvent(ctx context.Context, rec EventRecord) error {
	if rec.Payload == "" {
		rec.Payload = "{}"
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO events
		(seq, session_id, kind, phase_before, phase_after, rejected, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		rec.Seq,
		rec.SessionID,
		rec.Kind,
		rec.PhaseBefore,
		rec.PhaseAfter,
		rec.Rejected,
		rec.Payload,
	)
	if err != nil {
		return fmt.Errorf("write event %d: %w", rec.Seq, err)
	}
	return nil
}

// WriteSignal appends a signal record. Writing the same seq twice is a
// no-op.
func (j *Journal) WriteSignal(ctx context.Context, rec SignalRecord) error {
	if rec.Payload == "" {
		rec.Payload = "{}"
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO signals
		(seq, session_id, kind, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		rec.Seq,
		rec.SessionID,
		rec.Kind,
		rec.Payload,
	)
	if err != nil {
		return fmt.Errorf("write signal %d: %w", rec.Seq, err)
	}
	return nil
}
