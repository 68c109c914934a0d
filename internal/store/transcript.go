package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/botflowhq/botflow/pkg/schema"
)

// TranscriptLog is the append-only log of preview run events. It owns
// sequence allocation: every append runs in a transaction that reads the
// current maximum sequence for the run and assigns the next one, so
// sequences are contiguous starting at 1 even under concurrent appends.
type TranscriptLog struct {
	db *sql.DB
}

// NewTranscriptLog creates a transcript log on top of an open database.
func NewTranscriptLog(db *sql.DB) *TranscriptLog {
	return &TranscriptLog{db: db}
}

// AppendEvent assigns the next sequence for the event's run and persists it.
// The assigned sequence is written back into the event.
func (t *TranscriptLog) AppendEvent(ctx context.Context, event *RunEvent) error {
	if event.RunID == "" {
		return schema.NewError(schema.ErrCodeValidation, "run event has no run id")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "begin append: %s", err.Error()).WithCause(err)
	}
	defer tx.Rollback()

	var next int64
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM run_events WHERE run_id = ?`, event.RunID)
	if err := row.Scan(&next); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "allocate sequence: %s", err.Error()).WithCause(err)
	}
	event.Sequence = next

	_, err = tx.ExecContext(ctx,
		`INSERT INTO run_events (id, run_id, flow_id, node_id, event_type, payload, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.RunID, nullStr(event.FlowID), nullStr(event.NodeID), event.Type,
		nullRaw(event.Payload), event.Timestamp, event.Sequence,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "insert run event: %s", err.Error()).WithCause(err)
	}
	if err := tx.Commit(); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "commit append: %s", err.Error()).WithCause(err)
	}
	return nil
}

// GetEvents returns events for a run with sequence > since, ordered by sequence.
func (t *TranscriptLog) GetEvents(ctx context.Context, runID string, since int64) ([]*RunEvent, error) {
	s := &LibSQLStore{db: t.db}
	return s.GetEvents(ctx, runID, since)
}

// Replay rebuilds the chat transcript of a run from its event log. Only
// message-bearing events contribute; lifecycle events are skipped. A gap
// in the sequence numbering is reported as a store error.
func (t *TranscriptLog) Replay(ctx context.Context, runID string) ([]schema.Message, error) {
	events, err := t.GetEvents(ctx, runID, 0)
	if err != nil {
		return nil, err
	}

	var messages []schema.Message
	var prev int64
	for _, e := range events {
		if e.Sequence != prev+1 {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"transcript for run %s has a sequence gap: %d follows %d", runID, e.Sequence, prev)
		}
		prev = e.Sequence

		switch e.Type {
		case schema.EventMessageEmitted, schema.EventInputReceived:
			var msg schema.Message
			if len(e.Payload) == 0 {
				continue
			}
			if err := json.Unmarshal(e.Payload, &msg); err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeStore,
					"decode message payload at sequence %d: %s", e.Sequence, err.Error()).WithCause(err)
			}
			if msg.NodeID == "" {
				msg.NodeID = e.NodeID
			}
			messages = append(messages, msg)
		}
	}
	return messages, nil
}
