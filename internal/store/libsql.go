package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/botflowhq/botflow/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage (e.g. transcript log).
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate applies any pending schema revisions.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return applySchema(ctx, s.db)
}

// --- Flows ---

// SaveFlow inserts or replaces a flow record. The caller owns id generation;
// save is an upsert so the editor can hit one endpoint for create and update.
func (s *LibSQLStore) SaveFlow(ctx context.Context, flow *FlowRecord) error {
	if flow.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "flow id is empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO flows (id, name, nodes, edges, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   nodes = excluded.nodes,
		   edges = excluded.edges,
		   updated_at = excluded.updated_at`,
		flow.ID, nullStr(flow.Name), string(flow.Nodes), string(flow.Edges),
		timeOrNow(flow.CreatedAt), time.Now().UTC(),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "save flow: %s", err.Error()).WithCause(err)
	}
	return nil
}

// GetFlow returns a flow record by id.
func (s *LibSQLStore) GetFlow(ctx context.Context, id string) (*FlowRecord, error) {
	flow := &FlowRecord{}
	var name sql.NullString
	var nodes, edges string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, nodes, edges, created_at, updated_at FROM flows WHERE id = ?`, id,
	).Scan(&flow.ID, &name, &nodes, &edges, &flow.CreatedAt, &flow.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("flow", id)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "get flow: %s", err.Error()).WithCause(err)
	}
	flow.Name = name.String
	flow.Nodes = json.RawMessage(nodes)
	flow.Edges = json.RawMessage(edges)
	return flow, nil
}

// ListFlows returns all flow records ordered by most recently updated.
func (s *LibSQLStore) ListFlows(ctx context.Context) ([]*FlowRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, nodes, edges, created_at, updated_at FROM flows ORDER BY updated_at DESC`)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list flows: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var flows []*FlowRecord
	for rows.Next() {
		flow := &FlowRecord{}
		var name sql.NullString
		var nodes, edges string
		if err := rows.Scan(&flow.ID, &name, &nodes, &edges, &flow.CreatedAt, &flow.UpdatedAt); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "scan flow: %s", err.Error()).WithCause(err)
		}
		flow.Name = name.String
		flow.Nodes = json.RawMessage(nodes)
		flow.Edges = json.RawMessage(edges)
		flows = append(flows, flow)
	}
	return flows, rows.Err()
}

// DeleteFlow removes a flow record and its run events.
func (s *LibSQLStore) DeleteFlow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM flows WHERE id = ?`, id)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "delete flow: %s", err.Error()).WithCause(err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM run_events WHERE flow_id = ?`, id); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "delete flow events: %s", err.Error()).WithCause(err)
	}
	return checkRowsAffected(res, "flow", id)
}

// --- Run events ---

// AppendEvent appends a run event; the sequence must already be assigned.
// Use TranscriptLog.AppendEvent for sequence allocation.
func (s *LibSQLStore) AppendEvent(ctx context.Context, event *RunEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_events (id, run_id, flow_id, node_id, event_type, payload, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.RunID, nullStr(event.FlowID), nullStr(event.NodeID), event.Type,
		nullRaw(event.Payload), event.Timestamp, event.Sequence,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "insert run event: %s", err.Error()).WithCause(err)
	}
	return nil
}

// GetEvents returns events for a run with sequence > since, ordered by sequence ASC.
func (s *LibSQLStore) GetEvents(ctx context.Context, runID string, since int64) ([]*RunEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, flow_id, node_id, event_type, payload, timestamp, sequence
		 FROM run_events WHERE run_id = ? AND sequence > ? ORDER BY sequence ASC`,
		runID, since,
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "get run events: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var events []*RunEvent
	for rows.Next() {
		e := &RunEvent{}
		var flowID, nodeID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &flowID, &nodeID, &e.Type, &payload, &e.Timestamp, &e.Sequence); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "scan run event: %s", err.Error()).WithCause(err)
		}
		e.FlowID = flowID.String
		e.NodeID = nodeID.String
		e.Payload = jsonOrNil(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

var _ Store = (*LibSQLStore)(nil)

// --- helpers ---

func storeNotFound(resource, id string) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func jsonOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}
