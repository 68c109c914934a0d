package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Flow documents are stored in the builder's wire format: nodes and edges as
// JSON arrays, exactly as the canvas saved them.
const createFlowsTable = `CREATE TABLE IF NOT EXISTS flows (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	nodes      TEXT NOT NULL DEFAULT '[]',
	edges      TEXT NOT NULL DEFAULT '[]',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Append-only transcript of preview run events. Sequences are allocated per
// run and must be contiguous starting at 1; the UNIQUE constraint backstops
// the allocator.
const createRunEventsTable = `CREATE TABLE IF NOT EXISTS run_events (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	flow_id    TEXT NOT NULL,
	node_id    TEXT,
	event_type TEXT NOT NULL,
	payload    TEXT,
	timestamp  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	sequence   INTEGER NOT NULL,
	UNIQUE (run_id, sequence)
)`

const createRunEventsRunIndex = `CREATE INDEX IF NOT EXISTS idx_run_events_run
	ON run_events (run_id, sequence)`

const createRunEventsFlowIndex = `CREATE INDEX IF NOT EXISTS idx_run_events_flow
	ON run_events (flow_id)`

// schemaRevision is one step of the database schema, applied atomically.
// Append new revisions; never edit a shipped one.
type schemaRevision struct {
	version    int
	statements []string
}

var schemaRevisions = []schemaRevision{
	{
		version: 1,
		statements: []string{
			createFlowsTable,
			createRunEventsTable,
			createRunEventsRunIndex,
			createRunEventsFlowIndex,
		},
	},
}

// applySchema brings the database up to the latest revision. The applied
// version lives in PRAGMA user_version, so an up-to-date database is a
// single read. Each revision runs in its own transaction.
func applySchema(ctx context.Context, db *sql.DB) error {
	var current int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, rev := range schemaRevisions {
		if rev.version <= current {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema revision %d: %w", rev.version, err)
		}
		for _, stmt := range rev.statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("apply schema revision %d: %w", rev.version, err)
			}
		}
		// PRAGMA does not accept bind parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", rev.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record schema revision %d: %w", rev.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit schema revision %d: %w", rev.version, err)
		}
	}
	return nil
}
