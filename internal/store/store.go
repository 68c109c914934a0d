package store

import "context"

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Flows
	SaveFlow(ctx context.Context, flow *FlowRecord) error
	GetFlow(ctx context.Context, id string) (*FlowRecord, error)
	ListFlows(ctx context.Context) ([]*FlowRecord, error)
	DeleteFlow(ctx context.Context, id string) error

	// Run transcript (append-only)
	AppendEvent(ctx context.Context, event *RunEvent) error
	GetEvents(ctx context.Context, runID string, since int64) ([]*RunEvent, error)

	// Maintenance
	Migrate(ctx context.Context) error

	// Lifecycle
	Close() error
}
