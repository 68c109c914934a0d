package store

import (
	"encoding/json"
	"time"
)

// FlowRecord is the persisted representation of a flow document.
type FlowRecord struct {
	ID        string          `json:"id"`
	Name      string          `json:"name,omitempty"`
	Nodes     json.RawMessage `json:"nodes"`
	Edges     json.RawMessage `json:"edges"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RunEvent is an immutable entry in a preview run's transcript log.
type RunEvent struct {
	ID        string          `json:"id"`
	RunID     string          `json:"run_id"`
	FlowID    string          `json:"flow_id,omitempty"`
	NodeID    string          `json:"node_id,omitempty"`
	Type      string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
}
