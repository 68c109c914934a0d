package graph

import "github.com/botflowhq/botflow/pkg/schema"

// History is a linear undo stack of immutable flow snapshots with a cursor.
// New records after an undo discard the forward entries.
type History struct {
	snapshots []*schema.Flow
	index     int
}

// NewHistory creates a history seeded with the initial state of the flow.
func NewHistory(initial *schema.Flow) *History {
	return &History{
		snapshots: []*schema.Flow{initial.Clone()},
		index:     0,
	}
}

// Record appends a deep copy of the flow after the cursor, discarding any
// forward history, and advances the cursor to the new snapshot.
func (h *History) Record(flow *schema.Flow) {
	h.snapshots = append(h.snapshots[:h.index+1], flow.Clone())
	h.index = len(h.snapshots) - 1
}

// Undo moves the cursor back one snapshot and returns a copy of it.
// Returns (nil, false) when already at the oldest entry.
func (h *History) Undo() (*schema.Flow, bool) {
	if h.index <= 0 {
		return nil, false
	}
	h.index--
	return h.snapshots[h.index].Clone(), true
}

// Redo moves the cursor forward one snapshot and returns a copy of it.
// Returns (nil, false) when already at the newest entry.
func (h *History) Redo() (*schema.Flow, bool) {
	if h.index >= len(h.snapshots)-1 {
		return nil, false
	}
	h.index++
	return h.snapshots[h.index].Clone(), true
}

// CanUndo reports whether an older snapshot exists.
func (h *History) CanUndo() bool { return h.index > 0 }

// CanRedo reports whether a newer snapshot exists.
func (h *History) CanRedo() bool { return h.index < len(h.snapshots)-1 }

// Len returns the number of stored snapshots.
func (h *History) Len() int { return len(h.snapshots) }
