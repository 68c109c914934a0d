// Package graph owns the authoritative flow document and enforces its
// structural invariants on every mutation: unique ids, a single protected
// start node, edges that reference existing nodes, and at most one edge per
// ordered (from, to) pair. Each completed mutation records an undo snapshot.
package graph

import (
	"github.com/google/uuid"

	"github.com/botflowhq/botflow/internal/registry"
	"github.com/botflowhq/botflow/pkg/schema"
)

// Document wraps a Flow with invariant-preserving mutations and undo history.
// Invalid mutation requests (deleting the start node, self-connections,
// duplicate edges, unknown ids) are silent no-ops: callers compare state, they
// do not catch errors.
type Document struct {
	flow     *schema.Flow
	history  *History
	registry *registry.Registry
}

// NewDocument wraps a loaded flow. A flow with zero nodes is repaired by
// synthesizing a start node at the default position so the canvas is never
// empty. The initial history snapshot is taken after the repair.
func NewDocument(reg *registry.Registry, flow *schema.Flow) *Document {
	if flow == nil {
		flow = &schema.Flow{}
	}
	if len(flow.Nodes) == 0 {
		flow.Nodes = append(flow.Nodes, schema.Node{
			ID:    uuid.NewString(),
			Type:  schema.NodeStart,
			Label: reg.DefaultLabel(schema.NodeStart),
			X:     schema.DefaultNodeX,
			Y:     schema.DefaultNodeY,
		})
	}
	return &Document{
		flow:     flow,
		history:  NewHistory(flow),
		registry: reg,
	}
}

// Flow returns the live flow. The execution engine and renderer read it;
// only the Document mutates it.
func (d *Document) Flow() *schema.Flow { return d.flow }

// History exposes the undo stack, mainly for tests and editor status display.
func (d *Document) History() *History { return d.history }

// AddNode creates a node of the given type at (x, y) with a fresh id and the
// catalog's default label and config, records a snapshot, and returns the node.
func (d *Document) AddNode(t schema.NodeType, x, y float64) *schema.Node {
	n := schema.Node{
		ID:     uuid.NewString(),
		Type:   t,
		Label:  d.registry.DefaultLabel(t),
		Config: d.registry.DefaultConfig(t),
		X:      x,
		Y:      y,
	}
	d.flow.Nodes = append(d.flow.Nodes, n)
	d.history.Record(d.flow)
	return &d.flow.Nodes[len(d.flow.Nodes)-1]
}

// DeleteNode removes a node and every edge touching it. Deleting the start
// node is rejected. Returns whether the flow changed.
func (d *Document) DeleteNode(id string) bool {
	n := d.flow.NodeByID(id)
	if n == nil || n.Type == schema.NodeStart {
		return false
	}

	nodes := d.flow.Nodes[:0]
	for _, node := range d.flow.Nodes {
		if node.ID != id {
			nodes = append(nodes, node)
		}
	}
	d.flow.Nodes = nodes

	edges := d.flow.Edges[:0]
	for _, e := range d.flow.Edges {
		if e.From != id && e.To != id {
			edges = append(edges, e)
		}
	}
	d.flow.Edges = edges

	d.history.Record(d.flow)
	return true
}

// AddEdge connects two existing nodes. Duplicate (from, to) pairs,
// self-connections and references to missing nodes are no-ops. Returns the
// new edge or nil when nothing changed.
func (d *Document) AddEdge(from, to string) *schema.Edge {
	if from == to {
		return nil
	}
	if d.flow.NodeByID(from) == nil || d.flow.NodeByID(to) == nil {
		return nil
	}
	if d.flow.HasEdge(from, to) {
		return nil
	}

	d.flow.Edges = append(d.flow.Edges, schema.Edge{
		ID:   uuid.NewString(),
		From: from,
		To:   to,
	})
	d.history.Record(d.flow)
	return &d.flow.Edges[len(d.flow.Edges)-1]
}

// DeleteEdge removes an edge by id. Returns whether the flow changed.
func (d *Document) DeleteEdge(id string) bool {
	for i, e := range d.flow.Edges {
		if e.ID == id {
			d.flow.Edges = append(d.flow.Edges[:i], d.flow.Edges[i+1:]...)
			d.history.Record(d.flow)
			return true
		}
	}
	return false
}

// MoveNode updates a node's position without recording history. Dragging
// calls this every frame; the editor records one snapshot when the drag ends
// via CommitMove.
func (d *Document) MoveNode(id string, x, y float64) bool {
	n := d.flow.NodeByID(id)
	if n == nil {
		return false
	}
	n.X = x
	n.Y = y
	return true
}

// CommitMove records the single history snapshot for a completed drag.
func (d *Document) CommitMove() {
	d.history.Record(d.flow)
}

// SetNodeConfig replaces a node's config and records a snapshot.
func (d *Document) SetNodeConfig(id string, config map[string]any) bool {
	n := d.flow.NodeByID(id)
	if n == nil {
		return false
	}
	n.Config = config
	d.history.Record(d.flow)
	return true
}

// SetNodeLabel renames a node and records a snapshot.
func (d *Document) SetNodeLabel(id, label string) bool {
	n := d.flow.NodeByID(id)
	if n == nil {
		return false
	}
	n.Label = label
	d.history.Record(d.flow)
	return true
}

// Undo restores the previous snapshot as the live flow. No-op at the oldest
// entry. Returns whether anything changed.
func (d *Document) Undo() bool {
	flow, ok := d.history.Undo()
	if !ok {
		return false
	}
	d.flow = flow
	return true
}

// Redo restores the next snapshot as the live flow. No-op at the newest entry.
func (d *Document) Redo() bool {
	flow, ok := d.history.Redo()
	if !ok {
		return false
	}
	d.flow = flow
	return true
}
