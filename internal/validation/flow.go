// Package validation checks flow documents for structural problems before a
// preview run or a save. Errors block execution (a run cannot begin without a
// start node); warnings surface in the editor but never block authoring.
package validation

import (
	"fmt"

	"github.com/botflowhq/botflow/internal/registry"
	"github.com/botflowhq/botflow/pkg/schema"
)

// Validator runs the structural and config-schema validation pipeline.
type Validator struct {
	registry *registry.Registry
}

// NewValidator creates a Validator backed by the block catalog.
func NewValidator(reg *registry.Registry) *Validator {
	return &Validator{registry: reg}
}

// ValidateFlow runs all checks and aggregates the issues.
func (v *Validator) ValidateFlow(flow *schema.Flow) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if flow == nil || len(flow.Nodes) == 0 {
		result.AddError("nodes", schema.ErrCodeValidation, "flow has no nodes")
		return result
	}

	v.checkNodes(flow, result)
	v.checkEdges(flow, result)
	v.checkReachability(flow, result)

	return result
}

// checkNodes verifies node-level invariants: unique ids, exactly one start
// node, known block types, and per-type config schemas.
func (v *Validator) checkNodes(flow *schema.Flow, result *schema.ValidationResult) {
	seen := make(map[string]bool, len(flow.Nodes))
	starts := 0

	for _, n := range flow.Nodes {
		path := fmt.Sprintf("nodes[%s]", n.ID)

		if n.ID == "" {
			result.AddError("nodes", schema.ErrCodeValidation, "node with empty id")
			continue
		}
		if seen[n.ID] {
			result.AddError(path, schema.ErrCodeConflict, fmt.Sprintf("duplicate node id %q", n.ID))
		}
		seen[n.ID] = true

		if n.Type == schema.NodeStart {
			starts++
		}

		if !v.registry.Has(n.Type) {
			result.AddWarning(path, schema.ErrCodeValidation,
				fmt.Sprintf("unknown block type %q", n.Type))
			continue
		}
		result.Merge(v.registry.ValidateConfig(n.Type, n.Config))
	}

	switch {
	case starts == 0:
		result.AddError("nodes", schema.ErrCodeValidation, "flow has no start node")
	case starts > 1:
		result.AddError("nodes", schema.ErrCodeValidation,
			fmt.Sprintf("flow has %d start nodes, expected exactly one", starts))
	}
}

// checkEdges verifies edge-level invariants: endpoints exist, the start node
// has no incoming edges, terminal nodes have no outgoing edges, and each node
// keeps at most one outgoing edge for the execution model.
func (v *Validator) checkEdges(flow *schema.Flow, result *schema.ValidationResult) {
	outgoing := make(map[string]int, len(flow.Nodes))
	pairs := make(map[[2]string]bool, len(flow.Edges))

	for _, e := range flow.Edges {
		path := fmt.Sprintf("edges[%s]", e.ID)

		from := flow.NodeByID(e.From)
		to := flow.NodeByID(e.To)
		if from == nil {
			result.AddError(path, schema.ErrCodeNotFound,
				fmt.Sprintf("edge source %q does not exist", e.From))
		}
		if to == nil {
			result.AddError(path, schema.ErrCodeNotFound,
				fmt.Sprintf("edge target %q does not exist", e.To))
		}
		if from == nil || to == nil {
			continue
		}

		if e.From == e.To {
			result.AddError(path, schema.ErrCodeValidation, "edge connects a node to itself")
		}
		if to.Type == schema.NodeStart {
			result.AddError(path, schema.ErrCodeValidation, "start node cannot have incoming edges")
		}
		if from.Type.IsTerminal() {
			result.AddError(path, schema.ErrCodeValidation,
				fmt.Sprintf("%s node cannot have outgoing edges", from.Type))
		}

		pair := [2]string{e.From, e.To}
		if pairs[pair] {
			result.AddError(path, schema.ErrCodeConflict,
				fmt.Sprintf("duplicate edge %s -> %s", e.From, e.To))
		}
		pairs[pair] = true

		outgoing[e.From]++
	}

	// The execution model follows one outgoing edge; extra fan-out is legal
	// in the document but only the first edge will ever run.
	for nodeID, count := range outgoing {
		if count > 1 {
			result.AddWarning(fmt.Sprintf("nodes[%s]", nodeID), schema.ErrCodeValidation,
				fmt.Sprintf("node has %d outgoing edges; execution follows only the first", count))
		}
	}
}

// checkReachability walks the graph from the start node (BFS) and warns about
// nodes a conversation can never reach.
func (v *Validator) checkReachability(flow *schema.Flow, result *schema.ValidationResult) {
	start := flow.StartNode()
	if start == nil {
		return // already an error
	}

	adjacent := make(map[string][]string, len(flow.Edges))
	for _, e := range flow.Edges {
		adjacent[e.From] = append(adjacent[e.From], e.To)
	}
	// Jump nodes reach their configured target without an edge.
	for _, n := range flow.Nodes {
		if n.Type != schema.NodeJump {
			continue
		}
		if target, ok := n.Config["target"].(string); ok && target != "" {
			adjacent[n.ID] = append(adjacent[n.ID], target)
		}
	}

	reachable := map[string]bool{start.ID: true}
	queue := []string{start.ID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range adjacent[id] {
			if !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}

	for _, n := range flow.Nodes {
		if !reachable[n.ID] {
			result.AddWarning(fmt.Sprintf("nodes[%s]", n.ID), schema.ErrCodeValidation,
				fmt.Sprintf("node %q is unreachable from the start node", n.ID))
		}
	}
}
