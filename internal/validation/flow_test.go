package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botflowhq/botflow/internal/registry"
	"github.com/botflowhq/botflow/pkg/schema"
)

func newValidator() *Validator {
	return NewValidator(registry.New())
}

func linearFlow() *schema.Flow {
	return &schema.Flow{
		Nodes: []schema.Node{
			{ID: "s", Type: schema.NodeStart},
			{ID: "t", Type: schema.NodeText, Config: map[string]any{"text": "hi"}},
			{ID: "e", Type: schema.NodeEnd},
		},
		Edges: []schema.Edge{
			{ID: "e1", From: "s", To: "t"},
			{ID: "e2", From: "t", To: "e"},
		},
	}
}

func TestValidateFlow_ValidLinearFlow(t *testing.T) {
	result := newValidator().ValidateFlow(linearFlow())
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings())
}

func TestValidateFlow_EmptyFlow(t *testing.T) {
	result := newValidator().ValidateFlow(&schema.Flow{})
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors()[0].Message, "no nodes")
}

func TestValidateFlow_MissingStart(t *testing.T) {
	flow := &schema.Flow{Nodes: []schema.Node{{ID: "t", Type: schema.NodeText}}}
	result := newValidator().ValidateFlow(flow)
	require.False(t, result.Valid())
}

func TestValidateFlow_MultipleStarts(t *testing.T) {
	flow := &schema.Flow{Nodes: []schema.Node{
		{ID: "a", Type: schema.NodeStart},
		{ID: "b", Type: schema.NodeStart},
	}}
	result := newValidator().ValidateFlow(flow)
	require.False(t, result.Valid())
}

func TestValidateFlow_DuplicateNodeIDs(t *testing.T) {
	flow := &schema.Flow{Nodes: []schema.Node{
		{ID: "s", Type: schema.NodeStart},
		{ID: "s", Type: schema.NodeText},
	}}
	result := newValidator().ValidateFlow(flow)
	assert.False(t, result.Valid())
}

func TestValidateFlow_EdgeToMissingNode(t *testing.T) {
	flow := linearFlow()
	flow.Edges = append(flow.Edges, schema.Edge{ID: "bad", From: "t", To: "ghost"})
	result := newValidator().ValidateFlow(flow)
	assert.False(t, result.Valid())
}

func TestValidateFlow_StartWithIncomingEdge(t *testing.T) {
	flow := linearFlow()
	flow.Edges = append(flow.Edges, schema.Edge{ID: "back", From: "t", To: "s"})
	result := newValidator().ValidateFlow(flow)
	assert.False(t, result.Valid())
}

func TestValidateFlow_TerminalWithOutgoingEdge(t *testing.T) {
	flow := linearFlow()
	flow.Edges = append(flow.Edges, schema.Edge{ID: "after-end", From: "e", To: "t"})
	result := newValidator().ValidateFlow(flow)
	assert.False(t, result.Valid())
}

func TestValidateFlow_UnreachableNodeWarns(t *testing.T) {
	flow := linearFlow()
	flow.Nodes = append(flow.Nodes, schema.Node{ID: "island", Type: schema.NodeText})
	result := newValidator().ValidateFlow(flow)
	assert.True(t, result.Valid())
	require.NotEmpty(t, result.Warnings())
	assert.Contains(t, result.Warnings()[0].Message, "unreachable")
}

func TestValidateFlow_JumpTargetCountsAsReachable(t *testing.T) {
	flow := &schema.Flow{
		Nodes: []schema.Node{
			{ID: "s", Type: schema.NodeStart},
			{ID: "j", Type: schema.NodeJump, Config: map[string]any{"target": "far"}},
			{ID: "far", Type: schema.NodeText, Config: map[string]any{"text": "x"}},
		},
		Edges: []schema.Edge{{ID: "e1", From: "s", To: "j"}},
	}
	result := newValidator().ValidateFlow(flow)
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings())
}

func TestValidateFlow_FanOutWarns(t *testing.T) {
	flow := linearFlow()
	flow.Nodes = append(flow.Nodes, schema.Node{ID: "alt", Type: schema.NodeText})
	flow.Edges = append(flow.Edges, schema.Edge{ID: "e3", From: "t", To: "alt"})
	result := newValidator().ValidateFlow(flow)
	assert.True(t, result.Valid())

	found := false
	for _, w := range result.Warnings() {
		if w.Path == "nodes[t]" {
			found = true
		}
	}
	assert.True(t, found, "expected a fan-out warning for node t")
}
