package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireConfig_ObjectForm(t *testing.T) {
	var doc FlowDocument
	raw := `{"success":true,"nodes":[{"id":"n1","type":"text","config":{"text":"hi"},"pos_x":10,"pos_y":20}],"edges":[]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	flow := doc.ToFlow()
	require.Len(t, flow.Nodes, 1)
	assert.Equal(t, "hi", flow.Nodes[0].Config["text"])
	assert.Equal(t, 10.0, flow.Nodes[0].X)
	assert.Equal(t, 20.0, flow.Nodes[0].Y)
}

func TestWireConfig_StringEncodedForm(t *testing.T) {
	var doc FlowDocument
	raw := `{"success":true,"nodes":[{"id":"n1","type":"condition","config":"{\"variable\":\"age\",\"operator\":\"greater\",\"value\":\"18\"}"}],"edges":[]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	flow := doc.ToFlow()
	require.Len(t, flow.Nodes, 1)
	assert.Equal(t, "age", flow.Nodes[0].Config["variable"])
	assert.Equal(t, "greater", flow.Nodes[0].Config["operator"])
}

func TestWireConfig_GarbageFallsBackToEmpty(t *testing.T) {
	var doc FlowDocument
	raw := `{"success":true,"nodes":[{"id":"n1","type":"text","config":"not json at all"}],"edges":[]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Nil(t, doc.Nodes[0].Config)
}

func TestToFlow_MissingPositionsDefault(t *testing.T) {
	doc := FlowDocument{Nodes: []WireNode{{ID: "a", Type: NodeStart}}}
	flow := doc.ToFlow()
	assert.Equal(t, DefaultNodeX, flow.Nodes[0].X)
	assert.Equal(t, DefaultNodeY, flow.Nodes[0].Y)
}

func TestFlowDocument_RoundTrip(t *testing.T) {
	flow := &Flow{
		Nodes: []Node{
			{ID: "s", Type: NodeStart, X: 1, Y: 2},
			{ID: "t", Type: NodeText, Label: "Greeting", Config: map[string]any{"text": "hello"}, X: 3, Y: 4},
		},
		Edges: []Edge{{ID: "e1", From: "s", To: "t"}},
	}

	data, err := json.Marshal(NewFlowDocument(flow))
	require.NoError(t, err)

	var doc FlowDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	got := doc.ToFlow()

	assert.Equal(t, flow.Nodes, got.Nodes)
	assert.Equal(t, flow.Edges, got.Edges)
}

func TestFlow_Clone_Isolated(t *testing.T) {
	flow := &Flow{
		Nodes: []Node{{ID: "a", Type: NodeText, Config: map[string]any{"text": "x"}}},
		Edges: []Edge{{ID: "e", From: "a", To: "b"}},
	}

	cp := flow.Clone()
	cp.Nodes[0].Config["text"] = "mutated"
	cp.Nodes[0].X = 99
	cp.Edges[0].To = "z"

	assert.Equal(t, "x", flow.Nodes[0].Config["text"])
	assert.Equal(t, 0.0, flow.Nodes[0].X)
	assert.Equal(t, "b", flow.Edges[0].To)
}

func TestFlow_OutgoingEdge(t *testing.T) {
	flow := &Flow{Edges: []Edge{{ID: "e1", From: "a", To: "b"}}}
	require.NotNil(t, flow.OutgoingEdge("a"))
	assert.Equal(t, "b", flow.OutgoingEdge("a").To)
	assert.Nil(t, flow.OutgoingEdge("b"))
}
