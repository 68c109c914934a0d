package render

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botflowhq/botflow/internal/editor"
	"github.com/botflowhq/botflow/internal/registry"
	"github.com/botflowhq/botflow/pkg/schema"
)

func testFlow() *schema.Flow {
	return &schema.Flow{
		Nodes: []schema.Node{
			{ID: "n1", Type: schema.NodeStart, X: 100, Y: 50},
			{ID: "n2", Type: schema.NodeCondition, X: 100, Y: 250, Config: map[string]any{
				"variable": "age", "operator": "greater", "value": "18",
			}},
			{ID: "n3", Type: schema.NodeEnd, X: 100, Y: 450},
		},
		Edges: []schema.Edge{
			{ID: "e1", From: "n1", To: "n2"},
			{ID: "e2", From: "n2", To: "n3"},
		},
	}
}

func TestProjectNodes(t *testing.T) {
	r := New(registry.New(), editor.FixedLayout{Width: 200, Height: 100})
	view := r.Project(testFlow(), editor.Viewport{Zoom: 1}, "n2")

	require.Len(t, view.Nodes, 3)

	start := view.Nodes[0]
	assert.False(t, start.HasInput, "start has no input connector")
	assert.True(t, start.HasOutput)
	assert.NotEmpty(t, start.Icon)
	assert.NotEmpty(t, start.Label, "default label comes from the registry")

	cond := view.Nodes[1]
	assert.True(t, cond.Selected)
	assert.Equal(t, "if {age} greater 18", cond.Body)
	assert.Equal(t, 200.0, cond.Width)
	assert.Equal(t, 100.0, cond.Height)

	end := view.Nodes[2]
	assert.True(t, end.HasInput)
	assert.False(t, end.HasOutput, "end has no output connector")
}

func TestProjectEdgesUseMeasuredGeometry(t *testing.T) {
	r := New(registry.New(), editor.FixedLayout{Width: 200, Height: 100})
	view := r.Project(testFlow(), editor.Viewport{Zoom: 1}, "")

	require.Len(t, view.Edges, 2)
	e1 := view.Edges[0]
	assert.Equal(t, editor.Point{X: 200, Y: 150}, e1.Curve.Start)
	assert.Equal(t, editor.Point{X: 200, Y: 250}, e1.Curve.End)
}

func TestProjectDropsDanglingEdges(t *testing.T) {
	flow := testFlow()
	flow.Edges = append(flow.Edges, schema.Edge{ID: "e3", From: "n3", To: "ghost"})

	r := New(registry.New(), nil)
	view := r.Project(flow, editor.Viewport{Zoom: 1}, "")
	assert.Len(t, view.Edges, 2)
}

func TestProjectNilFlow(t *testing.T) {
	r := New(registry.New(), nil)
	view := r.Project(nil, editor.Viewport{Zoom: 1}, "")
	assert.Empty(t, view.Nodes)
	assert.Empty(t, view.Edges)
}

func TestBodySummaries(t *testing.T) {
	cases := []struct {
		node schema.Node
		want string
	}{
		{schema.Node{Type: schema.NodeText, Config: map[string]any{"text": "Hello"}}, "Hello"},
		{schema.Node{Type: schema.NodeWait, Config: map[string]any{"seconds": 5.0}}, "wait 5s"},
		{schema.Node{Type: schema.NodeWait}, "wait 3s"},
		{schema.Node{Type: schema.NodeSetVariable, Config: map[string]any{"variable": "city", "value": "Lisbon"}}, "{city} = Lisbon"},
		{schema.Node{Type: schema.NodeJump, Config: map[string]any{"target": "n9"}}, "go to n9"},
		{schema.Node{Type: schema.NodeWebhook, Config: map[string]any{"method": "POST", "url": "https://x.test"}}, "POST https://x.test"},
		{schema.Node{Type: schema.NodeRating, Config: map[string]any{"max": 7.0}}, "rate 1..7"},
		{schema.Node{Type: schema.NodeButtons, Config: map[string]any{"message": "Pick", "options": []any{"a", "b"}}}, "Pick (2 options)"},
		{schema.Node{Type: schema.NodeCondition, Config: map[string]any{"expression": `age > 18`}}, "if age > 18"},
		{schema.Node{Type: schema.NodeText}, "Not configured"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, BodySummary(&tc.node))
	}
}

func TestBodySummaryTruncation(t *testing.T) {
	long := strings.Repeat("x", 200)
	body := BodySummary(&schema.Node{Type: schema.NodeText, Config: map[string]any{"text": long}})
	assert.Len(t, body, bodyLimit)
	assert.True(t, strings.HasSuffix(body, "..."))
}

func TestBodySummaryTruncationKeepsValidUTF8(t *testing.T) {
	// Position a multi-byte rune across the cut point.
	long := strings.Repeat("x", bodyLimit-4) + "ção final"
	body := BodySummary(&schema.Node{Type: schema.NodeText, Config: map[string]any{"text": long}})
	assert.True(t, utf8.ValidString(body))
	assert.True(t, strings.HasSuffix(body, "..."))
	assert.LessOrEqual(t, len(body), bodyLimit)
}
