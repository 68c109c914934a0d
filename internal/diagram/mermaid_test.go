package diagram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/botflowhq/botflow/internal/registry"
	"github.com/botflowhq/botflow/pkg/schema"
)

func TestRenderMermaid(t *testing.T) {
	flow := &schema.Flow{
		Nodes: []schema.Node{
			{ID: "n-1", Type: schema.NodeStart},
			{ID: "n-2", Type: schema.NodeCondition, Label: "Age check"},
			{ID: "n-3", Type: schema.NodeInputText},
			{ID: "n-4", Type: schema.NodeWebhook},
			{ID: "n-5", Type: schema.NodeEnd},
		},
		Edges: []schema.Edge{
			{ID: "e1", From: "n-1", To: "n-2"},
			{ID: "e2", From: "n-2", To: "n-3"},
		},
	}

	out := RenderMermaid(flow, registry.New(), "Onboarding")

	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, "%% Onboarding")

	// Ids are sanitized; shapes follow category.
	assert.Contains(t, out, `n_1([`)
	assert.Contains(t, out, `n_2{"Age check"}`)
	assert.Contains(t, out, `n_3[/`)
	assert.Contains(t, out, `n_4[[`)
	assert.Contains(t, out, `n_5([`)

	assert.Contains(t, out, "n_1 --> n_2")
	assert.Contains(t, out, "class n_2 logic")
	assert.Contains(t, out, "class n_4 integrations")
}

func TestRenderMermaidEscapesQuotes(t *testing.T) {
	flow := &schema.Flow{
		Nodes: []schema.Node{
			{ID: "n1", Type: schema.NodeText, Label: `say "hi"`},
		},
	}
	out := RenderMermaid(flow, registry.New(), "")
	assert.NotContains(t, out, `"say "hi""`)
	assert.Contains(t, out, "#quot;hi#quot;")
}
