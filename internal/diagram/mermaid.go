// Package diagram renders flows as Mermaid flowcharts, for documentation and
// quick visual inspection outside the canvas editor.
package diagram

import (
	"fmt"
	"strings"

	"github.com/botflowhq/botflow/internal/registry"
	"github.com/botflowhq/botflow/pkg/schema"
)

// RenderMermaid renders a flow as a Mermaid flowchart. Node shapes follow the
// block category: stadium for start/endings, diamond for logic, parallelogram
// for inputs, subroutine for integrations, rectangle for messages.
func RenderMermaid(flow *schema.Flow, reg *registry.Registry, title string) string {
	var b strings.Builder

	b.WriteString("graph TD\n")
	if title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", title))
	}

	for _, n := range flow.Nodes {
		b.WriteString("    " + nodeDef(&n, reg) + "\n")
	}

	for _, e := range flow.Edges {
		b.WriteString(fmt.Sprintf("    %s --> %s\n", safeID(e.From), safeID(e.To)))
	}

	b.WriteString("\n")
	b.WriteString("    classDef messages fill:#1a5276,stroke:#0e3a52,color:#fff\n")
	b.WriteString("    classDef inputs fill:#b7791a,stroke:#8a5c14,color:#fff\n")
	b.WriteString("    classDef logic fill:#6b3fa0,stroke:#4a2c70,color:#fff\n")
	b.WriteString("    classDef integrations fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef endings fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")

	classes := map[string][]string{}
	for _, n := range flow.Nodes {
		if block, err := reg.Get(n.Type); err == nil {
			classes[block.Category] = append(classes[block.Category], safeID(n.ID))
		}
	}
	for _, category := range []string{
		registry.CategoryMessages, registry.CategoryInputs, registry.CategoryLogic,
		registry.CategoryIntegrations, registry.CategoryEndings,
	} {
		if ids := classes[category]; len(ids) > 0 {
			b.WriteString(fmt.Sprintf("    class %s %s\n", strings.Join(ids, ","), category))
		}
	}

	return b.String()
}

func nodeDef(n *schema.Node, reg *registry.Registry) string {
	label := n.Label
	if label == "" {
		label = reg.DefaultLabel(n.Type)
	}
	if label == "" {
		label = string(n.Type)
	}
	label = escapeLabel(label)
	id := safeID(n.ID)

	switch {
	case n.Type == schema.NodeStart || n.Type.IsTerminal():
		return fmt.Sprintf("%s([\"%s\"])", id, label)
	case n.Type == schema.NodeCondition:
		return fmt.Sprintf("%s{\"%s\"}", id, label)
	case n.Type.IsInput() || n.Type == schema.NodeButtons || n.Type == schema.NodeRating:
		return fmt.Sprintf("%s[/\"%s\"/]", id, label)
	case n.Type == schema.NodeWebhook || n.Type == schema.NodeOpenAI || n.Type == schema.NodeTypebot ||
		n.Type == schema.NodeGoogleSheets || n.Type == schema.NodeEmailSend:
		return fmt.Sprintf("%s[[\"%s\"]]", id, label)
	default:
		return fmt.Sprintf("%s[\"%s\"]", id, label)
	}
}

// safeID sanitizes an id for Mermaid syntax.
func safeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
