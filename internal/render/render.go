// Package render projects a flow, viewport and selection into a drawable
// view tree. It is a pure function of its inputs: no state, no side effects,
// so it can be exercised headlessly.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/botflowhq/botflow/internal/editor"
	"github.com/botflowhq/botflow/internal/registry"
	"github.com/botflowhq/botflow/pkg/schema"
)

// NodeView is everything needed to draw one node.
type NodeView struct {
	ID       string          `json:"id"`
	Type     schema.NodeType `json:"type"`
	Label    string          `json:"label"`
	Icon     string          `json:"icon"`
	Category string          `json:"category"`
	Body     string          `json:"body"`

	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	Selected  bool `json:"selected"`
	HasInput  bool `json:"has_input"`
	HasOutput bool `json:"has_output"`
}

// EdgeView is one edge plus its computed curve geometry.
type EdgeView struct {
	ID    string           `json:"id"`
	From  string           `json:"from_node_id"`
	To    string           `json:"to_node_id"`
	Curve editor.EdgeCurve `json:"curve"`
}

// View is the full drawable tree for one frame.
type View struct {
	Viewport editor.Viewport `json:"viewport"`
	Nodes    []NodeView      `json:"nodes"`
	Edges    []EdgeView      `json:"edges"`
}

// Renderer projects flows against a block registry and a layout measurer.
type Renderer struct {
	registry *registry.Registry
	layout   editor.NodeLayout
}

// New creates a Renderer.
func New(reg *registry.Registry, layout editor.NodeLayout) *Renderer {
	if layout == nil {
		layout = editor.FixedLayout{Width: 180, Height: 80}
	}
	return &Renderer{registry: reg, layout: layout}
}

// Project computes the view tree for a flow. Edges whose endpoints are
// missing are dropped rather than drawn dangling.
func (r *Renderer) Project(flow *schema.Flow, viewport editor.Viewport, selectedID string) *View {
	view := &View{Viewport: viewport}
	if flow == nil {
		return view
	}

	for i := range flow.Nodes {
		node := &flow.Nodes[i]
		size := r.layout.Measure(node.ID)
		nv := NodeView{
			ID: node.ID, Type: node.Type,
			Label: node.Label,
			Body:  BodySummary(node),
			X:     node.X, Y: node.Y,
			Width: size.Width, Height: size.Height,
			Selected: node.ID == selectedID,
		}
		if block, err := r.registry.Get(node.Type); err == nil {
			nv.Icon = block.Icon
			nv.Category = block.Category
			nv.HasInput = block.HasInput
			nv.HasOutput = block.HasOutput
			if nv.Label == "" {
				nv.Label = block.Label
			}
		} else {
			nv.HasInput = true
			nv.HasOutput = true
		}
		view.Nodes = append(view.Nodes, nv)
	}

	for _, e := range flow.Edges {
		source := flow.NodeByID(e.From)
		target := flow.NodeByID(e.To)
		if source == nil || target == nil {
			continue
		}
		view.Edges = append(view.Edges, EdgeView{
			ID: e.ID, From: e.From, To: e.To,
			Curve: editor.CurveFor(source, target, r.layout),
		})
	}
	return view
}

const bodyLimit = 60

// BodySummary renders the type-specific one-line body for a node card.
func BodySummary(node *schema.Node) string {
	cfg := node.Config
	var body string

	switch node.Type {
	case schema.NodeStart:
		body = "Conversation starts here"
	case schema.NodeText:
		body = cfgString(cfg, "text")
	case schema.NodeImage, schema.NodeVideo, schema.NodeAudio, schema.NodeFile:
		body = firstNonEmpty(cfgString(cfg, "caption"), cfgString(cfg, "url"))
	case schema.NodeCondition:
		if expr := cfgString(cfg, "expression"); expr != "" {
			body = "if " + expr
		} else {
			body = fmt.Sprintf("if {%s} %s %s",
				cfgString(cfg, "variable"), cfgString(cfg, "operator"), cfgString(cfg, "value"))
		}
	case schema.NodeSetVariable:
		body = fmt.Sprintf("{%s} = %s", cfgString(cfg, "variable"), cfgString(cfg, "value"))
	case schema.NodeWait:
		body = "wait " + formatSeconds(cfg) + "s"
	case schema.NodeButtons, schema.NodeWhatsAppButtons, schema.NodeWhatsAppList:
		opts := cfgStrings(cfg, "options")
		body = fmt.Sprintf("%s (%d options)", cfgString(cfg, "message"), len(opts))
	case schema.NodeRating:
		body = fmt.Sprintf("rate 1..%d", int(cfgFloat(cfg, "max", 5)))
	case schema.NodeWebhook:
		body = strings.TrimSpace(firstNonEmpty(cfgString(cfg, "method"), "GET") + " " + cfgString(cfg, "url"))
	case schema.NodeRedirect:
		body = cfgString(cfg, "url")
	case schema.NodeJump:
		body = "go to " + cfgString(cfg, "target")
	case schema.NodeOpenAI:
		body = cfgString(cfg, "prompt")
	case schema.NodeCode:
		body = cfgString(cfg, "script")
	case schema.NodeEmailSend:
		body = "to " + cfgString(cfg, "to")
	case schema.NodeTransfer, schema.NodeEndChat:
		body = cfgString(cfg, "message")
	default:
		body = cfgString(cfg, "message")
	}

	body = strings.TrimSpace(body)
	if body == "" {
		body = "Not configured"
	}
	return truncate(body, bodyLimit)
}

// truncate shortens body to at most limit bytes without splitting a rune.
func truncate(body string, limit int) string {
	if len(body) <= limit {
		return body
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "..."
}

func cfgString(cfg map[string]any, key string) string {
	if cfg == nil {
		return ""
	}
	s, _ := cfg[key].(string)
	return s
}

func cfgStrings(cfg map[string]any, key string) []string {
	if cfg == nil {
		return nil
	}
	raw, _ := cfg[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func cfgFloat(cfg map[string]any, key string, fallback float64) float64 {
	if cfg == nil {
		return fallback
	}
	if f, ok := cfg[key].(float64); ok {
		return f
	}
	return fallback
}

func formatSeconds(cfg map[string]any) string {
	return strconv.FormatFloat(cfgFloat(cfg, "seconds", 3), 'f', -1, 64)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
