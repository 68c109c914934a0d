package schema

import "encoding/json"

// Default canvas position for nodes that arrive without coordinates, and for
// the start node synthesized into an empty flow.
const (
	DefaultNodeX = 100.0
	DefaultNodeY = 80.0
)

// FlowDocument is the persistence wire format for a flow.
type FlowDocument struct {
	Success bool       `json:"success"`
	Nodes   []WireNode `json:"nodes"`
	Edges   []WireEdge `json:"edges"`
}

// WireNode is a node as it travels over the persistence API.
// Positions may be absent and Config may arrive as a JSON-encoded string.
type WireNode struct {
	ID     string     `json:"id"`
	Type   NodeType   `json:"type"`
	Label  string     `json:"label,omitempty"`
	Config WireConfig `json:"config,omitempty"`
	PosX   *float64   `json:"pos_x,omitempty"`
	PosY   *float64   `json:"pos_y,omitempty"`
}

// WireEdge is an edge as it travels over the persistence API.
type WireEdge struct {
	ID       string `json:"id"`
	FromNode string `json:"from_node_id"`
	ToNode   string `json:"to_node_id"`
}

// WireConfig tolerates both forms the API is known to produce: a JSON object,
// or that same object JSON-encoded into a string. Anything unparseable decodes
// to an empty config rather than failing the whole document.
type WireConfig map[string]any

func (c *WireConfig) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err == nil {
		*c = m
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*c = nil
			return nil
		}
		if err := json.Unmarshal([]byte(s), &m); err == nil {
			*c = m
			return nil
		}
	}

	*c = nil
	return nil
}

// ToFlow converts a wire document into the in-memory model, applying defaults
// for missing positions.
func (d *FlowDocument) ToFlow() *Flow {
	flow := &Flow{
		Nodes: make([]Node, 0, len(d.Nodes)),
		Edges: make([]Edge, 0, len(d.Edges)),
	}
	for _, wn := range d.Nodes {
		n := Node{
			ID:     wn.ID,
			Type:   wn.Type,
			Label:  wn.Label,
			Config: map[string]any(wn.Config),
			X:      DefaultNodeX,
			Y:      DefaultNodeY,
		}
		if wn.PosX != nil {
			n.X = *wn.PosX
		}
		if wn.PosY != nil {
			n.Y = *wn.PosY
		}
		flow.Nodes = append(flow.Nodes, n)
	}
	for _, we := range d.Edges {
		flow.Edges = append(flow.Edges, Edge{ID: we.ID, From: we.FromNode, To: we.ToNode})
	}
	return flow
}

// NewFlowDocument converts an in-memory flow into its wire representation.
func NewFlowDocument(flow *Flow) *FlowDocument {
	doc := &FlowDocument{
		Success: true,
		Nodes:   make([]WireNode, 0, len(flow.Nodes)),
		Edges:   make([]WireEdge, 0, len(flow.Edges)),
	}
	for _, n := range flow.Nodes {
		x, y := n.X, n.Y
		doc.Nodes = append(doc.Nodes, WireNode{
			ID:     n.ID,
			Type:   n.Type,
			Label:  n.Label,
			Config: WireConfig(n.Config),
			PosX:   &x,
			PosY:   &y,
		})
	}
	for _, e := range flow.Edges {
		doc.Edges = append(doc.Edges, WireEdge{ID: e.ID, FromNode: e.From, ToNode: e.To})
	}
	return doc
}
