package schema

// NodeType enumerates the closed set of block types a flow node can have.
type NodeType string

const (
	NodeStart           NodeType = "start"
	NodeText            NodeType = "text"
	NodeImage           NodeType = "image"
	NodeVideo           NodeType = "video"
	NodeAudio           NodeType = "audio"
	NodeFile            NodeType = "file"
	NodeInputText       NodeType = "input_text"
	NodeInputNumber     NodeType = "input_number"
	NodeInputEmail      NodeType = "input_email"
	NodeInputPhone      NodeType = "input_phone"
	NodeInputDate       NodeType = "input_date"
	NodeButtons         NodeType = "buttons"
	NodeRating          NodeType = "rating"
	NodeFileUpload      NodeType = "file_upload"
	NodeSetVariable     NodeType = "set_variable"
	NodeCondition       NodeType = "condition"
	NodeRedirect        NodeType = "redirect"
	NodeCode            NodeType = "code"
	NodeWait            NodeType = "wait"
	NodeJump            NodeType = "jump"
	NodeABTest          NodeType = "ab_test"
	NodeTypebot         NodeType = "typebot"
	NodeWebhook         NodeType = "webhook"
	NodeGoogleSheets    NodeType = "google_sheets"
	NodeEmailSend       NodeType = "email_send"
	NodeOpenAI          NodeType = "openai"
	NodeWhatsAppButtons NodeType = "whatsapp_buttons"
	NodeWhatsAppList    NodeType = "whatsapp_list"
	NodeTransfer        NodeType = "transfer"
	NodeEndChat         NodeType = "end_chat"
	NodeEnd             NodeType = "end"
)

// AllNodeTypes lists every valid node type, in catalog order.
var AllNodeTypes = []NodeType{
	NodeStart, NodeText, NodeImage, NodeVideo, NodeAudio, NodeFile,
	NodeInputText, NodeInputNumber, NodeInputEmail, NodeInputPhone, NodeInputDate,
	NodeButtons, NodeRating, NodeFileUpload,
	NodeSetVariable, NodeCondition, NodeRedirect, NodeCode, NodeWait, NodeJump,
	NodeABTest, NodeTypebot, NodeWebhook, NodeGoogleSheets, NodeEmailSend, NodeOpenAI,
	NodeWhatsAppButtons, NodeWhatsAppList,
	NodeTransfer, NodeEndChat, NodeEnd,
}

// IsInput reports whether the type suspends the run waiting for a free-text value.
func (t NodeType) IsInput() bool {
	switch t {
	case NodeInputText, NodeInputNumber, NodeInputEmail, NodeInputPhone, NodeInputDate:
		return true
	}
	return false
}

// IsMessage reports whether the type emits a chat message and advances.
func (t NodeType) IsMessage() bool {
	switch t {
	case NodeText, NodeImage, NodeVideo, NodeAudio, NodeFile:
		return true
	}
	return false
}

// IsTerminal reports whether the type ends the conversation. Terminal nodes
// never have outgoing edges.
func (t NodeType) IsTerminal() bool {
	return t == NodeEnd || t == NodeEndChat
}

// Node is a typed, positioned, configured block in a flow graph.
type Node struct {
	ID     string         `json:"id"`
	Type   NodeType       `json:"type"`
	Label  string         `json:"label,omitempty"`
	Config map[string]any `json:"config,omitempty"`
	X      float64        `json:"x"`
	Y      float64        `json:"y"`
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Flow is the authoritative in-memory flow document: nodes plus directed edges.
type Flow struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Clone returns a deep copy of the flow. Node configs are copied one level
// deep, which is sufficient for the flat key/value configs the registry defines.
func (f *Flow) Clone() *Flow {
	cp := &Flow{
		Nodes: make([]Node, len(f.Nodes)),
		Edges: make([]Edge, len(f.Edges)),
	}
	copy(cp.Edges, f.Edges)
	for i, n := range f.Nodes {
		cp.Nodes[i] = n
		if n.Config != nil {
			cfg := make(map[string]any, len(n.Config))
			for k, v := range n.Config {
				cfg[k] = v
			}
			cp.Nodes[i].Config = cfg
		}
	}
	return cp
}

// NodeByID returns the node with the given id, or nil.
func (f *Flow) NodeByID(id string) *Node {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i]
		}
	}
	return nil
}

// StartNode returns the flow's start node, or nil if there is none.
func (f *Flow) StartNode() *Node {
	for i := range f.Nodes {
		if f.Nodes[i].Type == NodeStart {
			return &f.Nodes[i]
		}
	}
	return nil
}

// OutgoingEdge returns the (at most one) edge leaving the given node, or nil.
// The execution model follows a single outgoing edge per node.
func (f *Flow) OutgoingEdge(nodeID string) *Edge {
	for i := range f.Edges {
		if f.Edges[i].From == nodeID {
			return &f.Edges[i]
		}
	}
	return nil
}

// HasEdge reports whether an edge with the same ordered (from, to) pair exists.
func (f *Flow) HasEdge(from, to string) bool {
	for i := range f.Edges {
		if f.Edges[i].From == from && f.Edges[i].To == to {
			return true
		}
	}
	return false
}
