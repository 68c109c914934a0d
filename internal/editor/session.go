package editor

import (
	"github.com/botflowhq/botflow/internal/graph"
	"github.com/botflowhq/botflow/pkg/schema"
)

// Zoom bounds and step for the canvas viewport.
const (
	MinZoom     = 0.25
	MaxZoom     = 2.0
	ZoomStep    = 0.1
	DefaultZoom = 1.0
)

// Viewport is the canvas transform: node coordinates are in unscaled canvas
// space, the viewport scales and offsets them for display.
type Viewport struct {
	Zoom float64 `json:"zoom"`
	PanX float64 `json:"pan_x"`
	PanY float64 `json:"pan_y"`
}

// HitKind classifies what is under the pointer when a gesture starts or ends.
type HitKind int

const (
	HitCanvas HitKind = iota
	HitNodeBody
	HitOutputConnector
	HitInputConnector
)

// Hit is a pointer target.
type Hit struct {
	Kind   HitKind
	NodeID string
}

// Command is a keyboard shortcut the editor handles.
type Command int

const (
	CommandSave Command = iota
	CommandUndo
	CommandRedo
	CommandDeleteSelected
	CommandDeselect
)

// interactionKind is the editor's transient gesture state. Exactly one
// gesture can be active at a time.
type interactionKind int

const (
	interactionIdle interactionKind = iota
	interactionDragging
	interactionPanning
	interactionConnecting
)

type interaction struct {
	kind interactionKind

	// Pointer position at gesture start, in screen space.
	startX, startY float64

	// Dragging: node being moved and its position at gesture start.
	nodeID           string
	originX, originY float64

	// Panning: viewport pan at gesture start.
	panX, panY float64

	// Connecting: source node and the guide line's current endpoint.
	sourceID       string
	guideX, guideY float64

	moved bool
}

// EditorSession owns the transient editing state around a Document: viewport,
// gesture state machine, selection, keyboard commands.
type EditorSession struct {
	doc      *graph.Document
	layout   NodeLayout
	viewport Viewport
	gesture  interaction
	selected string

	// OnSave is invoked by the save shortcut. Nil means the shortcut is
	// still handled (to suppress the browser default) but does nothing.
	OnSave func(flow *schema.Flow)
}

// NewSession creates a session over a document with the default viewport.
func NewSession(doc *graph.Document, layout NodeLayout) *EditorSession {
	if layout == nil {
		layout = FixedLayout{Width: 180, Height: 80}
	}
	return &EditorSession{
		doc:      doc,
		layout:   layout,
		viewport: Viewport{Zoom: DefaultZoom},
	}
}

// Document returns the underlying graph document.
func (s *EditorSession) Document() *graph.Document { return s.doc }

// Viewport returns the current canvas transform.
func (s *EditorSession) Viewport() Viewport { return s.viewport }

// SelectedNode returns the id of the selected node, or "".
func (s *EditorSession) SelectedNode() string { return s.selected }

// --- viewport ---

// ZoomIn increases zoom one step, clamped to the maximum.
func (s *EditorSession) ZoomIn() { s.setZoom(s.viewport.Zoom + ZoomStep) }

// ZoomOut decreases zoom one step, clamped to the minimum.
func (s *EditorSession) ZoomOut() { s.setZoom(s.viewport.Zoom - ZoomStep) }

// Wheel applies one zoom step in the direction of the wheel delta.
func (s *EditorSession) Wheel(delta float64) {
	if delta < 0 {
		s.ZoomIn()
		return
	}
	if delta > 0 {
		s.ZoomOut()
	}
}

// FitToScreen resets the viewport to the default origin and zoom.
func (s *EditorSession) FitToScreen() {
	s.viewport = Viewport{Zoom: DefaultZoom}
}

func (s *EditorSession) setZoom(z float64) {
	if z < MinZoom {
		z = MinZoom
	}
	if z > MaxZoom {
		z = MaxZoom
	}
	s.viewport.Zoom = z
}

// --- pointer gestures ---

// PointerDown starts a gesture depending on what is under the pointer:
// a node body starts a drag (and selects the node), an output connector
// starts a connection, empty canvas starts a pan (and deselects).
func (s *EditorSession) PointerDown(hit Hit, x, y float64) {
	if s.gesture.kind != interactionIdle {
		return
	}
	switch hit.Kind {
	case HitNodeBody:
		node := s.doc.Flow().NodeByID(hit.NodeID)
		if node == nil {
			return
		}
		s.selected = hit.NodeID
		s.gesture = interaction{
			kind: interactionDragging, nodeID: hit.NodeID,
			startX: x, startY: y,
			originX: node.X, originY: node.Y,
		}
	case HitOutputConnector:
		s.gesture = interaction{
			kind: interactionConnecting, sourceID: hit.NodeID,
			startX: x, startY: y, guideX: x, guideY: y,
		}
	case HitCanvas:
		s.selected = ""
		s.gesture = interaction{
			kind: interactionPanning,
			startX: x, startY: y,
			panX: s.viewport.PanX, panY: s.viewport.PanY,
		}
	}
}

// PointerMove advances the active gesture. Drag deltas are scaled by the
// inverse of the current zoom since node coordinates live in unscaled canvas
// space; pan offsets are computed from the gesture start so the transform is
// stable regardless of event rate. Intermediate drag frames do not produce
// history snapshots.
func (s *EditorSession) PointerMove(x, y float64) {
	g := &s.gesture
	switch g.kind {
	case interactionDragging:
		dx := (x - g.startX) / s.viewport.Zoom
		dy := (y - g.startY) / s.viewport.Zoom
		if s.doc.MoveNode(g.nodeID, g.originX+dx, g.originY+dy) {
			g.moved = true
		}
	case interactionPanning:
		s.viewport.PanX = g.panX + (x - g.startX)
		s.viewport.PanY = g.panY + (y - g.startY)
	case interactionConnecting:
		g.guideX, g.guideY = x, y
	}
}

// PointerUp resolves the active gesture. A completed drag commits exactly one
// history snapshot. A connection released over another node's input connector
// creates the edge; anywhere else aborts with no model mutation.
func (s *EditorSession) PointerUp(hit Hit) {
	g := s.gesture
	s.gesture = interaction{}
	switch g.kind {
	case interactionDragging:
		if g.moved {
			s.doc.CommitMove()
		}
	case interactionConnecting:
		if hit.Kind == HitInputConnector && hit.NodeID != g.sourceID {
			s.doc.AddEdge(g.sourceID, hit.NodeID)
		}
	}
}

// Guide returns the temporary connection guide line while a connection
// gesture is active.
func (s *EditorSession) Guide() (EdgeCurve, bool) {
	g := s.gesture
	if g.kind != interactionConnecting {
		return EdgeCurve{}, false
	}
	source := s.doc.Flow().NodeByID(g.sourceID)
	if source == nil {
		return EdgeCurve{}, false
	}
	ss := s.layout.Measure(source.ID)
	start := Point{X: source.X + ss.Width/2, Y: source.Y + ss.Height}
	end := Point{
		X: (g.guideX - s.viewport.PanX) / s.viewport.Zoom,
		Y: (g.guideY - s.viewport.PanY) / s.viewport.Zoom,
	}
	return CurveBetween(start, end), true
}

// --- selection and keyboard ---

// Select marks the node as selected, replacing any previous selection.
func (s *EditorSession) Select(nodeID string) bool {
	if s.doc.Flow().NodeByID(nodeID) == nil {
		return false
	}
	s.selected = nodeID
	return true
}

// Deselect clears the selection.
func (s *EditorSession) Deselect() { s.selected = "" }

// HandleCommand runs a keyboard shortcut. Returns true when the command was
// handled, so the caller can suppress the default browser action.
func (s *EditorSession) HandleCommand(cmd Command) bool {
	switch cmd {
	case CommandSave:
		if s.OnSave != nil {
			s.OnSave(s.doc.Flow().Clone())
		}
		return true
	case CommandUndo:
		// Handled even when the history is empty; the shortcut is bound
		// either way and the default browser action must not fire.
		s.doc.Undo()
		return true
	case CommandRedo:
		s.doc.Redo()
		return true
	case CommandDeleteSelected:
		if s.selected == "" {
			return false
		}
		if s.doc.DeleteNode(s.selected) {
			s.selected = ""
			return true
		}
		return false
	case CommandDeselect:
		s.selected = ""
		return true
	}
	return false
}
