package editor

import (
	"github.com/botflowhq/botflow/pkg/schema"
)

// Point is a position in unscaled canvas space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a rendered node's extent.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NodeLayout reports rendered node sizes. Node height depends on body
// content, so edge geometry queries measured sizes instead of assuming a
// constant.
type NodeLayout interface {
	Measure(nodeID string) Size
}

// FixedLayout is a NodeLayout that returns the same size for every node.
type FixedLayout Size

func (l FixedLayout) Measure(string) Size { return Size(l) }

// Arrowhead proportions at the target anchor.
const (
	arrowHalfWidth = 5.0
	arrowHeight    = 7.0
)

// EdgeCurve is the drawable geometry of one edge: a cubic from the source's
// bottom-center to the target's top-center with control points at the
// vertical midpoint (a vertical "S"), plus a triangular arrowhead pointing
// into the target.
type EdgeCurve struct {
	Start Point `json:"start"`
	C1    Point `json:"c1"`
	C2    Point `json:"c2"`
	End   Point `json:"end"`

	Arrow [3]Point `json:"arrow"`
}

// CurveBetween computes the edge geometry for two anchor points.
func CurveBetween(start, end Point) EdgeCurve {
	midY := (start.Y + end.Y) / 2
	return EdgeCurve{
		Start: start,
		C1:    Point{X: start.X, Y: midY},
		C2:    Point{X: end.X, Y: midY},
		End:   end,
		Arrow: [3]Point{
			{X: end.X, Y: end.Y},
			{X: end.X - arrowHalfWidth, Y: end.Y - arrowHeight},
			{X: end.X + arrowHalfWidth, Y: end.Y - arrowHeight},
		},
	}
}

// CurveFor computes the geometry of the edge between two nodes using their
// measured sizes.
func CurveFor(source, target *schema.Node, layout NodeLayout) EdgeCurve {
	ss := layout.Measure(source.ID)
	ts := layout.Measure(target.ID)
	start := Point{X: source.X + ss.Width/2, Y: source.Y + ss.Height}
	end := Point{X: target.X + ts.Width/2, Y: target.Y}
	return CurveBetween(start, end)
}
