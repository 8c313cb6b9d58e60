// internal/canvas/connections.go
package canvas

import (
	"github.com/douju/douju-editor/internal/store"
)

// Node card geometry in canvas units. Curves leave the source card at its
// right-middle anchor and enter the target card at its left-middle anchor.
const (
	NodeCardWidth = 240
	AnchorMidY    = 60
	CurveTangent  = 100
)

// Curve is one cubic connection between an option and its resolved target.
type Curve struct {
	FromNodeID string  `json:"fromNodeId"`
	OptionID   string  `json:"optionId"`
	ToNodeID   string  `json:"toNodeId"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	C1X        float64 `json:"c1x"`
	C1Y        float64 `json:"c1y"`
	C2X        float64 `json:"c2x"`
	C2Y        float64 `json:"c2y"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
}

// ConnectionCache derives connection curves from the graph, memoized on the
// store revision so rendering does not recompute per frame.
type ConnectionCache struct {
	revision uint64
	curves   []Curve
	primed   bool
}

// Curves returns one curve per option whose targetId resolves to an existing
// node. Options with empty or unresolved targets contribute nothing; that is
// a normal state of the graph, not an error.
func (cc *ConnectionCache) Curves(s *store.GraphStore) []Curve {
	if cc.primed && cc.revision == s.Revision() {
		return cc.curves
	}
	curves := make([]Curve, 0)
	for _, id := range s.NodeIDs() {
		node, ok := s.Get(id)
		if !ok {
			continue
		}
		for _, opt := range node.Options {
			if opt.TargetID == "" {
				continue
			}
			target, ok := s.Get(opt.TargetID)
			if !ok {
				continue
			}
			sx := node.X + NodeCardWidth
			sy := node.Y + AnchorMidY
			tx := target.X
			ty := target.Y + AnchorMidY
			curves = append(curves, Curve{
				FromNodeID: node.ID,
				OptionID:   opt.ID,
				ToNodeID:   target.ID,
				X1:         sx,
				Y1:         sy,
				C1X:        sx + CurveTangent,
				C1Y:        sy,
				C2X:        tx - CurveTangent,
				C2Y:        ty,
				X2:         tx,
				Y2:         ty,
			})
		}
	}
	cc.curves = curves
	cc.revision = s.Revision()
	cc.primed = true
	return cc.curves
}
