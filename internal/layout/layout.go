// internal/layout/layout.go
package layout

import (
	"github.com/douju/douju-editor/internal/models"
)

// Overlay block widths as a percentage of the playback surface.
const (
	customTextWidth  = 40
	customOptsWidth  = 30
	defaultTextWidth = 60
	defaultOptsWidth = 30
	defaultEdgeInset = 10
)

// Region is where an overlay block renders, in percent of the playback
// surface. Custom regions position by Left/Top; default regions anchor by
// Bottom plus Left or Right. Unused edges are -1.
type Region struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Width  float64 `json:"width"`
	Custom bool    `json:"custom"`
}

// Layout is the resolved placement of the two overlay blocks for one node.
type Layout struct {
	Text    Region `json:"text"`
	Options Region `json:"options"`
}

// Resolve determines where the narrative-text and option blocks render for
// a node. Author overrides win; otherwise the classic anchored layout is
// used (text bottom-left, options bottom-right).
func Resolve(node *models.StoryNode) Layout {
	var l Layout
	if node.TextPos != nil {
		p := node.TextPos.Clamped()
		l.Text = Region{Left: p.X, Top: p.Y, Right: -1, Bottom: -1, Width: customTextWidth, Custom: true}
	} else {
		l.Text = Region{Left: defaultEdgeInset, Top: -1, Right: -1, Bottom: defaultEdgeInset, Width: defaultTextWidth}
	}
	if node.OptionsPos != nil {
		p := node.OptionsPos.Clamped()
		l.Options = Region{Left: p.X, Top: p.Y, Right: -1, Bottom: -1, Width: customOptsWidth, Custom: true}
	} else {
		l.Options = Region{Left: -1, Top: -1, Right: defaultEdgeInset, Bottom: defaultEdgeInset, Width: defaultOptsWidth}
	}
	return l
}
