// internal/layout/editor.go
package layout

import (
	"github.com/douju/douju-editor/internal/models"
	"github.com/douju/douju-editor/internal/store"
)

// Block identifies which overlay block a layout drag is moving.
type Block string

const (
	BlockNone    Block = ""
	BlockText    Block = "text"
	BlockOptions Block = "options"
)

// Starting positions for nodes that have no custom layout yet.
var (
	defaultTextStart = models.ElementPosition{X: 5, Y: 60}
	defaultOptsStart = models.ElementPosition{X: 5, Y: 80}
)

// Editor is one layout-editing session for a single node. Drag state is
// local and discardable; nothing reaches the store until Commit.
type Editor struct {
	nodeID     string
	textPos    models.ElementPosition
	optionsPos models.ElementPosition
	dragging   Block
}

// NewEditor opens a layout session seeded from the node's current override
// positions, or the default starting positions when none are set.
func NewEditor(node *models.StoryNode) *Editor {
	e := &Editor{
		nodeID:     node.ID,
		textPos:    defaultTextStart,
		optionsPos: defaultOptsStart,
	}
	if node.TextPos != nil {
		e.textPos = *node.TextPos
	}
	if node.OptionsPos != nil {
		e.optionsPos = *node.OptionsPos
	}
	return e
}

// Positions returns the current working positions.
func (e *Editor) Positions() (text, options models.ElementPosition) {
	return e.textPos, e.optionsPos
}

// BeginDrag starts moving one block.
func (e *Editor) BeginDrag(b Block) {
	e.dragging = b
}

// Drag recomputes the dragged block's position as a percentage of the
// editing surface's bounding box, clamped to [0,100] on both axes.
// (pointerX, pointerY) is relative to the surface origin.
func (e *Editor) Drag(pointerX, pointerY, surfaceW, surfaceH float64) {
	if e.dragging == BlockNone || surfaceW <= 0 || surfaceH <= 0 {
		return
	}
	pos := models.ElementPosition{
		X: pointerX / surfaceW * 100,
		Y: pointerY / surfaceH * 100,
	}.Clamped()
	switch e.dragging {
	case BlockText:
		e.textPos = pos
	case BlockOptions:
		e.optionsPos = pos
	}
}

// EndDrag stops moving without committing anything.
func (e *Editor) EndDrag() {
	e.dragging = BlockNone
}

// Commit persists both working positions to the node. This is the explicit
// save action; an editor that is simply dropped changes nothing.
func (e *Editor) Commit(s *store.GraphStore) {
	text := e.textPos.Clamped()
	opts := e.optionsPos.Clamped()
	s.Upsert(e.nodeID, store.NodePatch{TextPos: &text, OptionsPos: &opts})
}
