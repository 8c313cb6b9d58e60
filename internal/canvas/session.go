// internal/canvas/session.go
package canvas

import (
	"github.com/douju/douju-editor/internal/models"
	"github.com/douju/douju-editor/internal/store"
)

// Zoom limits for the canvas camera. Stepped zoom never leaves this range.
const (
	MinZoom  = 0.2
	MaxZoom  = 2.0
	ZoomStep = 0.1
)

// Mode is the pointer state of one canvas session.
type Mode int

const (
	ModeIdle Mode = iota
	ModePanningCanvas
	ModeDraggingNode
)

func (m Mode) String() string {
	switch m {
	case ModePanningCanvas:
		return "panning_canvas"
	case ModeDraggingNode:
		return "dragging_node"
	default:
		return "idle"
	}
}

// Session translates pointer input into viewport pan, zoom and node position
// edits. All positional mutations are written back to the graph store; the
// session only owns the transient drag state.
type Session struct {
	store *store.GraphStore

	panX, panY float64
	zoom       float64

	mode       Mode
	dragNodeID string
	// pan capture: pointer position minus pan at pointer-down
	dragStartX, dragStartY float64

	selectedID string
}

// NewSession creates a canvas session over the store, seeding the camera
// from the store's persisted viewport.
func NewSession(s *store.GraphStore) *Session {
	c := &Session{store: s}
	c.syncViewport()
	return c
}

// syncViewport re-seeds the camera from the store so externally written
// viewports (direct sets, project loads) are not overwritten by the next
// gesture. Never called mid-gesture; the session is authoritative then.
func (c *Session) syncViewport() {
	v := c.store.Viewport()
	if v.Zoom == 0 {
		v.Zoom = 1
	}
	c.panX = v.X
	c.panY = v.Y
	c.zoom = clampZoom(v.Zoom)
}

// Mode returns the current pointer state.
func (c *Session) Mode() Mode {
	return c.mode
}

// Selected returns the selected node id, or "" when nothing is selected.
func (c *Session) Selected() string {
	return c.selectedID
}

// Viewport returns the current camera.
func (c *Session) Viewport() models.Viewport {
	return models.Viewport{X: c.panX, Y: c.panY, Zoom: c.zoom}
}

// Zoom returns the current zoom factor.
func (c *Session) Zoom() float64 {
	return c.zoom
}

// ZoomIn steps the zoom up, clamped to MaxZoom. Zoom is unmodal: it works in
// any pointer state.
func (c *Session) ZoomIn() {
	if c.mode == ModeIdle {
		c.syncViewport()
	}
	c.zoom = clampZoom(c.zoom + ZoomStep)
	c.persistViewport()
}

// ZoomOut steps the zoom down, clamped to MinZoom.
func (c *Session) ZoomOut() {
	if c.mode == ModeIdle {
		c.syncViewport()
	}
	c.zoom = clampZoom(c.zoom - ZoomStep)
	c.persistViewport()
}

func clampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// PointerDown starts a drag. A non-empty hitNodeID means the pointer landed
// on that node's body: the node is selected and a potential node drag
// begins. Empty means background: selection clears and a canvas pan begins.
func (c *Session) PointerDown(x, y float64, hitNodeID string) {
	c.syncViewport()
	if hitNodeID != "" {
		if !c.store.Has(hitNodeID) {
			return
		}
		c.mode = ModeDraggingNode
		c.dragNodeID = hitNodeID
		c.selectedID = hitNodeID
		return
	}
	c.mode = ModePanningCanvas
	c.dragStartX = x - c.panX
	c.dragStartY = y - c.panY
	c.selectedID = ""
}

// PointerMove advances an active drag. (x, y) is the pointer position and
// (dx, dy) its incremental movement since the previous event. Node drags are
// scaled by 1/zoom so drag distance is perceptually zoom-invariant.
func (c *Session) PointerMove(x, y, dx, dy float64) {
	switch c.mode {
	case ModePanningCanvas:
		c.panX = x - c.dragStartX
		c.panY = y - c.dragStartY
	case ModeDraggingNode:
		c.store.MoveBy(c.dragNodeID, dx/c.zoom, dy/c.zoom)
	}
}

// PointerUp ends any drag and returns to idle. Selection is untouched.
func (c *Session) PointerUp() {
	if c.mode == ModePanningCanvas {
		c.persistViewport()
	}
	c.mode = ModeIdle
	c.dragNodeID = ""
}

// Select sets the selection without starting a drag, for sidebar clicks.
func (c *Session) Select(id string) {
	if id == "" || c.store.Has(id) {
		c.selectedID = id
	}
}

func (c *Session) persistViewport() {
	c.store.SetViewport(models.Viewport{X: c.panX, Y: c.panY, Zoom: c.zoom})
}
