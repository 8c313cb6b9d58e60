// internal/api/layout_handlers.go
package api

import (
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/douju/douju-editor/internal/layout"
)

// layoutSession is the single server-side overlay-layout editing session.
// Drag state lives here until an explicit save; an abandoned session leaves
// the graph untouched.
type layoutSession struct {
	mu     sync.Mutex
	nodeID string
	editor *layout.Editor
}

func (ls *layoutSession) snapshot() gin.H {
	text, options := ls.editor.Positions()
	return gin.H{
		"node":       ls.nodeID,
		"textPos":    text,
		"optionsPos": options,
	}
}

// OpenLayoutEdit opens a layout editing session for a node, replacing any
// session already open. Working positions seed from the node's overrides or
// the default starting positions.
func (h *Handler) OpenLayoutEdit(c *gin.Context) {
	id := c.Param("id")
	node, ok := h.Store.Get(id)
	if !ok {
		h.resp.NotFound(c, "node not found")
		return
	}

	h.layoutEdit.mu.Lock()
	defer h.layoutEdit.mu.Unlock()
	h.layoutEdit.nodeID = id
	h.layoutEdit.editor = layout.NewEditor(node)
	h.resp.Success(c, h.layoutEdit.snapshot(), "layout session opened")
}

type layoutPointerRequest struct {
	Phase  string  `json:"phase" binding:"required"` // "down", "move", "up"
	Block  string  `json:"block"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// LayoutPointer drives a block drag inside the open layout session. The
// down phase names the block, move phases carry the pointer position and
// the surface size, and up releases the block without committing.
func (h *Handler) LayoutPointer(c *gin.Context) {
	var req layoutPointerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}

	h.layoutEdit.mu.Lock()
	defer h.layoutEdit.mu.Unlock()
	if h.layoutEdit.editor == nil || h.layoutEdit.nodeID != c.Param("id") {
		h.resp.NotFound(c, "no layout session for this node")
		return
	}

	switch req.Phase {
	case "down":
		block := layout.Block(req.Block)
		if block != layout.BlockText && block != layout.BlockOptions {
			h.resp.BadRequest(c, "block must be \"text\" or \"options\"")
			return
		}
		h.layoutEdit.editor.BeginDrag(block)
	case "move":
		h.layoutEdit.editor.Drag(req.X, req.Y, req.Width, req.Height)
	case "up":
		h.layoutEdit.editor.EndDrag()
	default:
		h.resp.BadRequest(c, "unknown pointer phase")
		return
	}
	h.resp.Success(c, h.layoutEdit.snapshot())
}

// SaveLayoutEdit commits the session's working positions to the node and
// closes the session. This is the only path from drag state to the graph.
func (h *Handler) SaveLayoutEdit(c *gin.Context) {
	h.layoutEdit.mu.Lock()
	defer h.layoutEdit.mu.Unlock()
	if h.layoutEdit.editor == nil || h.layoutEdit.nodeID != c.Param("id") {
		h.resp.NotFound(c, "no layout session for this node")
		return
	}

	h.layoutEdit.editor.Commit(h.Store)
	out := h.layoutEdit.snapshot()
	h.layoutEdit.editor = nil
	h.layoutEdit.nodeID = ""
	h.resp.Success(c, out, "layout saved")
}

// DiscardLayoutEdit drops the session without touching the node.
func (h *Handler) DiscardLayoutEdit(c *gin.Context) {
	h.layoutEdit.mu.Lock()
	defer h.layoutEdit.mu.Unlock()
	if h.layoutEdit.nodeID == c.Param("id") {
		h.layoutEdit.editor = nil
		h.layoutEdit.nodeID = ""
	}
	h.resp.Success(c, gin.H{"node": c.Param("id")}, "layout session discarded")
}
