// internal/api/player_handlers.go
package api

import (
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/douju/douju-editor/internal/player"
)

// previewSession is the single server-side playback preview. Playback is a
// read-only walk over the graph, so one session per editor instance is
// enough.
type previewSession struct {
	mu     sync.Mutex
	player *player.Player
	output *player.NullOutput
}

func (ps *previewSession) snapshot() gin.H {
	if ps.player == nil {
		return gin.H{"state": "closed"}
	}
	out := gin.H{
		"state":     string(ps.player.State()),
		"currentId": ps.player.CurrentID(),
		"deadEnd":   ps.player.AtDeadEnd(),
		"audio":     ps.output.CurrentSource(),
	}
	if node, ok := ps.player.Current(); ok {
		out["node"] = node
	}
	return out
}

type playerStartRequest struct {
	StartID string `json:"startId"`
}

// StartPreview opens a playback session at the given start node, closing
// any previous session first.
func (h *Handler) StartPreview(c *gin.Context) {
	var req playerStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	if req.StartID == "" {
		req.StartID = "start"
	}

	h.preview.mu.Lock()
	defer h.preview.mu.Unlock()
	if h.preview.player != nil {
		if err := h.preview.player.Close(); err != nil {
			h.logger.Warn("failed to close previous preview session", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	h.preview.output = player.NewNullOutput()
	h.preview.player = player.NewPlayer(h.Store, h.preview.output, req.StartID)
	h.resp.Success(c, h.preview.snapshot(), "preview started")
}

// GetPreview returns the current playback state.
func (h *Handler) GetPreview(c *gin.Context) {
	h.preview.mu.Lock()
	defer h.preview.mu.Unlock()
	h.resp.Success(c, h.preview.snapshot())
}

type playerChooseRequest struct {
	OptionID string `json:"optionId" binding:"required"`
}

// ChoosePreview activates an option of the current node. Unknown option
// ids and empty targets are inert, matching the engine semantics.
func (h *Handler) ChoosePreview(c *gin.Context) {
	var req playerChooseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}

	h.preview.mu.Lock()
	defer h.preview.mu.Unlock()
	if h.preview.player == nil {
		h.resp.NotFound(c, "no preview session")
		return
	}
	h.preview.player.Choose(req.OptionID)
	h.resp.Success(c, h.preview.snapshot())
}

// RestartPreview re-enters the story at the given start node. This is the
// only way out of the ended state.
func (h *Handler) RestartPreview(c *gin.Context) {
	var req playerStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	if req.StartID == "" {
		req.StartID = "start"
	}

	h.preview.mu.Lock()
	defer h.preview.mu.Unlock()
	if h.preview.player == nil {
		h.resp.NotFound(c, "no preview session")
		return
	}
	h.preview.player.Restart(req.StartID)
	h.resp.Success(c, h.preview.snapshot())
}

// ClosePreview tears the playback session down.
func (h *Handler) ClosePreview(c *gin.Context) {
	h.preview.mu.Lock()
	defer h.preview.mu.Unlock()
	if h.preview.player == nil {
		h.resp.Success(c, gin.H{"state": "closed"})
		return
	}
	if err := h.preview.player.Close(); err != nil {
		h.resp.AppError(c, err)
		return
	}
	h.preview.player = nil
	h.preview.output = nil
	h.resp.Success(c, gin.H{"state": "closed"}, "preview closed")
}
