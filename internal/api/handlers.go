// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/douju/douju-editor/internal/canvas"
	"github.com/douju/douju-editor/internal/config"
	"github.com/douju/douju-editor/internal/gen"
	"github.com/douju/douju-editor/internal/layout"
	"github.com/douju/douju-editor/internal/models"
	"github.com/douju/douju-editor/internal/services"
	"github.com/douju/douju-editor/internal/store"
	"github.com/douju/douju-editor/internal/utils"
)

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	Projects    *services.ProjectService
	Editor      *services.EditorService
	Exports     *services.ExportService
	Store       *store.GraphStore
	Canvas      *canvas.Session
	Connections *canvas.ConnectionCache
	Hub         *Hub

	preview    previewSession
	layoutEdit layoutSession
	resp       *ResponseHelper
	logger     *utils.Logger
}

// NewHandler creates the handler set.
func NewHandler(projects *services.ProjectService, editor *services.EditorService, exports *services.ExportService, s *store.GraphStore, hub *Hub) *Handler {
	return &Handler{
		Projects:    projects,
		Editor:      editor,
		Exports:     exports,
		Store:       s,
		Canvas:      canvas.NewSession(s),
		Connections: &canvas.ConnectionCache{},
		Hub:         hub,
		resp:        NewResponseHelper(),
		logger:      utils.GetLogger(),
	}
}

// ---- project ----

// GetProject returns the full in-memory project.
func (h *Handler) GetProject(c *gin.Context) {
	h.resp.Success(c, h.Store.Snapshot())
}

// NewProject resets the editor to the seed story.
func (h *Handler) NewProject(c *gin.Context) {
	h.Projects.NewProject()
	h.resp.Success(c, h.Store.Snapshot(), "new project created")
}

// ImportProject replaces the project with an uploaded JSON document.
func (h *Handler) ImportProject(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.resp.BadRequest(c, "failed to read request body")
		return
	}
	if err := h.Projects.Import(body); err != nil {
		h.resp.AppError(c, err)
		return
	}
	h.resp.Success(c, h.Store.Snapshot(), "project imported")
}

// ExportProject downloads the project as a JSON file.
func (h *Handler) ExportProject(c *gin.Context) {
	data, err := h.Projects.Export()
	if err != nil {
		h.resp.AppError(c, err)
		return
	}
	h.resp.DownloadResponse(c, data, "project.json", "application/json")
}

// ListProjects returns the names of saved projects.
func (h *Handler) ListProjects(c *gin.Context) {
	names, err := h.Projects.List()
	if err != nil {
		h.resp.AppError(c, err)
		return
	}
	h.resp.Success(c, gin.H{"projects": names})
}

// SaveProject persists the current project under a name.
func (h *Handler) SaveProject(c *gin.Context) {
	name := c.Param("name")
	if err := h.Projects.Save(name); err != nil {
		h.resp.AppError(c, err)
		return
	}
	h.resp.Success(c, gin.H{"name": name}, "project saved")
}

// LoadProject replaces the current project with a saved one.
func (h *Handler) LoadProject(c *gin.Context) {
	name := c.Param("name")
	if err := h.Projects.Load(name); err != nil {
		h.resp.AppError(c, err)
		return
	}
	h.resp.Success(c, h.Store.Snapshot(), "project loaded")
}

// DeleteProject removes a saved project file.
func (h *Handler) DeleteProject(c *gin.Context) {
	name := c.Param("name")
	if err := h.Projects.Delete(name); err != nil {
		h.resp.AppError(c, err)
		return
	}
	h.resp.Success(c, gin.H{"name": name}, "project deleted")
}

// ---- nodes ----

type createNodeRequest struct {
	Title string  `json:"title"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// CreateNode adds a new scene node to the graph.
func (h *Handler) CreateNode(c *gin.Context) {
	var req createNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	node := h.Editor.CreateNode(req.Title, req.X, req.Y)
	h.resp.Created(c, node)
}

type updateNodeRequest struct {
	Title      *string                 `json:"title"`
	Type       *models.NodeType        `json:"type"`
	Content    *string                 `json:"content"`
	MediaType  *models.MediaType       `json:"mediaType"`
	MediaSrc   *string                 `json:"mediaSrc"`
	AudioSrc   *string                 `json:"audioSrc"`
	X          *float64                `json:"x"`
	Y          *float64                `json:"y"`
	Options    *[]models.StoryOption   `json:"options"`
	TextPos    *models.ElementPosition `json:"textPos"`
	OptionsPos *models.ElementPosition `json:"optionsPos"`
}

// UpdateNode applies a partial update to one node.
func (h *Handler) UpdateNode(c *gin.Context) {
	var req updateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}

	patch := store.NodePatch{
		Title:      req.Title,
		Type:       req.Type,
		Content:    req.Content,
		MediaType:  req.MediaType,
		MediaSrc:   req.MediaSrc,
		AudioSrc:   req.AudioSrc,
		X:          req.X,
		Y:          req.Y,
		Options:    req.Options,
		TextPos:    req.TextPos,
		OptionsPos: req.OptionsPos,
	}
	if err := h.Editor.UpdateNode(c.Param("id"), patch); err != nil {
		h.resp.AppError(c, err)
		return
	}
	node, _ := h.Store.Get(c.Param("id"))
	h.resp.Success(c, node)
}

// DeleteNode removes a node. Options elsewhere that pointed at it keep
// their target id and simply dangle.
func (h *Handler) DeleteNode(c *gin.Context) {
	if err := h.Editor.DeleteNode(c.Param("id")); err != nil {
		h.resp.AppError(c, err)
		return
	}
	h.resp.Success(c, gin.H{"id": c.Param("id")}, "node deleted")
}

type moveNodeRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// MoveNode translates a node by a canvas-space delta.
func (h *Handler) MoveNode(c *gin.Context) {
	var req moveNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	id := c.Param("id")
	if !h.Store.Has(id) {
		h.resp.NotFound(c, "node not found")
		return
	}
	h.Store.MoveBy(id, req.DX, req.DY)
	node, _ := h.Store.Get(id)
	h.resp.Success(c, node)
}

// ---- options ----

// AddOption appends a blank option to a node.
func (h *Handler) AddOption(c *gin.Context) {
	opt, err := h.Editor.AddOption(c.Param("id"))
	if err != nil {
		h.resp.AppError(c, err)
		return
	}
	h.resp.Created(c, opt)
}

type updateOptionRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// UpdateOption edits one field of an option addressed by index.
func (h *Handler) UpdateOption(c *gin.Context) {
	var req updateOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	idx, ok := parseIndex(c.Param("idx"))
	if !ok {
		h.resp.BadRequest(c, "invalid option index")
		return
	}

	field := store.OptionField(req.Field)
	if field != store.OptionLabel && field != store.OptionTarget {
		h.resp.BadRequest(c, "unknown option field")
		return
	}
	if err := h.Editor.UpdateOption(c.Param("id"), idx, field, req.Value); err != nil {
		h.resp.AppError(c, err)
		return
	}
	node, _ := h.Store.Get(c.Param("id"))
	h.resp.Success(c, node)
}

// RemoveOption deletes the option at an index.
func (h *Handler) RemoveOption(c *gin.Context) {
	idx, ok := parseIndex(c.Param("idx"))
	if !ok {
		h.resp.BadRequest(c, "invalid option index")
		return
	}
	if err := h.Editor.RemoveOption(c.Param("id"), idx); err != nil {
		h.resp.AppError(c, err)
		return
	}
	node, _ := h.Store.Get(c.Param("id"))
	h.resp.Success(c, node)
}

func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	idx := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		idx = idx*10 + int(r-'0')
	}
	return idx, true
}

// ---- canvas ----

// GetConnections returns the bezier curves between linked nodes.
func (h *Handler) GetConnections(c *gin.Context) {
	h.resp.Success(c, gin.H{
		"curves":   h.Connections.Curves(h.Store),
		"revision": h.Store.Revision(),
	})
}

// GetViewport returns the persisted camera state.
func (h *Handler) GetViewport(c *gin.Context) {
	h.resp.Success(c, h.Store.Viewport())
}

type viewportRequest struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// SetViewport stores the camera state pushed by the front end.
func (h *Handler) SetViewport(c *gin.Context) {
	var req viewportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	h.Store.SetViewport(models.Viewport{X: req.X, Y: req.Y, Zoom: req.Zoom})
	h.resp.Success(c, h.Store.Viewport())
}

type zoomRequest struct {
	Direction string `json:"direction" binding:"required"`
}

// Zoom steps the camera zoom in or out with clamping.
func (h *Handler) Zoom(c *gin.Context) {
	var req zoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	switch req.Direction {
	case "in":
		h.Canvas.ZoomIn()
	case "out":
		h.Canvas.ZoomOut()
	default:
		h.resp.BadRequest(c, "direction must be \"in\" or \"out\"")
		return
	}
	h.resp.Success(c, h.Store.Viewport())
}

type pointerRequest struct {
	Phase string  `json:"phase" binding:"required"` // "down", "move", "up"
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	DX    float64 `json:"dx"`
	DY    float64 `json:"dy"`
	Node  string  `json:"node"`
}

// Pointer drives the drag state machine for node drags and panning.
func (h *Handler) Pointer(c *gin.Context) {
	var req pointerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	switch req.Phase {
	case "down":
		h.Canvas.PointerDown(req.X, req.Y, req.Node)
	case "move":
		h.Canvas.PointerMove(req.X, req.Y, req.DX, req.DY)
	case "up":
		h.Canvas.PointerUp()
	default:
		h.resp.BadRequest(c, "unknown pointer phase")
		return
	}
	h.resp.Success(c, gin.H{
		"mode":     h.Canvas.Mode().String(),
		"selected": h.Canvas.Selected(),
		"viewport": h.Store.Viewport(),
	})
}

type selectRequest struct {
	ID string `json:"id"`
}

// SelectNode sets or clears the canvas selection.
func (h *Handler) SelectNode(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	h.Canvas.Select(req.ID)
	h.resp.Success(c, gin.H{"selected": h.Canvas.Selected()})
}

// ---- layout ----

// GetLayout resolves the playback overlay layout for a node.
func (h *Handler) GetLayout(c *gin.Context) {
	node, ok := h.Store.Get(c.Param("id"))
	if !ok {
		h.resp.NotFound(c, "node not found")
		return
	}
	h.resp.Success(c, gin.H{
		"layout": layout.Resolve(node),
		"custom": node.HasCustomLayout(),
	})
}

type layoutRequest struct {
	TextPos    *models.ElementPosition `json:"textPos"`
	OptionsPos *models.ElementPosition `json:"optionsPos"`
}

// SetLayout commits overlay position overrides for a node.
func (h *Handler) SetLayout(c *gin.Context) {
	var req layoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	id := c.Param("id")
	node, ok := h.Store.Get(id)
	if !ok {
		h.resp.NotFound(c, "node not found")
		return
	}
	h.Store.Upsert(id, store.NodePatch{TextPos: req.TextPos, OptionsPos: req.OptionsPos})
	node, _ = h.Store.Get(id)
	h.resp.Success(c, layout.Resolve(node))
}

// ---- characters ----

// SaveCharacter creates or replaces a character.
func (h *Handler) SaveCharacter(c *gin.Context) {
	var ch models.Character
	if err := c.ShouldBindJSON(&ch); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	if err := h.Editor.SaveCharacter(&ch); err != nil {
		h.resp.AppError(c, err)
		return
	}
	h.resp.Success(c, ch)
}

// DeleteCharacter removes a character.
func (h *Handler) DeleteCharacter(c *gin.Context) {
	h.Editor.DeleteCharacter(c.Param("id"))
	h.resp.Success(c, gin.H{"id": c.Param("id")}, "character deleted")
}

type styleRequest struct {
	Style string `json:"style"`
}

// GenerateAvatar asks the provider for a character portrait.
func (h *Handler) GenerateAvatar(c *gin.Context) {
	var req styleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	id := c.Param("id")
	if err := h.Editor.GenerateAvatar(c.Request.Context(), id, req.Style); err != nil {
		h.resp.AppError(c, err)
		return
	}
	ch, _ := h.Store.GetCharacter(id)
	h.resp.Success(c, ch)
}

// ---- generation ----

type generateStoryRequest struct {
	Theme    string `json:"theme" binding:"required"`
	Style    string `json:"style"`
	Topology string `json:"topology"`
}

// GenerateStory replaces the graph with a generated story. On failure the
// current graph is left untouched.
func (h *Handler) GenerateStory(c *gin.Context) {
	var req generateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	topology := gen.Topology(req.Topology)
	if req.Topology == "" {
		topology = gen.TopologyWeb
	}
	if err := h.Editor.GenerateProject(c.Request.Context(), req.Theme, req.Style, topology); err != nil {
		h.resp.AppError(c, err)
		return
	}
	h.resp.Success(c, h.Store.Snapshot(), "story generated")
}

// PolishNode rewrites a node's prose in the requested style.
func (h *Handler) PolishNode(c *gin.Context) {
	var req styleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	text, err := h.Editor.PolishContent(c.Request.Context(), c.Param("id"), req.Style)
	if err != nil {
		h.resp.AppError(c, err)
		return
	}
	h.resp.Success(c, gin.H{"content": text})
}

// GenerateNodeImage attaches a generated illustration to a node.
func (h *Handler) GenerateNodeImage(c *gin.Context) {
	h.generateNodeMedia(c, h.Editor.GenerateImage)
}

// GenerateNodeVideo attaches a generated video clip to a node.
func (h *Handler) GenerateNodeVideo(c *gin.Context) {
	h.generateNodeMedia(c, h.Editor.GenerateVideo)
}

func (h *Handler) generateNodeMedia(c *gin.Context, generate func(ctx context.Context, nodeID, style string) error) {
	var req styleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	id := c.Param("id")
	if err := generate(c.Request.Context(), id, req.Style); err != nil {
		h.resp.AppError(c, err)
		return
	}
	node, _ := h.Store.Get(id)
	h.resp.Success(c, node)
}

type audioRequest struct {
	Kind string `json:"kind"` // "bgm" or "sfx"
}

// GenerateNodeAudio attaches a generated soundtrack to a node.
func (h *Handler) GenerateNodeAudio(c *gin.Context) {
	var req audioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	kind := gen.AudioKind(req.Kind)
	if req.Kind == "" {
		kind = gen.AudioBGM
	}
	id := c.Param("id")
	if err := h.Editor.GenerateAudio(c.Request.Context(), id, kind); err != nil {
		h.resp.AppError(c, err)
		return
	}
	node, _ := h.Store.Get(id)
	h.resp.Success(c, node)
}

// AutoBranch generates follow-up choices for a node and fans new nodes
// out to its right.
func (h *Handler) AutoBranch(c *gin.Context) {
	var req styleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	nodes, err := h.Editor.AutoBranch(c.Request.Context(), c.Param("id"), req.Style)
	if err != nil {
		h.resp.AppError(c, err)
		return
	}
	h.resp.Created(c, gin.H{"nodes": nodes})
}

// ---- export ----

type flutterExportRequest struct {
	StartID string `json:"startId"`
}

// ExportFlutter downloads a self-contained Flutter player for the story.
func (h *Handler) ExportFlutter(c *gin.Context) {
	startID := c.Query("startId")
	if startID == "" {
		startID = "start"
	}
	content, err := h.Exports.BuildFlutterPlayer(startID)
	if err != nil {
		h.resp.AppError(c, err)
		return
	}
	h.resp.DownloadResponse(c, content, "main.dart", "text/plain; charset=utf-8")
}

// SaveFlutterExport writes the Flutter player into the exports directory.
func (h *Handler) SaveFlutterExport(c *gin.Context) {
	var req flutterExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	if req.StartID == "" {
		req.StartID = "start"
	}
	path, err := h.Exports.SaveFlutterPlayer(req.StartID)
	if err != nil {
		h.resp.AppError(c, err)
		return
	}
	h.resp.Success(c, gin.H{"path": path}, "player exported")
}

// ---- settings ----

// GetSettings returns the current configuration with secrets masked.
func (h *Handler) GetSettings(c *gin.Context) {
	cfg := config.GetCurrentConfig()
	h.resp.Success(c, gin.H{
		"provider":       cfg.GenProvider,
		"api_key_set":    cfg.GenConfig["api_key"] != "",
		"debug_mode":     cfg.DebugMode,
		"data_dir":       cfg.DataDir,
		"ws_connections": h.Hub.ClientCount(),
	})
}

type settingsRequest struct {
	Provider string            `json:"provider" binding:"required"`
	Config   map[string]string `json:"config"`
}

// UpdateSettings changes the generation provider configuration.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.BadRequest(c, "invalid request format", err.Error())
		return
	}
	if err := config.UpdateGenConfig(req.Provider, req.Config); err != nil {
		h.resp.AppError(c, err)
		return
	}
	h.resp.Success(c, gin.H{"provider": req.Provider}, "settings updated")
}

// ---- websocket / status ----

// ProjectWS upgrades the connection and registers it with the hub.
func (h *Handler) ProjectWS(c *gin.Context) {
	if err := h.Hub.ServeWS(c.Writer, c.Request); err != nil {
		h.logger.Error("websocket upgrade failed", map[string]interface{}{"error": err.Error()})
	}
}

// Status reports editor health for monitoring.
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"nodes":     h.Store.Len(),
		"revision":  h.Store.Revision(),
		"websocket": h.Hub.Status(),
	})
}

// RawSnapshot returns the project document without the response envelope,
// for tooling that expects the bare interchange format.
func (h *Handler) RawSnapshot(c *gin.Context) {
	data, err := json.Marshal(h.Store.Snapshot())
	if err != nil {
		h.resp.InternalError(c, err.Error())
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}
