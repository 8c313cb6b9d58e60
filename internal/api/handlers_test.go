// internal/api/handlers_test.go
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/douju/douju-editor/internal/gen"
	"github.com/douju/douju-editor/internal/services"
	"github.com/douju/douju-editor/internal/storage"
	"github.com/douju/douju-editor/internal/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.GraphStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fs, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	graphStore := store.NewGraphStore()
	projects := services.NewProjectService(graphStore, fs)
	editor := services.NewEditorService(graphStore, gen.NewDisabled())
	exports := services.NewExportService(graphStore, fs)
	hub := NewHub()
	t.Cleanup(hub.Shutdown)

	projects.NewProject()

	handler := NewHandler(projects, editor, exports, graphStore, hub)

	r := gin.New()
	api := r.Group("/api")
	{
		api.GET("/project", handler.GetProject)
		api.POST("/project/new", handler.NewProject)
		api.POST("/project/import", handler.ImportProject)
		api.GET("/project/export", handler.ExportProject)

		api.POST("/nodes", handler.CreateNode)
		api.PUT("/nodes/:id", handler.UpdateNode)
		api.DELETE("/nodes/:id", handler.DeleteNode)
		api.POST("/nodes/:id/move", handler.MoveNode)
		api.POST("/nodes/:id/options", handler.AddOption)
		api.PUT("/nodes/:id/options/:idx", handler.UpdateOption)
		api.GET("/nodes/:id/layout", handler.GetLayout)
		api.PUT("/nodes/:id/layout", handler.SetLayout)
		api.POST("/nodes/:id/layout/edit", handler.OpenLayoutEdit)
		api.POST("/nodes/:id/layout/edit/pointer", handler.LayoutPointer)
		api.POST("/nodes/:id/layout/edit/save", handler.SaveLayoutEdit)
		api.DELETE("/nodes/:id/layout/edit", handler.DiscardLayoutEdit)
		api.POST("/nodes/:id/polish", handler.PolishNode)

		api.GET("/canvas/connections", handler.GetConnections)
		api.POST("/canvas/zoom", handler.Zoom)
		api.PUT("/canvas/viewport", handler.SetViewport)

		api.POST("/generate/story", handler.GenerateStory)

		api.GET("/player", handler.GetPreview)
		api.POST("/player/start", handler.StartPreview)
		api.POST("/player/choose", handler.ChoosePreview)
		api.POST("/player/restart", handler.RestartPreview)
		api.POST("/player/close", handler.ClosePreview)
	}
	return r, graphStore
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, *APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	resp := &APIResponse{}
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		if err := json.Unmarshal(w.Body.Bytes(), resp); err != nil {
			t.Fatalf("decode envelope: %v\nbody: %s", err, w.Body.String())
		}
	}
	return w, resp
}

func TestGetProjectReturnsSeedStory(t *testing.T) {
	r, _ := newTestRouter(t)

	w, resp := doJSON(t, r, http.MethodGet, "/api/project", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !resp.Success {
		t.Fatal("expected success envelope")
	}
	data, _ := resp.Data.(map[string]interface{})
	nodes, _ := data["nodes"].(map[string]interface{})
	if _, ok := nodes["start"]; !ok {
		t.Fatalf("seed project missing start node: %v", data)
	}
}

func TestNodeCRUDOverHTTP(t *testing.T) {
	r, graphStore := newTestRouter(t)

	w, resp := doJSON(t, r, http.MethodPost, "/api/nodes", map[string]interface{}{
		"title": "Cavern", "x": 10.0, "y": 20.0,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	created, _ := resp.Data.(map[string]interface{})
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("created node has no id")
	}

	w, _ = doJSON(t, r, http.MethodPut, "/api/nodes/"+id, map[string]interface{}{
		"title": "Deep Cavern",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d", w.Code)
	}
	node, _ := graphStore.Get(id)
	if node.Title != "Deep Cavern" {
		t.Fatalf("title = %q", node.Title)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/nodes/"+id+"/move", map[string]interface{}{
		"dx": 5.0, "dy": -5.0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("move status = %d", w.Code)
	}
	node, _ = graphStore.Get(id)
	if node.X != 15 || node.Y != 15 {
		t.Fatalf("position = (%v, %v)", node.X, node.Y)
	}

	w, _ = doJSON(t, r, http.MethodDelete, "/api/nodes/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if graphStore.Has(id) {
		t.Fatal("node still present after delete")
	}
}

func TestMoveUnknownNodeReturns404(t *testing.T) {
	r, _ := newTestRouter(t)

	w, resp := doJSON(t, r, http.MethodPost, "/api/nodes/ghost/move", map[string]interface{}{"dx": 1.0})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if resp.Success {
		t.Fatal("expected error envelope")
	}
}

func TestOptionEndpointsValidateInput(t *testing.T) {
	r, graphStore := newTestRouter(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/nodes/start/options", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("add option status = %d", w.Code)
	}
	node, _ := graphStore.Get("start")
	added := len(node.Options) - 1

	w, _ = doJSON(t, r, http.MethodPut, "/api/nodes/start/options/"+strconv.Itoa(added), map[string]interface{}{
		"field": "label", "value": "Run away",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update option status = %d", w.Code)
	}
	node, _ = graphStore.Get("start")
	if node.Options[added].Label != "Run away" {
		t.Fatalf("label = %q", node.Options[added].Label)
	}

	w, _ = doJSON(t, r, http.MethodPut, "/api/nodes/start/options/0", map[string]interface{}{
		"field": "color", "value": "red",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodPut, "/api/nodes/start/options/nope", map[string]interface{}{
		"field": "label", "value": "x",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad index status = %d", w.Code)
	}
}

func TestImportRejectsInvalidDocument(t *testing.T) {
	r, graphStore := newTestRouter(t)
	before := graphStore.Revision()

	req := httptest.NewRequest(http.MethodPost, "/api/project/import", bytes.NewBufferString("not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if graphStore.Revision() != before {
		t.Fatal("failed import must not touch the graph")
	}
}

func TestExportDownloadsProjectDocument(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/project/export", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); cd == "" {
		t.Fatal("expected attachment disposition")
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if _, ok := doc["nodes"]; !ok {
		t.Fatal("export missing nodes")
	}
}

func TestZoomEndpointStepsViewport(t *testing.T) {
	r, graphStore := newTestRouter(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/canvas/zoom", map[string]interface{}{"direction": "in"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if z := graphStore.Viewport().Zoom; z < 1.09 || z > 1.11 {
		t.Fatalf("zoom = %v", z)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/canvas/zoom", map[string]interface{}{"direction": "sideways"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad direction status = %d", w.Code)
	}
}

func TestZoomEndpointBuildsOnPushedViewport(t *testing.T) {
	r, graphStore := newTestRouter(t)

	w, _ := doJSON(t, r, http.MethodPut, "/api/canvas/viewport", map[string]interface{}{
		"x": 40.0, "y": 50.0, "zoom": 1.5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("viewport status = %d", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/canvas/zoom", map[string]interface{}{"direction": "in"})
	if w.Code != http.StatusOK {
		t.Fatalf("zoom status = %d", w.Code)
	}

	v := graphStore.Viewport()
	if v.X != 40 || v.Y != 50 {
		t.Fatalf("zoom step dropped the pushed pan offset: (%v,%v)", v.X, v.Y)
	}
	if v.Zoom < 1.59 || v.Zoom > 1.61 {
		t.Fatalf("zoom should step from the pushed factor: %v", v.Zoom)
	}
}

func TestLayoutEndpointResolvesAndCommits(t *testing.T) {
	r, graphStore := newTestRouter(t)

	w, resp := doJSON(t, r, http.MethodGet, "/api/nodes/start/layout", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	data, _ := resp.Data.(map[string]interface{})
	if data["layout"] == nil {
		t.Fatal("no layout payload")
	}
	if data["custom"] != false {
		t.Fatalf("untouched node should report the default layout: %v", data)
	}

	w, _ = doJSON(t, r, http.MethodPut, "/api/nodes/start/layout", map[string]interface{}{
		"textPos": map[string]float64{"x": 10, "y": 30},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("commit status = %d", w.Code)
	}
	node, _ := graphStore.Get("start")
	if node.TextPos == nil || node.TextPos.X != 10 || node.TextPos.Y != 30 {
		t.Fatalf("textPos = %+v", node.TextPos)
	}

	_, resp = doJSON(t, r, http.MethodGet, "/api/nodes/start/layout", nil)
	data, _ = resp.Data.(map[string]interface{})
	if data["custom"] != true {
		t.Fatalf("override should flip the custom flag: %v", data)
	}

	w, _ = doJSON(t, r, http.MethodGet, "/api/nodes/ghost/layout", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing node status = %d", w.Code)
	}
}

func TestLayoutEditSessionCommitsOnSave(t *testing.T) {
	r, graphStore := newTestRouter(t)

	w, resp := doJSON(t, r, http.MethodPost, "/api/nodes/start/layout/edit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("open status = %d", w.Code)
	}
	data, _ := resp.Data.(map[string]interface{})
	text, _ := data["textPos"].(map[string]interface{})
	if text["x"] != 5.0 || text["y"] != 60.0 {
		t.Fatalf("fresh session should seed the default text start: %v", text)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/nodes/start/layout/edit/pointer", map[string]interface{}{
		"phase": "down", "block": "text",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("down status = %d", w.Code)
	}
	w, resp = doJSON(t, r, http.MethodPost, "/api/nodes/start/layout/edit/pointer", map[string]interface{}{
		"phase": "move", "x": 600.0, "y": 450.0, "width": 800.0, "height": 600.0,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("move status = %d", w.Code)
	}
	data, _ = resp.Data.(map[string]interface{})
	text, _ = data["textPos"].(map[string]interface{})
	if text["x"] != 75.0 || text["y"] != 75.0 {
		t.Fatalf("drag should map pointer to surface percent: %v", text)
	}

	// Nothing reaches the node until the explicit save.
	node, _ := graphStore.Get("start")
	if node.TextPos != nil {
		t.Fatalf("drag leaked into the store before save: %+v", node.TextPos)
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/nodes/start/layout/edit/pointer", map[string]interface{}{"phase": "up"})
	if w.Code != http.StatusOK {
		t.Fatalf("up status = %d", w.Code)
	}
	w, _ = doJSON(t, r, http.MethodPost, "/api/nodes/start/layout/edit/save", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d", w.Code)
	}
	node, _ = graphStore.Get("start")
	if node.TextPos == nil || node.TextPos.X != 75 || node.TextPos.Y != 75 {
		t.Fatalf("save did not commit the dragged text position: %+v", node.TextPos)
	}
	if node.OptionsPos == nil || node.OptionsPos.X != 5 || node.OptionsPos.Y != 80 {
		t.Fatalf("save did not commit the untouched options position: %+v", node.OptionsPos)
	}

	// The session is gone after save.
	w, _ = doJSON(t, r, http.MethodPost, "/api/nodes/start/layout/edit/save", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second save status = %d", w.Code)
	}
}

func TestLayoutEditSessionDiscard(t *testing.T) {
	r, graphStore := newTestRouter(t)

	doJSON(t, r, http.MethodPost, "/api/nodes/start/layout/edit", nil)
	doJSON(t, r, http.MethodPost, "/api/nodes/start/layout/edit/pointer", map[string]interface{}{
		"phase": "down", "block": "options",
	})
	doJSON(t, r, http.MethodPost, "/api/nodes/start/layout/edit/pointer", map[string]interface{}{
		"phase": "move", "x": 100.0, "y": 100.0, "width": 400.0, "height": 400.0,
	})

	w, _ := doJSON(t, r, http.MethodDelete, "/api/nodes/start/layout/edit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("discard status = %d", w.Code)
	}
	node, _ := graphStore.Get("start")
	if node.TextPos != nil || node.OptionsPos != nil {
		t.Fatal("discarded session must not touch the node")
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/nodes/ghost/layout/edit", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("open on unknown node status = %d", w.Code)
	}
}

func TestConnectionsEndpointReportsRevision(t *testing.T) {
	r, graphStore := newTestRouter(t)

	w, resp := doJSON(t, r, http.MethodGet, "/api/canvas/connections", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	data, _ := resp.Data.(map[string]interface{})
	rev, _ := data["revision"].(float64)
	if uint64(rev) != graphStore.Revision() {
		t.Fatalf("revision = %v, store at %d", rev, graphStore.Revision())
	}
	curves, _ := data["curves"].([]interface{})
	if len(curves) == 0 {
		t.Fatal("seed story should have connection curves")
	}
}

func TestGenerationDisabledBehavior(t *testing.T) {
	r, graphStore := newTestRouter(t)
	before := graphStore.Revision()

	// Story generation fails without a configured provider and must leave
	// the graph untouched.
	w, _ := doJSON(t, r, http.MethodPost, "/api/generate/story", map[string]interface{}{
		"theme": "haunted lighthouse",
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("generate status = %d", w.Code)
	}
	if graphStore.Revision() != before {
		t.Fatal("failed generation must not touch the graph")
	}

	// Polish falls back to the original prose.
	node, _ := graphStore.Get("start")
	w, resp := doJSON(t, r, http.MethodPost, "/api/nodes/start/polish", map[string]interface{}{"style": "noir"})
	if w.Code != http.StatusOK {
		t.Fatalf("polish status = %d", w.Code)
	}
	data, _ := resp.Data.(map[string]interface{})
	if data["content"] != node.Content {
		t.Fatalf("polish changed text without a provider: %v", data["content"])
	}
}

func TestPlayerPreviewSession(t *testing.T) {
	r, _ := newTestRouter(t)

	w, resp := doJSON(t, r, http.MethodPost, "/api/player/start", map[string]interface{}{"startId": "start"})
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d", w.Code)
	}
	data, _ := resp.Data.(map[string]interface{})
	if data["state"] != "playing" || data["currentId"] != "start" {
		t.Fatalf("unexpected session: %v", data)
	}

	// Seed option o1 on start leads to n2, a dead end that still renders.
	w, resp = doJSON(t, r, http.MethodPost, "/api/player/choose", map[string]interface{}{"optionId": "o1"})
	if w.Code != http.StatusOK {
		t.Fatalf("choose status = %d", w.Code)
	}
	data, _ = resp.Data.(map[string]interface{})
	if data["currentId"] != "n2" || data["state"] != "playing" {
		t.Fatalf("choose did not move to n2: %v", data)
	}
	if data["deadEnd"] != true {
		t.Fatalf("n2 should be a dead end: %v", data)
	}

	// Restarting at an unknown node is a legal transition into ended.
	w, resp = doJSON(t, r, http.MethodPost, "/api/player/restart", map[string]interface{}{"startId": "ghost"})
	if w.Code != http.StatusOK {
		t.Fatalf("restart status = %d", w.Code)
	}
	data, _ = resp.Data.(map[string]interface{})
	if data["state"] != "ended" {
		t.Fatalf("expected ended state: %v", data)
	}

	w, resp = doJSON(t, r, http.MethodPost, "/api/player/close", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("close status = %d", w.Code)
	}
	data, _ = resp.Data.(map[string]interface{})
	if data["state"] != "closed" {
		t.Fatalf("expected closed state: %v", data)
	}
}
