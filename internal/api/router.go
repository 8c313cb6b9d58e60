// internal/api/router.go
package api

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/douju/douju-editor/internal/config"
	"github.com/douju/douju-editor/internal/di"
	"github.com/douju/douju-editor/internal/services"
	"github.com/douju/douju-editor/internal/store"
)

// SetupRouter wires the HTTP routes. Services come from the dependency
// injection container; the router never creates its own instances.
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	graphStore, ok := container.Get("store").(*store.GraphStore)
	if !ok {
		return nil, fmt.Errorf("graph store not initialized")
	}
	projectService, ok := container.Get("project").(*services.ProjectService)
	if !ok {
		return nil, fmt.Errorf("project service not initialized")
	}
	editorService, ok := container.Get("editor").(*services.EditorService)
	if !ok {
		return nil, fmt.Errorf("editor service not initialized")
	}
	exportService, ok := container.Get("export").(*services.ExportService)
	if !ok {
		return nil, fmt.Errorf("export service not initialized")
	}
	hub, ok := container.Get("hub").(*Hub)
	if !ok {
		return nil, fmt.Errorf("websocket hub not initialized")
	}

	handler := NewHandler(projectService, editorService, exportService, graphStore, hub)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))
	r.Use(RequestIDMiddleware())

	if cfg.StaticDir != "" {
		r.Static("/static", cfg.StaticDir)
	}

	// Editor views subscribe here for graph change pushes.
	r.GET("/ws/project", handler.ProjectWS)

	api := r.Group("/api")
	api.Use(DefaultRateLimit())
	{
		api.GET("/status", handler.Status)

		projectGroup := api.Group("/project")
		{
			projectGroup.GET("", handler.GetProject)
			projectGroup.GET("/raw", handler.RawSnapshot)
			projectGroup.POST("/new", handler.NewProject)
			projectGroup.POST("/import", handler.ImportProject)
			projectGroup.GET("/export", handler.ExportProject)
		}

		projectsGroup := api.Group("/projects")
		{
			projectsGroup.GET("", handler.ListProjects)
			projectsGroup.POST("/:name/save", handler.SaveProject)
			projectsGroup.POST("/:name/load", handler.LoadProject)
			projectsGroup.DELETE("/:name", handler.DeleteProject)
		}

		nodesGroup := api.Group("/nodes")
		{
			nodesGroup.POST("", handler.CreateNode)
			nodesGroup.PUT("/:id", handler.UpdateNode)
			nodesGroup.DELETE("/:id", handler.DeleteNode)
			nodesGroup.POST("/:id/move", handler.MoveNode)

			nodesGroup.POST("/:id/options", handler.AddOption)
			nodesGroup.PUT("/:id/options/:idx", handler.UpdateOption)
			nodesGroup.DELETE("/:id/options/:idx", handler.RemoveOption)

			nodesGroup.GET("/:id/layout", handler.GetLayout)
			nodesGroup.PUT("/:id/layout", handler.SetLayout)
			nodesGroup.POST("/:id/layout/edit", handler.OpenLayoutEdit)
			nodesGroup.POST("/:id/layout/edit/pointer", handler.LayoutPointer)
			nodesGroup.POST("/:id/layout/edit/save", handler.SaveLayoutEdit)
			nodesGroup.DELETE("/:id/layout/edit", handler.DiscardLayoutEdit)

			// Generation endpoints are metered separately.
			nodesGroup.POST("/:id/polish", GenerationRateLimit(), handler.PolishNode)
			nodesGroup.POST("/:id/branch", GenerationRateLimit(), handler.AutoBranch)
			nodesGroup.POST("/:id/image", MediaRateLimit(), handler.GenerateNodeImage)
			nodesGroup.POST("/:id/video", MediaRateLimit(), handler.GenerateNodeVideo)
			nodesGroup.POST("/:id/audio", MediaRateLimit(), handler.GenerateNodeAudio)
		}

		canvasGroup := api.Group("/canvas")
		{
			canvasGroup.GET("/connections", handler.GetConnections)
			canvasGroup.GET("/viewport", handler.GetViewport)
			canvasGroup.PUT("/viewport", handler.SetViewport)
			canvasGroup.POST("/zoom", handler.Zoom)
			canvasGroup.POST("/pointer", handler.Pointer)
			canvasGroup.POST("/select", handler.SelectNode)
		}

		charactersGroup := api.Group("/characters")
		{
			charactersGroup.PUT("", handler.SaveCharacter)
			charactersGroup.DELETE("/:id", handler.DeleteCharacter)
			charactersGroup.POST("/:id/avatar", MediaRateLimit(), handler.GenerateAvatar)
		}

		api.POST("/generate/story", GenerationRateLimit(), handler.GenerateStory)

		playerGroup := api.Group("/player")
		{
			playerGroup.GET("", handler.GetPreview)
			playerGroup.POST("/start", handler.StartPreview)
			playerGroup.POST("/choose", handler.ChoosePreview)
			playerGroup.POST("/restart", handler.RestartPreview)
			playerGroup.POST("/close", handler.ClosePreview)
		}

		exportGroup := api.Group("/export")
		{
			exportGroup.GET("/flutter", handler.ExportFlutter)
			exportGroup.POST("/flutter/save", handler.SaveFlutterExport)
		}

		settingsGroup := api.Group("/settings")
		{
			settingsGroup.GET("", handler.GetSettings)
			settingsGroup.PUT("", handler.UpdateSettings)
		}
	}

	return r, nil
}
