// internal/app/app.go
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/douju/douju-editor/internal/api"
	"github.com/douju/douju-editor/internal/config"
	"github.com/douju/douju-editor/internal/di"
	"github.com/douju/douju-editor/internal/gen"
	_ "github.com/douju/douju-editor/internal/gen/providers/gemini"
	"github.com/douju/douju-editor/internal/services"
	"github.com/douju/douju-editor/internal/storage"
	"github.com/douju/douju-editor/internal/store"
	"github.com/douju/douju-editor/internal/utils"
	"github.com/douju/douju-editor/internal/watcher"
)

// InitServices builds every service in dependency order and registers it
// with the DI container. Must run after config.InitConfig.
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()
	logger := utils.GetLogger()

	// 1. Storage layer
	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	container.Register("storage", fileStorage)

	// 2. In-memory graph store
	graphStore := store.NewGraphStore()
	container.Register("store", graphStore)

	// 3. Generation provider. A missing key disables generation but
	// never blocks the editor itself.
	provider, err := gen.GetProvider(cfg.GenProvider, cfg.GenConfig)
	if err != nil {
		logger.Warn("generation provider unavailable", map[string]interface{}{
			"provider": cfg.GenProvider,
			"error":    err.Error(),
		})
		provider = gen.NewDisabled()
	}
	container.Register("gen", provider)

	// 4. Domain services
	projectService := services.NewProjectService(graphStore, fileStorage)
	container.Register("project", projectService)

	editorService := services.NewEditorService(graphStore, provider)
	container.Register("editor", editorService)

	exportService := services.NewExportService(graphStore, fileStorage)
	container.Register("export", exportService)

	// 5. WebSocket hub, fed by store change notifications
	hub := api.NewHub()
	graphStore.Subscribe(hub.BroadcastChange)
	container.Register("hub", hub)

	// 6. Watcher over saved project files for external edits
	projectsDir := filepath.Join(cfg.DataDir, "projects")
	if err := os.MkdirAll(projectsDir, 0755); err != nil {
		return fmt.Errorf("create projects directory: %w", err)
	}
	projectWatcher, err := watcher.NewProjectWatcher(watcher.Config{
		Dir: projectsDir,
		OnChange: func(e watcher.Event) {
			logger.Info("saved project changed on disk", map[string]interface{}{
				"project": e.Name,
				"change":  e.Type,
			})
			// Connected views decide whether to offer a reload.
			hub.BroadcastEvent("project_file_changed", map[string]interface{}{
				"project": e.Name,
				"change":  e.Type,
			})
		},
	})
	if err != nil {
		return fmt.Errorf("create project watcher: %w", err)
	}
	if err := projectWatcher.Start(); err != nil {
		return fmt.Errorf("start project watcher: %w", err)
	}
	container.Register("watcher", projectWatcher)

	// Seed the editor with the demo story so a fresh start is never blank.
	projectService.NewProject()

	logger.Info("services initialized", map[string]interface{}{
		"count":    len(container.GetNames()),
		"provider": provider.GetName(),
	})
	return nil
}

// Cleanup stops background components. Safe to call once during shutdown.
func Cleanup() {
	container := di.GetContainer()

	if pw, ok := container.Get("watcher").(*watcher.ProjectWatcher); ok && pw.IsRunning() {
		if err := pw.Stop(); err != nil {
			utils.GetLogger().Warn("stop project watcher", map[string]interface{}{"error": err.Error()})
		}
	}
	if hub, ok := container.Get("hub").(*api.Hub); ok {
		hub.Shutdown()
	}
}
