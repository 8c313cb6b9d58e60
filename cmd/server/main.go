// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/douju/douju-editor/internal/api"
	"github.com/douju/douju-editor/internal/app"
	"github.com/douju/douju-editor/internal/config"
	"github.com/douju/douju-editor/internal/di"
	"github.com/douju/douju-editor/internal/utils"
)

func main() {
	log.Println("starting story editor server...")

	// 1. Base configuration from the environment
	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	log.Printf("configuration loaded, port %s", baseConfig.Port)

	// 2. Directory layout
	createDirectories(baseConfig)

	// 3. Structured logging
	if err := utils.InitLogger(filepath.Join(baseConfig.LogDir, "editor.log")); err != nil {
		log.Printf("warning: file logging unavailable: %v", err)
	}

	// 4. Config system with persisted provider settings
	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		log.Fatalf("initialize configuration: %v", err)
	}

	// 5. Services, in dependency order
	if err := app.InitServices(); err != nil {
		log.Fatalf("initialize services: %v", err)
	}

	if err := performHealthCheck(); err != nil {
		log.Printf("warning: health check: %v", err)
	}

	// 6. Routes only consume registered services
	router, err := api.SetupRouter()
	if err != nil {
		log.Fatalf("set up routes: %v", err)
	}

	log.Printf("editor listening on http://localhost:%s", baseConfig.Port)
	runWithGracefulShutdown(router, baseConfig.Port)
}

// performHealthCheck verifies that the critical services made it into the
// container before the router starts pulling them out.
func performHealthCheck() error {
	container := di.GetContainer()

	criticalServices := []string{"store", "project", "editor", "export", "hub"}
	for _, serviceName := range criticalServices {
		if service := container.Get(serviceName); service == nil {
			return fmt.Errorf("critical service not registered: %s", serviceName)
		}
	}
	return nil
}

func runWithGracefulShutdown(router *gin.Engine, port string) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	app.Cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	log.Println("server stopped")
}

// createDirectories prepares the directory tree the editor writes into.
func createDirectories(cfg *config.Config) {
	dirs := []string{
		cfg.DataDir,
		filepath.Join(cfg.DataDir, "projects"),
		filepath.Join(cfg.DataDir, "exports"),
		cfg.LogDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("warning: create directory %s: %v", dir, err)
		}
	}
}
