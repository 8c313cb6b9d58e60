// internal/services/project_service.go
package services

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/douju/douju-editor/internal/errors"
	"github.com/douju/douju-editor/internal/models"
	"github.com/douju/douju-editor/internal/storage"
	"github.com/douju/douju-editor/internal/store"
	"github.com/douju/douju-editor/internal/utils"
)

const projectsDir = "projects"

// ProjectService manages whole-project operations: the seed project,
// import/export interchange and named saves on disk.
type ProjectService struct {
	Store   *store.GraphStore
	Storage *storage.FileStorage
	logger  *utils.Logger
}

// NewProjectService creates a project service.
func NewProjectService(s *store.GraphStore, fs *storage.FileStorage) *ProjectService {
	return &ProjectService{
		Store:   s,
		Storage: fs,
		logger:  utils.GetLogger(),
	}
}

// SeedNodes returns the built-in demo story every fresh project starts
// with.
func SeedNodes() map[string]*models.StoryNode {
	return map[string]*models.StoryNode{
		"start": {
			ID:        "start",
			Title:     "序章：苏醒",
			Type:      models.NodeScene,
			Content:   "你在一个冷冻舱中醒来。警报声在耳边回荡，空气中弥漫着臭氧和铁锈的味道。控制台闪烁着微弱的红光，你什么都想不起来。",
			MediaType: models.MediaNone,
			X:         100,
			Y:         300,
			Options: []models.StoryOption{
				{ID: "o1", Label: "检查控制台", TargetID: "n2"},
				{ID: "o2", Label: "强行打开舱门", TargetID: "n3"},
			},
		},
		"n2": {
			ID:        "n2",
			Title:     "系统日志",
			Type:      models.NodeDecision,
			Content:   "控制台屏幕闪烁不定。上面显示着 '致命错误：船体破损'。你发现了一段未发送的求救信号。",
			MediaType: models.MediaNone,
			X:         500,
			Y:         200,
			Options:   []models.StoryOption{},
		},
		"n3": {
			ID:        "n3",
			Title:     "黑暗走廊",
			Type:      models.NodeScene,
			Content:   "舱门在火花中滑开。走廊一片漆黑，远处的应急灯忽明忽暗，仿佛有什么东西在阴影中移动。",
			MediaType: models.MediaNone,
			X:         500,
			Y:         400,
			Options:   []models.StoryOption{},
		},
	}
}

// NewProject resets the store to the seed project.
func (s *ProjectService) NewProject() {
	s.Store.ReplaceAll(SeedNodes(), map[string]*models.Character{}, models.Viewport{X: 0, Y: 0, Zoom: 1})
	s.logger.Info("project reset to seed story", nil)
}

// Import replaces the whole in-memory project with the given JSON. The
// swap is atomic: a file that fails to parse or validate leaves the
// current project untouched.
func (s *ProjectService) Import(data []byte) error {
	var project models.ProjectData
	if err := json.Unmarshal(data, &project); err != nil {
		return apperrors.NewValidationError("project file is not valid JSON", err)
	}
	if err := project.Validate(); err != nil {
		return apperrors.NewValidationError("project file is structurally invalid", err)
	}

	s.Store.ReplaceAll(project.Nodes, project.Characters, project.Viewport)
	s.logger.Info("project imported", map[string]interface{}{
		"nodes":      len(project.Nodes),
		"characters": len(project.Characters),
	})
	return nil
}

// Export serializes the current project for interchange.
func (s *ProjectService) Export() ([]byte, error) {
	data, err := json.MarshalIndent(s.Store.Snapshot(), "", "  ")
	if err != nil {
		return nil, apperrors.NewProcessingError("serialize project", err)
	}
	return data, nil
}

// Save writes the current project to a named file under the projects
// directory.
func (s *ProjectService) Save(name string) error {
	if err := validateProjectName(name); err != nil {
		return err
	}
	if err := s.Storage.SaveJSONFile(projectsDir, name+".json", s.Store.Snapshot()); err != nil {
		return apperrors.NewProcessingError("save project", err)
	}
	s.logger.Info("project saved", map[string]interface{}{"name": name})
	return nil
}

// Load reads a named project from disk and swaps it in. A corrupt file
// leaves the current project untouched.
func (s *ProjectService) Load(name string) error {
	if err := validateProjectName(name); err != nil {
		return err
	}
	if !s.Storage.FileExists(projectsDir, name+".json") {
		return apperrors.NewNotFoundError(fmt.Sprintf("project %q does not exist", name), nil)
	}

	data, err := s.Storage.LoadTextFile(projectsDir, name+".json")
	if err != nil {
		return apperrors.NewProcessingError("read project file", err)
	}
	return s.Import(data)
}

// List returns the names of saved projects.
func (s *ProjectService) List() ([]string, error) {
	if !s.Storage.DirExists(projectsDir) {
		return []string{}, nil
	}
	files, err := s.Storage.ListFiles(projectsDir)
	if err != nil {
		return nil, apperrors.NewProcessingError("list projects", err)
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		if strings.HasSuffix(f, ".json") {
			names = append(names, strings.TrimSuffix(f, ".json"))
		}
	}
	return names, nil
}

// Delete removes a saved project file.
func (s *ProjectService) Delete(name string) error {
	if err := validateProjectName(name); err != nil {
		return err
	}
	if err := s.Storage.DeleteFile(projectsDir, name+".json"); err != nil {
		return apperrors.NewNotFoundError(fmt.Sprintf("project %q does not exist", name), err)
	}
	return nil
}

func validateProjectName(name string) error {
	if name == "" {
		return apperrors.NewValidationError("project name must not be empty", nil)
	}
	if strings.ContainsAny(name, `/\.`) {
		return apperrors.NewValidationError("project name must not contain path characters", nil)
	}
	return nil
}
