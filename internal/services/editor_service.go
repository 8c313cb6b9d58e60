// internal/services/editor_service.go
package services

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/douju/douju-editor/internal/errors"
	"github.com/douju/douju-editor/internal/gen"
	"github.com/douju/douju-editor/internal/models"
	"github.com/douju/douju-editor/internal/store"
	"github.com/douju/douju-editor/internal/utils"
)

// Layout constants for nodes spawned next to an existing one.
const (
	branchOffsetX  = 350
	branchSpacingY = 200
)

// EditorService performs node and character edits, and drives the
// generation provider for content assistance. Every generation failure
// leaves the graph exactly as it was.
type EditorService struct {
	Store    *store.GraphStore
	Provider gen.Provider
	logger   *utils.Logger

	// injectable clock, ids embed a timestamp
	now func() time.Time
}

// NewEditorService creates an editor service. Provider may be nil; the
// generation operations then report a processing error.
func NewEditorService(s *store.GraphStore, provider gen.Provider) *EditorService {
	return &EditorService{
		Store:    s,
		Provider: provider,
		logger:   utils.GetLogger(),
		now:      time.Now,
	}
}

// CreateNode adds an empty scene node at a canvas position and returns it.
func (s *EditorService) CreateNode(title string, x, y float64) *models.StoryNode {
	node := &models.StoryNode{
		ID:        fmt.Sprintf("node_%d", s.now().UnixMilli()),
		Title:     title,
		Type:      models.NodeScene,
		MediaType: models.MediaNone,
		X:         x,
		Y:         y,
		Options:   []models.StoryOption{},
	}
	s.Store.Create(node)
	return node.Clone()
}

// UpdateNode applies a partial update to a node.
func (s *EditorService) UpdateNode(id string, patch store.NodePatch) error {
	if !s.Store.Has(id) {
		return apperrors.NewNotFoundError(fmt.Sprintf("node %q does not exist", id), nil)
	}
	s.Store.Upsert(id, patch)
	return nil
}

// DeleteNode removes a node. Options elsewhere that pointed at it become
// dangling, which the rest of the system tolerates.
func (s *EditorService) DeleteNode(id string) error {
	if !s.Store.Has(id) {
		return apperrors.NewNotFoundError(fmt.Sprintf("node %q does not exist", id), nil)
	}
	s.Store.Delete(id)
	return nil
}

// AddOption appends a fresh unwired option to a node and returns it.
func (s *EditorService) AddOption(nodeID string) (models.StoryOption, error) {
	if !s.Store.Has(nodeID) {
		return models.StoryOption{}, apperrors.NewNotFoundError(fmt.Sprintf("node %q does not exist", nodeID), nil)
	}
	opt := models.StoryOption{
		ID:    fmt.Sprintf("opt_%d", s.now().UnixMilli()),
		Label: "新选项",
	}
	s.Store.AddOption(nodeID, opt)
	return opt, nil
}

// UpdateOption edits one field of an option addressed by index.
func (s *EditorService) UpdateOption(nodeID string, idx int, field store.OptionField, value string) error {
	if !s.Store.Has(nodeID) {
		return apperrors.NewNotFoundError(fmt.Sprintf("node %q does not exist", nodeID), nil)
	}
	s.Store.UpdateOption(nodeID, idx, field, value)
	return nil
}

// RemoveOption deletes an option addressed by index.
func (s *EditorService) RemoveOption(nodeID string, idx int) error {
	if !s.Store.Has(nodeID) {
		return apperrors.NewNotFoundError(fmt.Sprintf("node %q does not exist", nodeID), nil)
	}
	s.Store.RemoveOption(nodeID, idx)
	return nil
}

// SaveCharacter creates or replaces a character.
func (s *EditorService) SaveCharacter(ch *models.Character) error {
	if ch == nil || ch.ID == "" {
		return apperrors.NewValidationError("character requires an id", nil)
	}
	s.Store.UpsertCharacter(ch)
	return nil
}

// DeleteCharacter removes a character.
func (s *EditorService) DeleteCharacter(id string) {
	s.Store.DeleteCharacter(id)
}

// GenerateProject asks the provider for a whole story graph and replaces
// the node set with it. The current graph survives any failure.
func (s *EditorService) GenerateProject(ctx context.Context, theme, style string, topology gen.Topology) error {
	if s.Provider == nil {
		return apperrors.NewProcessingError("no generation provider configured", nil)
	}
	nodes, err := s.Provider.GenerateStoryGraph(ctx, theme, style, topology)
	if err != nil {
		s.logger.Error("story graph generation failed", map[string]interface{}{"error": err.Error()})
		return apperrors.NewProcessingError("generate story graph", err)
	}
	if len(nodes) == 0 {
		return apperrors.NewProcessingError("provider returned an empty story graph", nil)
	}

	s.Store.ReplaceAll(nodes, map[string]*models.Character{}, models.Viewport{Zoom: 1})
	s.logger.Info("story graph generated", map[string]interface{}{"nodes": len(nodes), "topology": string(topology)})
	return nil
}

// PolishContent rewrites a node's text in the project style. The provider
// contract guarantees a usable string even on internal failure, so the
// node content is always updated.
func (s *EditorService) PolishContent(ctx context.Context, nodeID, style string) (string, error) {
	node, ok := s.Store.Get(nodeID)
	if !ok {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("node %q does not exist", nodeID), nil)
	}
	if s.Provider == nil {
		return node.Content, nil
	}

	polished := s.Provider.PolishText(ctx, node.Content, style)
	s.Store.Upsert(nodeID, store.NodePatch{Content: &polished})
	return polished, nil
}

// GenerateImage attaches a generated background image to a node.
func (s *EditorService) GenerateImage(ctx context.Context, nodeID, style string) error {
	return s.generateMedia(ctx, nodeID, style, models.MediaImage)
}

// GenerateVideo attaches a generated background video to a node.
func (s *EditorService) GenerateVideo(ctx context.Context, nodeID, style string) error {
	return s.generateMedia(ctx, nodeID, style, models.MediaVideo)
}

func (s *EditorService) generateMedia(ctx context.Context, nodeID, style string, kind models.MediaType) error {
	node, ok := s.Store.Get(nodeID)
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("node %q does not exist", nodeID), nil)
	}
	if s.Provider == nil {
		return apperrors.NewProcessingError("no generation provider configured", nil)
	}

	var src string
	var err error
	if kind == models.MediaVideo {
		src, err = s.Provider.GenerateVideo(ctx, node.Content, style)
	} else {
		src, err = s.Provider.GenerateImage(ctx, node.Content, style)
	}
	if err != nil {
		s.logger.Error("media generation failed", map[string]interface{}{"node": nodeID, "kind": string(kind), "error": err.Error()})
		return apperrors.NewProcessingError("generate media", err)
	}

	s.Store.Upsert(nodeID, store.NodePatch{MediaType: &kind, MediaSrc: &src})
	return nil
}

// GenerateAudio attaches generated scene audio to a node.
func (s *EditorService) GenerateAudio(ctx context.Context, nodeID string, kind gen.AudioKind) error {
	node, ok := s.Store.Get(nodeID)
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("node %q does not exist", nodeID), nil)
	}
	if s.Provider == nil {
		return apperrors.NewProcessingError("no generation provider configured", nil)
	}

	src, err := s.Provider.GenerateAudio(ctx, node.Content, kind)
	if err != nil {
		s.logger.Error("audio generation failed", map[string]interface{}{"node": nodeID, "error": err.Error()})
		return apperrors.NewProcessingError("generate audio", err)
	}

	s.Store.Upsert(nodeID, store.NodePatch{AudioSrc: &src})
	return nil
}

// GenerateAvatar attaches a generated portrait to a character.
func (s *EditorService) GenerateAvatar(ctx context.Context, characterID, style string) error {
	ch, ok := s.Store.GetCharacter(characterID)
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("character %q does not exist", characterID), nil)
	}
	if s.Provider == nil {
		return apperrors.NewProcessingError("no generation provider configured", nil)
	}

	src, err := s.Provider.GenerateAvatar(ctx, ch.Name, ch.Description, style)
	if err != nil {
		s.logger.Error("avatar generation failed", map[string]interface{}{"character": characterID, "error": err.Error()})
		return apperrors.NewProcessingError("generate avatar", err)
	}

	ch.AvatarSrc = src
	s.Store.UpsertCharacter(ch)
	return nil
}

// AutoBranch asks the provider for follow-up plot choices and spawns one
// linked node per choice next to the parent: a column offset to the
// right, fanned vertically and centered on the parent. Node creation and
// the parent's new options land in a single change notification.
func (s *EditorService) AutoBranch(ctx context.Context, nodeID, style string) ([]*models.StoryNode, error) {
	node, ok := s.Store.Get(nodeID)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("node %q does not exist", nodeID), nil)
	}
	if s.Provider == nil {
		return nil, apperrors.NewProcessingError("no generation provider configured", nil)
	}

	choices, err := s.Provider.GenerateBranchChoices(ctx, node.Content, style)
	if err != nil {
		s.logger.Error("branch generation failed", map[string]interface{}{"node": nodeID, "error": err.Error()})
		return nil, apperrors.NewProcessingError("generate branch choices", err)
	}
	if len(choices) == 0 {
		return nil, nil
	}

	stamp := s.now().UnixMilli()
	startY := node.Y - float64((len(choices)-1)*branchSpacingY)/2

	newNodes := make([]*models.StoryNode, 0, len(choices))
	newOptions := append([]models.StoryOption{}, node.Options...)
	for i, choice := range choices {
		newNodeID := fmt.Sprintf("node_%d_%d", stamp, i)
		newNodes = append(newNodes, &models.StoryNode{
			ID:        newNodeID,
			Title:     choice.Label,
			Type:      models.NodeScene,
			Content:   choice.Content,
			MediaType: models.MediaNone,
			X:         node.X + branchOffsetX,
			Y:         startY + float64(i*branchSpacingY),
			Options:   []models.StoryOption{},
		})
		newOptions = append(newOptions, models.StoryOption{
			ID:       fmt.Sprintf("opt_%d_%d", stamp, i),
			Label:    choice.Label,
			TargetID: newNodeID,
		})
	}

	s.Store.Batch(func() {
		s.Store.CreateMany(newNodes)
		s.Store.Upsert(nodeID, store.NodePatch{Options: &newOptions})
	})

	s.logger.Info("auto branch created", map[string]interface{}{"node": nodeID, "branches": len(newNodes)})

	out := make([]*models.StoryNode, len(newNodes))
	for i, n := range newNodes {
		out[i] = n.Clone()
	}
	return out, nil
}
