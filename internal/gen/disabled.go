// internal/gen/disabled.go
package gen

import (
	"context"
	"errors"

	"github.com/douju/douju-editor/internal/models"
)

// ErrNotConfigured is returned by the disabled provider for every
// generation request.
var ErrNotConfigured = errors.New("content generation is not configured")

// disabledProvider stands in when no provider credentials are available.
// The editor stays fully usable; only generation requests fail.
type disabledProvider struct{}

// NewDisabled returns a provider that rejects all generation requests.
func NewDisabled() Provider {
	return &disabledProvider{}
}

func (d *disabledProvider) Initialize(map[string]string) error { return nil }
func (d *disabledProvider) GetName() string                    { return "disabled" }

func (d *disabledProvider) GenerateStoryGraph(context.Context, string, string, Topology) (map[string]*models.StoryNode, error) {
	return nil, ErrNotConfigured
}

func (d *disabledProvider) GenerateImage(context.Context, string, string) (string, error) {
	return "", ErrNotConfigured
}

func (d *disabledProvider) GenerateAvatar(context.Context, string, string, string) (string, error) {
	return "", ErrNotConfigured
}

func (d *disabledProvider) GenerateVideo(context.Context, string, string) (string, error) {
	return "", ErrNotConfigured
}

func (d *disabledProvider) GenerateAudio(context.Context, string, AudioKind) (string, error) {
	return "", ErrNotConfigured
}

// PolishText keeps the original prose when generation is unavailable.
func (d *disabledProvider) PolishText(_ context.Context, text, _ string) string {
	return text
}

func (d *disabledProvider) GenerateBranchChoices(context.Context, string, string) ([]BranchChoice, error) {
	return nil, ErrNotConfigured
}
