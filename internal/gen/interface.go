// internal/gen/interface.go
package gen

import (
	"context"
	"errors"

	"github.com/douju/douju-editor/internal/models"
)

var ErrUnknownProvider = errors.New("unknown generation provider")

// Topology selects the graph shape a story generator is asked for.
type Topology string

const (
	TopologyLinear    Topology = "linear"
	TopologySerial    Topology = "serial"
	TopologyWeb       Topology = "web"
	TopologyDivergent Topology = "divergent"
)

// AudioKind selects what sort of sound a scene wants.
type AudioKind string

const (
	AudioBGM AudioKind = "bgm"
	AudioSFX AudioKind = "sfx"
)

// BranchChoice is one suggested plot continuation.
type BranchChoice struct {
	Label   string `json:"label"`
	Content string `json:"content"`
}

// Provider is a black-box content generation backend. Every method may be
// slow and may fail for external reasons (network, quota, auth); callers
// treat a failure as "no result, change nothing". Asset-producing methods
// return a source reference (a URL or data URI) ready to store on a node.
type Provider interface {
	// Initialize configures the provider from key/value settings.
	Initialize(config map[string]string) error

	// GetName returns a human-readable provider name.
	GetName() string

	// GenerateStoryGraph produces a full node set for a theme, style and
	// requested topology.
	GenerateStoryGraph(ctx context.Context, theme, style string, topology Topology) (map[string]*models.StoryNode, error)

	// GenerateImage produces a scene background image.
	GenerateImage(ctx context.Context, sceneText, style string) (string, error)

	// GenerateAvatar produces a character portrait.
	GenerateAvatar(ctx context.Context, name, description, style string) (string, error)

	// GenerateVideo produces a scene background video. This may block for
	// minutes while the backend renders; cancel via ctx.
	GenerateVideo(ctx context.Context, sceneText, style string) (string, error)

	// GenerateAudio produces scene audio as a PCM data URI.
	GenerateAudio(ctx context.Context, sceneText string, kind AudioKind) (string, error)

	// PolishText rewrites narrative text in the given style. It never
	// fails outward: on any internal failure the input text is returned
	// unchanged.
	PolishText(ctx context.Context, text, style string) string

	// GenerateBranchChoices suggests follow-up plot branches for a scene.
	GenerateBranchChoices(ctx context.Context, sceneText, style string) ([]BranchChoice, error)
}

// ProviderFactory builds an unconfigured provider instance.
type ProviderFactory func() Provider

var providers = make(map[string]ProviderFactory)

// Register adds a provider factory under a name. Providers call this from
// their package init.
func Register(name string, factory ProviderFactory) {
	providers[name] = factory
}

// GetProvider builds and initializes the named provider.
func GetProvider(name string, config map[string]string) (Provider, error) {
	factory, exists := providers[name]
	if !exists {
		return nil, ErrUnknownProvider
	}
	provider := factory()
	if err := provider.Initialize(config); err != nil {
		return nil, err
	}
	return provider, nil
}

// ListProviders returns the names of all registered providers.
func ListProviders() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}
