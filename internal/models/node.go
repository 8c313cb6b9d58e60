// internal/models/node.go
package models

// NodeType tags how a node is presented in the editor.
// It is a presentation tag only: traversal never consults it, and a node
// with zero options is terminal regardless of the tag.
type NodeType string

const (
	NodeScene    NodeType = "scene"
	NodeDecision NodeType = "decision"
	NodeEnding   NodeType = "ending"
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeScene, NodeDecision, NodeEnding:
		return true
	}
	return false
}

// MediaType tags the visual media attached to a node.
type MediaType string

const (
	MediaNone  MediaType = "none"
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Valid reports whether t is one of the known media types.
func (t MediaType) Valid() bool {
	switch t {
	case MediaNone, MediaImage, MediaVideo:
		return true
	}
	return false
}

// ElementPosition is a percentage coordinate inside the playback surface.
// Both axes are always kept within [0,100].
type ElementPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Clamped returns the position with both axes forced into [0,100].
func (p ElementPosition) Clamped() ElementPosition {
	return ElementPosition{X: clampPercent(p.X), Y: clampPercent(p.Y)}
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// StoryOption is one labeled choice on a node. TargetID may be empty
// (unwired) or point at a node that no longer exists (dead link); both are
// tolerated everywhere, never treated as corruption.
type StoryOption struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	TargetID string `json:"targetId"`
}

// StoryNode is one node of the story graph. The ID is the sole addressing
// mechanism and is stable for the node's lifetime.
type StoryNode struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Type      NodeType      `json:"type"`
	Content   string        `json:"content"`
	MediaType MediaType     `json:"mediaType"`
	MediaSrc  string        `json:"mediaSrc"`
	AudioSrc  string        `json:"audioSrc"`
	X         float64       `json:"x"`
	Y         float64       `json:"y"`
	Options   []StoryOption `json:"options"`

	// Optional overrides for the playback overlay placement.
	// Absence means "use the default anchored layout".
	TextPos    *ElementPosition `json:"textPos,omitempty"`
	OptionsPos *ElementPosition `json:"optionsPos,omitempty"`
}

// IsTerminal reports whether the node offers no forward transition.
func (n *StoryNode) IsTerminal() bool {
	return len(n.Options) == 0
}

// HasCustomLayout reports whether the node carries author-placed overlay
// positions instead of the default anchored layout. Either block counts;
// each override is independent of the other.
func (n *StoryNode) HasCustomLayout() bool {
	return n.TextPos != nil || n.OptionsPos != nil
}

// Clone returns a deep copy of the node, safe to hand to readers.
func (n *StoryNode) Clone() *StoryNode {
	if n == nil {
		return nil
	}
	c := *n
	if n.Options != nil {
		c.Options = make([]StoryOption, len(n.Options))
		copy(c.Options, n.Options)
	}
	if n.TextPos != nil {
		p := *n.TextPos
		c.TextPos = &p
	}
	if n.OptionsPos != nil {
		p := *n.OptionsPos
		c.OptionsPos = &p
	}
	return &c
}
