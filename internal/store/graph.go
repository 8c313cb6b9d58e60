// internal/store/graph.go
package store

import (
	"sort"

	"github.com/douju/douju-editor/internal/models"
)

// ChangeKind classifies a store mutation for subscribers.
type ChangeKind string

const (
	ChangeNode       ChangeKind = "node"
	ChangeCharacter  ChangeKind = "character"
	ChangeViewport   ChangeKind = "viewport"
	ChangeBulk       ChangeKind = "bulk"
	ChangeReplaceAll ChangeKind = "replace_all"
)

// Change describes one applied mutation. ID is set for node/character
// changes and empty for whole-graph events.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	ID       string     `json:"id,omitempty"`
	Revision uint64     `json:"revision"`
}

// Subscriber receives change notifications synchronously, after the mutation
// has been applied. Subscribers must not mutate the store re-entrantly.
type Subscriber func(Change)

// OptionField names the editable fields of a StoryOption for index-based
// option updates.
type OptionField string

const (
	OptionLabel  OptionField = "label"
	OptionTarget OptionField = "targetId"
)

// NodePatch carries partial node updates for Upsert. Nil fields are left
// untouched. Options replaces the whole option list when set.
type NodePatch struct {
	Title      *string
	Type       *models.NodeType
	Content    *string
	MediaType  *models.MediaType
	MediaSrc   *string
	AudioSrc   *string
	X          *float64
	Y          *float64
	Options    *[]models.StoryOption
	TextPos    *models.ElementPosition
	OptionsPos *models.ElementPosition
}

// GraphStore owns the node and character collections of one open project.
// It is the single source of truth: every mutation is applied synchronously
// and then pushed to subscribers (apply-then-notify). The store itself has
// no locking; it assumes a single mutator at a time, and the owning service
// serializes access.
type GraphStore struct {
	nodes      map[string]*models.StoryNode
	characters map[string]*models.Character
	viewport   models.Viewport

	revision    uint64
	subscribers []Subscriber
	batching    bool
	batchDirty  bool
}

// NewGraphStore creates an empty store with a unit-zoom viewport.
func NewGraphStore() *GraphStore {
	return &GraphStore{
		nodes:      make(map[string]*models.StoryNode),
		characters: make(map[string]*models.Character),
		viewport:   models.Viewport{Zoom: 1},
	}
}

// Subscribe registers fn for change notifications. There is no unsubscribe;
// subscribers live as long as the store.
func (s *GraphStore) Subscribe(fn Subscriber) {
	s.subscribers = append(s.subscribers, fn)
}

// Revision returns a counter that increases with every applied mutation.
// Readers use it to memoize derived state such as connection curves.
func (s *GraphStore) Revision() uint64 {
	return s.revision
}

func (s *GraphStore) notify(kind ChangeKind, id string) {
	s.revision++
	if s.batching {
		s.batchDirty = true
		return
	}
	change := Change{Kind: kind, ID: id, Revision: s.revision}
	for _, fn := range s.subscribers {
		fn(change)
	}
}

// Batch applies fn with notifications suppressed, then emits a single bulk
// change if anything mutated. Used where several mutations must land before
// any re-render is observed, such as AI branch creation.
func (s *GraphStore) Batch(fn func()) {
	if s.batching {
		fn()
		return
	}
	s.batching = true
	s.batchDirty = false
	fn()
	s.batching = false
	if s.batchDirty {
		s.batchDirty = false
		change := Change{Kind: ChangeBulk, Revision: s.revision}
		for _, sub := range s.subscribers {
			sub(change)
		}
	}
}

// Get returns a deep copy of the node, or false if absent.
func (s *GraphStore) Get(id string) (*models.StoryNode, bool) {
	node, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return node.Clone(), true
}

// Has reports whether a node with the given id exists.
func (s *GraphStore) Has(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// Len returns the number of nodes in the graph.
func (s *GraphStore) Len() int {
	return len(s.nodes)
}

// NodeIDs returns all node ids in sorted order.
func (s *GraphStore) NodeIDs() []string {
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Create inserts a node, replacing any existing node with the same id.
func (s *GraphStore) Create(node *models.StoryNode) {
	if node == nil || node.ID == "" {
		return
	}
	s.nodes[node.ID] = node.Clone()
	s.notify(ChangeNode, node.ID)
}

// CreateMany inserts a batch of nodes as one observable change. Used by
// AI branch generation so the new targets land together.
func (s *GraphStore) CreateMany(nodes []*models.StoryNode) {
	if len(nodes) == 0 {
		return
	}
	s.Batch(func() {
		for _, node := range nodes {
			s.Create(node)
		}
	})
}

// Upsert merges patch fields into an existing node. A missing id is a
// silent no-op: creation paths must create first, then update.
func (s *GraphStore) Upsert(id string, patch NodePatch) {
	node, ok := s.nodes[id]
	if !ok {
		return
	}
	if patch.Title != nil {
		node.Title = *patch.Title
	}
	if patch.Type != nil {
		node.Type = *patch.Type
	}
	if patch.Content != nil {
		node.Content = *patch.Content
	}
	if patch.MediaType != nil {
		node.MediaType = *patch.MediaType
	}
	if patch.MediaSrc != nil {
		node.MediaSrc = *patch.MediaSrc
	}
	if patch.AudioSrc != nil {
		node.AudioSrc = *patch.AudioSrc
	}
	if patch.X != nil {
		node.X = *patch.X
	}
	if patch.Y != nil {
		node.Y = *patch.Y
	}
	if patch.Options != nil {
		opts := make([]models.StoryOption, len(*patch.Options))
		copy(opts, *patch.Options)
		node.Options = opts
	}
	if patch.TextPos != nil {
		p := patch.TextPos.Clamped()
		node.TextPos = &p
	}
	if patch.OptionsPos != nil {
		p := patch.OptionsPos.Clamped()
		node.OptionsPos = &p
	}
	s.notify(ChangeNode, id)
}

// Delete removes a node. Options elsewhere that target it become dead links,
// which readers tolerate.
func (s *GraphStore) Delete(id string) {
	if _, ok := s.nodes[id]; !ok {
		return
	}
	delete(s.nodes, id)
	s.notify(ChangeNode, id)
}

// MoveBy shifts a node's canvas position by (dx, dy). Missing ids are a
// silent no-op, matching Upsert.
func (s *GraphStore) MoveBy(id string, dx, dy float64) {
	node, ok := s.nodes[id]
	if !ok {
		return
	}
	node.X += dx
	node.Y += dy
	s.notify(ChangeNode, id)
}

// AddOption appends an option to a node's option list.
func (s *GraphStore) AddOption(nodeID string, opt models.StoryOption) {
	node, ok := s.nodes[nodeID]
	if !ok {
		return
	}
	node.Options = append(node.Options, opt)
	s.notify(ChangeNode, nodeID)
}

// UpdateOption sets one field of the option at idx. An out-of-range index is
// a caller error and is not signaled.
func (s *GraphStore) UpdateOption(nodeID string, idx int, field OptionField, value string) {
	node, ok := s.nodes[nodeID]
	if !ok {
		return
	}
	if idx < 0 || idx >= len(node.Options) {
		return
	}
	switch field {
	case OptionLabel:
		node.Options[idx].Label = value
	case OptionTarget:
		node.Options[idx].TargetID = value
	default:
		return
	}
	s.notify(ChangeNode, nodeID)
}

// RemoveOption deletes the option at idx, preserving the order of the rest.
func (s *GraphStore) RemoveOption(nodeID string, idx int) {
	node, ok := s.nodes[nodeID]
	if !ok {
		return
	}
	if idx < 0 || idx >= len(node.Options) {
		return
	}
	node.Options = append(node.Options[:idx], node.Options[idx+1:]...)
	s.notify(ChangeNode, nodeID)
}

// UpsertCharacter inserts or replaces a roster entry.
func (s *GraphStore) UpsertCharacter(ch *models.Character) {
	if ch == nil || ch.ID == "" {
		return
	}
	s.characters[ch.ID] = ch.Clone()
	s.notify(ChangeCharacter, ch.ID)
}

// DeleteCharacter removes a roster entry.
func (s *GraphStore) DeleteCharacter(id string) {
	if _, ok := s.characters[id]; !ok {
		return
	}
	delete(s.characters, id)
	s.notify(ChangeCharacter, id)
}

// GetCharacter returns a copy of the roster entry, or false if absent.
func (s *GraphStore) GetCharacter(id string) (*models.Character, bool) {
	ch, ok := s.characters[id]
	if !ok {
		return nil, false
	}
	return ch.Clone(), true
}

// SetViewport stores the canvas camera for persistence.
func (s *GraphStore) SetViewport(v models.Viewport) {
	s.viewport = v
	s.notify(ChangeViewport, "")
}

// Viewport returns the persisted canvas camera.
func (s *GraphStore) Viewport() models.Viewport {
	return s.viewport
}

// ReplaceAll swaps the whole graph atomically. Used by import and
// new-project flows; readers never observe a partial swap.
func (s *GraphStore) ReplaceAll(nodes map[string]*models.StoryNode, characters map[string]*models.Character, viewport models.Viewport) {
	s.nodes = make(map[string]*models.StoryNode, len(nodes))
	for id, node := range nodes {
		if node == nil {
			continue
		}
		s.nodes[id] = node.Clone()
	}
	s.characters = make(map[string]*models.Character, len(characters))
	for id, ch := range characters {
		if ch == nil {
			continue
		}
		s.characters[id] = ch.Clone()
	}
	if viewport.Zoom == 0 {
		viewport.Zoom = 1
	}
	s.viewport = viewport
	s.notify(ChangeReplaceAll, "")
}

// Snapshot returns a deep copy of the whole project state.
func (s *GraphStore) Snapshot() models.ProjectData {
	data := models.ProjectData{
		Nodes:      make(map[string]*models.StoryNode, len(s.nodes)),
		Characters: make(map[string]*models.Character, len(s.characters)),
		Viewport:   s.viewport,
	}
	for id, node := range s.nodes {
		data.Nodes[id] = node.Clone()
	}
	for id, ch := range s.characters {
		data.Characters[id] = ch.Clone()
	}
	return data
}

// ExportSnapshot returns the read-only shape consumed by the export
// collaborator.
func (s *GraphStore) ExportSnapshot(startID string) models.StorySnapshot {
	snap := models.StorySnapshot{
		Nodes:   make(map[string]*models.StoryNode, len(s.nodes)),
		StartID: startID,
	}
	for id, node := range s.nodes {
		snap.Nodes[id] = node.Clone()
	}
	return snap
}
