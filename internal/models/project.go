// internal/models/project.go
package models

import "fmt"

// Viewport is the persisted canvas camera: pan offset plus zoom factor.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// ProjectData is the file-interchange shape of a whole project. Import
// replaces the in-memory graph atomically; export serializes a snapshot of it.
type ProjectData struct {
	Nodes      map[string]*StoryNode `json:"nodes"`
	Characters map[string]*Character `json:"characters"`
	Viewport   Viewport              `json:"viewport"`
}

// StorySnapshot is the read-only shape handed to the export collaborator.
type StorySnapshot struct {
	Nodes   map[string]*StoryNode `json:"nodes"`
	StartID string                `json:"startId"`
}

// Validate checks the structural integrity of imported project data.
// Dangling option targets and unreachable nodes are legal; a missing node
// table, key/id mismatches and unknown type tags are not.
func (p *ProjectData) Validate() error {
	if p.Nodes == nil {
		return fmt.Errorf("project has no node table")
	}
	for id, node := range p.Nodes {
		if node == nil {
			return fmt.Errorf("node %q is null", id)
		}
		if node.ID == "" {
			return fmt.Errorf("node %q has an empty id", id)
		}
		if node.ID != id {
			return fmt.Errorf("node key %q does not match node id %q", id, node.ID)
		}
		if node.Type != "" && !node.Type.Valid() {
			return fmt.Errorf("node %q has unknown type %q", id, node.Type)
		}
		if node.MediaType != "" && !node.MediaType.Valid() {
			return fmt.Errorf("node %q has unknown media type %q", id, node.MediaType)
		}
		seen := make(map[string]bool, len(node.Options))
		for _, opt := range node.Options {
			if opt.ID == "" {
				return fmt.Errorf("node %q has an option with an empty id", id)
			}
			if seen[opt.ID] {
				return fmt.Errorf("node %q has duplicate option id %q", id, opt.ID)
			}
			seen[opt.ID] = true
		}
	}
	for id, ch := range p.Characters {
		if ch == nil {
			return fmt.Errorf("character %q is null", id)
		}
		if ch.ID != "" && ch.ID != id {
			return fmt.Errorf("character key %q does not match character id %q", id, ch.ID)
		}
	}
	return nil
}
