// internal/player/player.go
package player

import (
	"github.com/douju/douju-editor/internal/models"
	"github.com/douju/douju-editor/internal/store"
)

// State is the traversal state of a playback session.
type State string

const (
	// StatePlaying means the session references a node id. The node may be
	// a dead end (no options) and still render; that is not Ended.
	StatePlaying State = "playing"
	// StateEnded is the terminal end-of-story screen, reached when the
	// current id does not resolve to a node. Only Restart leaves it.
	StateEnded State = "ended"
	// StateClosed means the session was torn down.
	StateClosed State = "closed"
)

// Player walks the story graph one node at a time. It reads the graph and
// never mutates it. Audio on node entry is fire-and-forget: a failed or
// blocked start degrades to silent playback, never to an error.
type Player struct {
	store  *store.GraphStore
	output AudioOutput

	state     State
	currentID string
	handle    AudioHandle
}

// NewPlayer opens a playback session at the given start node and performs
// the entry effects for it. A start id that resolves to no node yields a
// session already in the Ended state.
func NewPlayer(s *store.GraphStore, out AudioOutput, startID string) *Player {
	p := &Player{store: s, output: out}
	p.enter(startID)
	return p
}

// State returns the session state.
func (p *Player) State() State {
	return p.state
}

// CurrentID returns the id the session references. Meaningful only while
// playing.
func (p *Player) CurrentID() string {
	return p.currentID
}

// Current returns a copy of the node being rendered, or false when the
// session is not on a resolvable node.
func (p *Player) Current() (*models.StoryNode, bool) {
	if p.state != StatePlaying {
		return nil, false
	}
	return p.store.Get(p.currentID)
}

// AtDeadEnd reports whether the session sits on a node with no options.
// The node still renders; there is just nowhere to go from it.
func (p *Player) AtDeadEnd() bool {
	node, ok := p.Current()
	return ok && node.IsTerminal()
}

// Choose activates an option of the current node by id. An option with an
// empty target is inert. A target that does not resolve to a node is a
// legal transition into the Ended state, not an error.
func (p *Player) Choose(optionID string) {
	node, ok := p.Current()
	if !ok {
		return
	}
	for _, opt := range node.Options {
		if opt.ID != optionID {
			continue
		}
		if opt.TargetID == "" {
			return
		}
		p.enter(opt.TargetID)
		return
	}
}

// Restart re-enters the graph at the given start node. This is the only
// way out of the Ended state.
func (p *Player) Restart(startID string) {
	if p.state == StateClosed {
		return
	}
	p.enter(startID)
}

// Close releases all audio resources and the output context. It is
// idempotent; the first call's close error is returned.
func (p *Player) Close() error {
	if p.state == StateClosed {
		return nil
	}
	p.teardownAudio()
	p.state = StateClosed
	p.currentID = ""
	if p.output == nil {
		return nil
	}
	return p.output.Close()
}

// enter makes id the current node and runs the per-entry effects. The
// previous node's audio teardown is initiated before the new node's setup,
// so loops never overlap.
func (p *Player) enter(id string) {
	p.teardownAudio()
	p.currentID = id
	node, ok := p.store.Get(id)
	if !ok {
		p.state = StateEnded
		return
	}
	p.state = StatePlaying
	if node.AudioSrc != "" {
		p.setupAudio(node.AudioSrc)
	}
}

func (p *Player) teardownAudio() {
	if p.handle == nil {
		return
	}
	// Stop failures are swallowed; a source that will not stop cleanly
	// must still not block the transition.
	_ = p.handle.Stop()
	p.handle = nil
}

func (p *Player) setupAudio(src string) {
	if p.output == nil {
		return
	}
	if IsPCMSource(src) {
		samples, err := DecodePCM(src)
		if err != nil {
			return
		}
		if h, err := p.output.PlayPCM(samples, PCMSampleRate); err == nil {
			p.handle = h
		}
		return
	}
	// Autoplay-blocked starts land here as errors and are ignored.
	if h, err := p.output.PlayStream(src); err == nil {
		p.handle = h
	}
}
