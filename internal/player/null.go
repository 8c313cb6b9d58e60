// internal/player/null.go
package player

// NullOutput is a silent AudioOutput for headless playback sessions, such
// as server-side story preview. It tracks the active source so callers can
// inspect what would be playing.
type NullOutput struct {
	current string
}

// NewNullOutput creates a silent output.
func NewNullOutput() *NullOutput {
	return &NullOutput{}
}

type nullHandle struct {
	out *NullOutput
	src string
}

func (h *nullHandle) Stop() error {
	if h.out.current == h.src {
		h.out.current = ""
	}
	return nil
}

// PlayPCM pretends to loop a decoded buffer.
func (n *NullOutput) PlayPCM(samples []float32, sampleRate int) (AudioHandle, error) {
	n.current = "pcm"
	return &nullHandle{out: n, src: "pcm"}, nil
}

// PlayStream pretends to loop a streaming source.
func (n *NullOutput) PlayStream(src string) (AudioHandle, error) {
	n.current = src
	return &nullHandle{out: n, src: src}, nil
}

// Close releases nothing.
func (n *NullOutput) Close() error {
	n.current = ""
	return nil
}

// CurrentSource returns the source that would be audible right now, "pcm"
// for buffer playback and "" for silence.
func (n *NullOutput) CurrentSource() string {
	return n.current
}
