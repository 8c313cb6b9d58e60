// internal/player/audio.go
package player

// AudioHandle is one playing (or attempting to play) audio source.
type AudioHandle interface {
	// Stop halts playback and releases the source.
	Stop() error
}

// AudioOutput is the session-scoped audio sink. The playback engine owns
// exactly one output per session and closes it on teardown. Both Play
// methods start looped playback and must return promptly; acquisition
// that never resolves simply never produces sound.
type AudioOutput interface {
	// PlayPCM plays decoded raw samples through a loopable buffer.
	PlayPCM(samples []float32, sampleRate int) (AudioHandle, error)
	// PlayStream plays a standard streaming audio resource, looped.
	PlayStream(src string) (AudioHandle, error)
	// Close releases the output context. Further Play calls are invalid.
	Close() error
}
