package voice

import "context"

// Synthesizer produces raw PCM16LE mono samples for narration text.
// Implementations make exactly one remote attempt; an error means the
// caller should fall back to local speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (pcm []byte, sampleRate int, err error)
}

// LocalSpeaker is the platform speech facility used when remote synthesis
// fails. It is fire-and-forget: callers do not wait for playback and do
// not handle its errors beyond logging.
type LocalSpeaker interface {
	Speak(ctx context.Context, text string, rate float64) error
}
