package tts

import "context"

// SynthesisOptions selects the voice and engine tier for one synthesis call.
type SynthesisOptions struct {
	// Voice is the provider voice identifier
	Voice string

	// Engine is the synthesis tier, "neural" or "standard"
	Engine string
}

// Synthesizer converts text to playable audio.
type Synthesizer interface {
	// Synthesize converts text to audio bytes. The context bounds the call.
	Synthesize(ctx context.Context, text string, opts SynthesisOptions) ([]byte, error)
}

// AudioSink receives synthesized audio for delivery to the listener.
type AudioSink interface {
	// WriteAudio delivers one complete utterance of audio
	WriteAudio(data []byte) error
}
