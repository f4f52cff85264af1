package tts

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/prepnest/interview-gateway/internal/observability"
)

// PlaybackController owns assistant speech delivery. At most one playback is
// active at a time: starting a new one cancels whatever is in flight, and
// Stop is always safe to call.
type PlaybackController struct {
	synth  Synthesizer
	sink   AudioSink
	opts   SynthesisOptions
	logger zerolog.Logger

	mu         sync.Mutex
	speaking   bool
	generation uint64
	cancel     context.CancelFunc

	// OnStart fires when audio delivery begins, OnEnd when it completes,
	// OnError when synthesis or delivery fails. OnEnd and OnError are
	// mutually exclusive per playback; neither fires for a cancelled one.
	OnStart func()
	OnEnd   func()
	OnError func(error)
}

// NewPlaybackController creates a playback controller delivering audio from
// synth to sink.
func NewPlaybackController(synth Synthesizer, sink AudioSink, opts SynthesisOptions) *PlaybackController {
	return &PlaybackController{
		synth:  synth,
		sink:   sink,
		opts:   opts,
		logger: observability.GetLogger().With().Str("component", "playback").Logger(),
	}
}

// Speak cancels any in-flight playback and starts speaking text. It returns
// once the playback is launched; completion is reported through the
// callbacks.
func (p *PlaybackController) Speak(ctx context.Context, text string) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.generation++
	gen := p.generation
	playCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.speaking = true
	p.mu.Unlock()

	go p.run(playCtx, gen, text)
	return nil
}

func (p *PlaybackController) run(ctx context.Context, gen uint64, text string) {
	audioData, err := p.synth.Synthesize(ctx, text, p.opts)

	// Stale or cancelled playbacks stay silent: the replacement playback
	// (or Stop) already owns the speaking flag and callbacks.
	if p.stale(gen) || ctx.Err() != nil {
		return
	}

	if err != nil {
		p.clearIfCurrent(gen)
		p.logger.Warn().Err(err).Msg("synthesis failed")
		observability.RecordError("synthesis_failed", "playback")
		if p.OnError != nil {
			p.OnError(err)
		}
		return
	}

	if p.OnStart != nil {
		p.OnStart()
	}

	// A Stop racing with synthesis completion must win before the audio
	// reaches the client, so the generation is checked again right before
	// the write.
	if p.stale(gen) || ctx.Err() != nil {
		return
	}

	err = p.sink.WriteAudio(audioData)

	if p.stale(gen) || ctx.Err() != nil {
		return
	}
	p.clearIfCurrent(gen)

	if err != nil {
		p.logger.Warn().Err(err).Msg("audio delivery failed")
		observability.RecordError("audio_delivery_failed", "playback")
		if p.OnError != nil {
			p.OnError(err)
		}
		return
	}

	if p.OnEnd != nil {
		p.OnEnd()
	}
}

func (p *PlaybackController) stale(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return gen != p.generation
}

// clearIfCurrent lowers the speaking flag for the active generation. A
// failed synthesis goes through here too, so the flag never stays raised
// after a playback that produced no audio.
func (p *PlaybackController) clearIfCurrent(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.generation {
		return
	}
	p.speaking = false
	p.cancel = nil
}

// Stop cancels any in-flight playback. Idempotent.
func (p *PlaybackController) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.speaking = false
	p.generation++
}

// IsSpeaking reports whether a playback is in flight, from the moment Speak
// is called until its callback fires or it is stopped.
func (p *PlaybackController) IsSpeaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking
}
