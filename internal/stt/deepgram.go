package stt

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/prepnest/interview-gateway/internal/audio"
	"github.com/prepnest/interview-gateway/internal/config"
	"github.com/prepnest/interview-gateway/internal/observability"
)

// deepgramCallbackHandler implements the SDK's LiveMessageCallback interface.
// It embeds the default handler and overrides only what we need.
type deepgramCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	onMessage func(*msginterfaces.MessageResponse)
	onError   func(*msginterfaces.ErrorResponse) error
}

func (h *deepgramCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	h.onMessage(message)
	return nil
}

func (h *deepgramCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	if h.onError != nil {
		return h.onError(errorResponse)
	}
	return h.DefaultCallbackHandler.Error(errorResponse)
}

// DeepgramClient implements StreamClient using Deepgram's streaming API.
// Selected with STT_PROVIDER=deepgram.
type DeepgramClient struct {
	cfg    *config.Config
	logger zerolog.Logger

	mu         sync.RWMutex
	client     *listenClient.WSCallback
	connected  bool
	terminated bool

	events chan TranscriptEvent
	cancel context.CancelFunc
}

// NewDeepgramClient creates a new Deepgram streaming client
func NewDeepgramClient(cfg *config.Config) *DeepgramClient {
	return &DeepgramClient{
		cfg:    cfg,
		logger: observability.GetLogger().With().Str("component", "stt_deepgram").Logger(),
		events: make(chan TranscriptEvent, cfg.TranscriptBuffer),
	}
}

// Connect starts a Deepgram streaming transcription session.
func (d *DeepgramClient) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return nil
	}
	if d.terminated {
		return fmt.Errorf("deepgram client already terminated")
	}

	clientCtx, cancel := context.WithCancel(context.Background())

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.cfg.DeepgramModel,
		Language:       d.cfg.DeepgramLanguage,
		Punctuate:      true,
		InterimResults: true,
		UtteranceEndMs: "1000",
		VadEvents:      true,
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     d.cfg.SampleRate,
	}

	callback := &deepgramCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		onMessage:              d.handleMessage,
		onError: func(errorResponse *msginterfaces.ErrorResponse) error {
			d.logger.Error().Interface("response", errorResponse).Msg("deepgram error")
			observability.RecordError("stt_backend_error", "deepgram")
			return nil
		},
	}

	client, err := listenClient.NewWSUsingCallback(
		clientCtx,
		d.cfg.DeepgramAPIKey,
		nil, // default client options
		tOptions,
		callback,
	)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create deepgram client: %w", err)
	}

	d.client = client
	d.cancel = cancel
	d.connected = true

	d.logger.Info().
		Str("model", d.cfg.DeepgramModel).
		Str("language", d.cfg.DeepgramLanguage).
		Int("sample_rate", d.cfg.SampleRate).
		Msg("deepgram streaming session connected")
	return nil
}

func (d *DeepgramClient) handleMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil {
		return
	}

	switch msg.Type {
	case "Results", "Message":
		if len(msg.Channel.Alternatives) == 0 {
			return
		}
		alt := msg.Channel.Alternatives[0]
		if alt.Transcript == "" {
			return
		}

		ev := TranscriptEvent{
			Text:    alt.Transcript,
			IsFinal: msg.IsFinal,
			TurnID:  strconv.FormatFloat(msg.Start, 'f', 3, 64),
		}
		observability.RecordTranscriptEvent(ev.IsFinal)
		d.deliver(ev)

	case "SpeechStarted", "UtteranceEnd", "Metadata":
		d.logger.Debug().Str("type", msg.Type).Msg("deepgram control message")

	default:
		d.logger.Debug().Str("type", msg.Type).Msg("unknown deepgram message type")
	}
}

// deliver hands one transcript event to the consumer. The SDK's callback
// goroutine can still fire after Finish, so the send is guarded by the
// terminated flag under the read lock; Terminate closes the channel under
// the write lock, which cannot overlap with a send in progress.
func (d *DeepgramClient) deliver(ev TranscriptEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.terminated {
		return
	}

	select {
	case d.events <- ev:
	default:
		d.logger.Warn().Str("text", ev.Text).Msg("transcript channel full, dropping event")
	}
}

// SendFrame transmits one PCM frame. No-op when the session is not open.
func (d *DeepgramClient) SendFrame(pcm []int16) error {
	d.mu.RLock()
	client := d.client
	connected := d.connected
	d.mu.RUnlock()

	if !connected || client == nil {
		return nil
	}

	payload := audio.EncodeInt16LE(pcm)
	if _, err := client.Write(payload); err != nil {
		observability.RecordError("stt_send_error", "deepgram")
		return fmt.Errorf("failed to send audio to deepgram: %w", err)
	}

	observability.RecordAudioForwarded(len(payload))
	return nil
}

// Events returns the transcript event channel.
func (d *DeepgramClient) Events() <-chan TranscriptEvent {
	return d.events
}

// Terminate finishes the streaming session. Idempotent.
func (d *DeepgramClient) Terminate() error {
	d.mu.Lock()
	if d.terminated {
		d.mu.Unlock()
		return nil
	}
	d.terminated = true
	client := d.client
	connected := d.connected
	cancel := d.cancel
	d.connected = false
	// Closing under the write lock: deliver holds the read lock for the
	// duration of a send and checks terminated first, so no send can land
	// on the closed channel.
	close(d.events)
	d.mu.Unlock()

	if connected && client != nil {
		client.Finish()
	}
	if cancel != nil {
		cancel()
	}

	d.logger.Info().Msg("deepgram streaming session terminated")
	return nil
}
