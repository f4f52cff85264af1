package gateway

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/prepnest/interview-gateway/internal/audio"
	"github.com/prepnest/interview-gateway/internal/config"
	"github.com/prepnest/interview-gateway/internal/observability"
	"github.com/prepnest/interview-gateway/internal/responder"
	"github.com/prepnest/interview-gateway/internal/session"
	"github.com/prepnest/interview-gateway/internal/store"
	"github.com/prepnest/interview-gateway/internal/stt"
	"github.com/prepnest/interview-gateway/internal/tts"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks belong to the reverse proxy in front of this service.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// clientMessage is one control message from the browser.
type clientMessage struct {
	Type        string `json:"type"`
	InterviewID string `json:"interview_id,omitempty"`
	// Payload carries base64 float32 PCM for audio messages
	Payload string `json:"payload,omitempty"`
	Message string `json:"message,omitempty"`
}

// serverMessage is one message to the browser.
type serverMessage struct {
	Type      string     `json:"type"`
	Role      string     `json:"role,omitempty"`
	Text      string     `json:"text,omitempty"`
	Partial   bool       `json:"partial,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	State     string     `json:"state,omitempty"`
	// Payload carries base64 synthesized audio for audio messages
	Payload string `json:"payload,omitempty"`
	Message string `json:"message,omitempty"`
}

// InterviewSession binds one browser connection to a full session pipeline:
// capture, transcription stream, orchestrator, responder, playback.
type InterviewSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	capture  *audio.CaptureSource
	stream   stt.StreamClient
	playback *tts.PlaybackController
	orch     *session.Orchestrator
	life     *session.Lifecycle
	logger   zerolog.Logger
}

func newStreamClient(cfg *config.Config) stt.StreamClient {
	if cfg.STTProvider == "deepgram" {
		return stt.NewDeepgramClient(cfg)
	}
	return stt.NewAssemblyAIClient(cfg)
}

// newInterviewSession assembles the pipeline for one connection. Every
// collaborator is owned by this session; nothing is shared across
// connections.
func newInterviewSession(conn *websocket.Conn, cfg *config.Config) *InterviewSession {
	s := &InterviewSession{
		conn:   conn,
		stream: newStreamClient(cfg),
		logger: observability.GetLogger().With().
			Str("component", "gateway").
			Str("correlation_id", observability.NewCorrelationID()).
			Logger(),
	}

	s.playback = tts.NewPlaybackController(
		tts.NewSpeechClient(cfg),
		s,
		tts.SynthesisOptions{Voice: cfg.SpeechVoice, Engine: cfg.SpeechEngine},
	)

	respClient := responder.NewClient(cfg)
	s.orch = session.NewOrchestrator(cfg, respClient, s.playback)
	s.playback.OnEnd = s.orch.HandlePlaybackEnd
	s.playback.OnError = func(error) { s.orch.HandlePlaybackEnd() }
	s.orch.OnStateChange = s.sendState
	s.orch.OnMessage = s.sendTranscript

	// 50ms frames at the session sample rate
	frameSize := cfg.SampleRate / 20
	s.capture = audio.NewCaptureSource(frameSize, nil, s.orch.ShouldForwardAudio, s.stream.SendFrame)

	s.life = session.NewLifecycle(
		s.orch,
		s.stream,
		s.playback,
		respClient,
		store.NewMetadataClient(cfg),
		store.NewConversationSink(cfg),
	)
	return s
}

// HandleSessionWS upgrades a browser connection and runs the interview
// session until either side ends it.
func HandleSessionWS(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger := observability.GetLogger()
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		s := newInterviewSession(conn, cfg)
		s.logger.Info().Str("remote", r.RemoteAddr).Msg("interview session connected")
		s.run(r.Context())
	}
}

func (s *InterviewSession) run(ctx context.Context) {
	defer s.conn.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readPump(ctx) })
	g.Go(func() error { return s.transcriptPump(ctx) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		s.logger.Warn().Err(err).Msg("session pump exited with error")
	}

	// Teardown runs exactly once regardless of which pump failed first.
	// Lifecycle.End is idempotent, so an explicit client "end" already
	// handled is a no-op here.
	endCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.life.End(endCtx); err != nil {
		s.logger.Warn().Err(err).Msg("session teardown failed")
	}
	s.logger.Info().Msg("interview session closed")
}

// readPump consumes browser control messages until the socket closes or the
// client ends the session.
func (s *InterviewSession) readPump(ctx context.Context) error {
	for {
		var msg clientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn().Err(err).Msg("websocket read error")
			}
			return nil
		}

		switch msg.Type {
		case "start":
			// Startup fetches metadata and the greeting over the network;
			// the read pump must keep draining while that happens.
			go func(interviewID string) {
				if err := s.life.Start(ctx, interviewID); err != nil {
					s.logger.Error().Err(err).Msg("session start failed")
					s.sendError("failed to start session")
				}
			}(msg.InterviewID)

		case "audio":
			raw, err := base64.StdEncoding.DecodeString(msg.Payload)
			if err != nil {
				s.logger.Debug().Err(err).Msg("bad audio payload")
				continue
			}
			if err := s.capture.Push(raw); err != nil {
				s.logger.Debug().Err(err).Msg("capture push failed")
			}

		case "mute":
			s.orch.SetMicMuted(true)

		case "unmute":
			s.orch.SetMicMuted(false)

		case "error":
			// Client-side failures (mic permission denied) degrade the
			// session but never tear it down.
			s.logger.Warn().Str("message", msg.Message).Msg("client reported error")

		case "end":
			return nil

		default:
			s.logger.Debug().Str("type", msg.Type).Msg("unknown client message type")
		}
	}
}

// transcriptPump feeds transcription events to the orchestrator and fans
// partial hypotheses out as live captions.
func (s *InterviewSession) transcriptPump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.stream.Events():
			if !ok {
				return nil
			}
			if !ev.IsFinal {
				s.send(serverMessage{Type: "transcript", Role: session.RoleUser, Text: ev.Text, Partial: true})
			}
			s.orch.HandleTranscript(ev)
		}
	}
}

// WriteAudio delivers synthesized assistant speech to the browser. This is
// the playback controller's AudioSink.
func (s *InterviewSession) WriteAudio(data []byte) error {
	return s.send(serverMessage{Type: "audio", Payload: base64.StdEncoding.EncodeToString(data)})
}

func (s *InterviewSession) sendState(state session.State) {
	s.send(serverMessage{Type: "state", State: state.String()})
}

func (s *InterviewSession) sendTranscript(msg session.TurnMessage) {
	ts := msg.Timestamp
	s.send(serverMessage{Type: "transcript", Role: msg.Role, Text: msg.Content, Timestamp: &ts})
}

func (s *InterviewSession) sendError(message string) {
	s.send(serverMessage{Type: "error", Message: message})
}

func (s *InterviewSession) send(msg serverMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}
