package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/prepnest/interview-gateway/internal/audio"
	"github.com/prepnest/interview-gateway/internal/config"
	"github.com/prepnest/interview-gateway/internal/observability"
	"github.com/prepnest/interview-gateway/internal/resilience"
)

const defaultAssemblyAIBaseURL = "wss://streaming.assemblyai.com/v3/ws"

// beginMessage announces a new streaming session
type beginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

// turnMessage carries a transcript update for the current turn
type turnMessage struct {
	Type            string `json:"type"`
	Transcript      string `json:"transcript"`
	TurnIsFormatted bool   `json:"turn_is_formatted"`
	TurnOrder       int    `json:"turn_order"`
	EndOfTurn       bool   `json:"end_of_turn"`
}

// terminationMessage closes out a streaming session
type terminationMessage struct {
	Type                   string  `json:"type"`
	AudioDurationSeconds   float64 `json:"audio_duration_seconds"`
	SessionDurationSeconds float64 `json:"session_duration_seconds"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// AssemblyAIClient implements StreamClient against the AssemblyAI v3
// realtime WebSocket API. Microphone PCM goes out as binary frames;
// transcript turns come back as JSON messages tagged formatted (final)
// or unformatted (partial).
type AssemblyAIClient struct {
	cfg     *config.Config
	baseURL string
	logger  zerolog.Logger

	mu         sync.RWMutex
	conn       *websocket.Conn
	connected  bool
	terminated bool

	events chan TranscriptEvent
	ctx    context.Context
	cancel context.CancelFunc
}

// NewAssemblyAIClient creates a new AssemblyAI streaming client
func NewAssemblyAIClient(cfg *config.Config) *AssemblyAIClient {
	return &AssemblyAIClient{
		cfg:     cfg,
		baseURL: defaultAssemblyAIBaseURL,
		logger:  observability.GetLogger().With().Str("component", "stt_assemblyai").Logger(),
		events:  make(chan TranscriptEvent, cfg.TranscriptBuffer),
	}
}

// Connect dials the streaming endpoint and starts the read loop.
func (c *AssemblyAIClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}
	if c.terminated {
		return fmt.Errorf("assemblyai client already terminated")
	}
	if c.cfg.AssemblyAIAPIKey == "" {
		return fmt.Errorf("assemblyai api key is empty")
	}

	params := url.Values{}
	params.Set("sample_rate", strconv.Itoa(c.cfg.SampleRate))
	params.Set("format_turns", "true")
	params.Set("encoding", "pcm_s16le")
	wsURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	headers := map[string][]string{"Authorization": {c.cfg.AssemblyAIAPIKey}}

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			c.logger.Error().Int("status", resp.StatusCode).Msg("assemblyai handshake rejected")
		}
		return fmt.Errorf("failed to connect to assemblyai: %w", err)
	}

	if c.cancel != nil {
		// A reconnect replaces the session context; release the old one.
		c.cancel()
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.conn = conn
	c.connected = true

	go c.readLoop(conn)

	c.logger.Info().Int("sample_rate", c.cfg.SampleRate).Msg("assemblyai streaming session connected")
	return nil
}

// readLoop consumes backend messages until the socket closes.
func (c *AssemblyAIClient) readLoop(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		wasTerminated := c.terminated
		c.connected = false
		c.mu.Unlock()

		if !wasTerminated {
			// Connection dropped out from under us. Reconnection is this
			// client's concern, not the orchestrator's.
			go c.attemptReconnect()
		} else {
			close(c.events)
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.mu.RLock()
			terminated := c.terminated
			c.mu.RUnlock()
			if !terminated && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn().Err(err).Msg("assemblyai read error")
				observability.RecordError("stt_read_error", "assemblyai")
			}
			return
		}

		c.handleMessage(message)
	}
}

func (c *AssemblyAIClient) handleMessage(message []byte) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &probe); err != nil {
		c.logger.Error().Err(err).Msg("failed to parse assemblyai message")
		return
	}

	switch probe.Type {
	case "Begin":
		var begin beginMessage
		if err := json.Unmarshal(message, &begin); err == nil {
			c.logger.Info().Str("stream_id", begin.ID).Msg("assemblyai session began")
		}

	case "Turn":
		var turn turnMessage
		if err := json.Unmarshal(message, &turn); err != nil {
			c.logger.Error().Err(err).Msg("failed to parse turn message")
			return
		}
		if turn.Transcript == "" {
			return
		}

		ev := TranscriptEvent{
			Text:    turn.Transcript,
			IsFinal: turn.TurnIsFormatted,
			TurnID:  strconv.Itoa(turn.TurnOrder),
		}
		observability.RecordTranscriptEvent(ev.IsFinal)

		select {
		case c.events <- ev:
		default:
			c.logger.Warn().Str("text", ev.Text).Msg("transcript channel full, dropping event")
		}

	case "Termination":
		var term terminationMessage
		if err := json.Unmarshal(message, &term); err == nil {
			c.logger.Info().
				Float64("audio_seconds", term.AudioDurationSeconds).
				Float64("session_seconds", term.SessionDurationSeconds).
				Msg("assemblyai session terminated")
		}

	case "Error":
		var errMsg errorMessage
		if err := json.Unmarshal(message, &errMsg); err == nil {
			c.logger.Error().Str("error", errMsg.Error).Msg("assemblyai reported error")
			observability.RecordError("stt_backend_error", "assemblyai")
		}

	default:
		c.logger.Debug().Str("type", probe.Type).Msg("unknown assemblyai message type")
	}
}

// SendFrame transmits one PCM frame as a binary message. No-op when the
// connection is not open.
func (c *AssemblyAIClient) SendFrame(pcm []int16) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return nil
	}

	payload := audio.EncodeInt16LE(pcm)
	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		observability.RecordError("stt_send_error", "assemblyai")
		return fmt.Errorf("failed to send audio frame: %w", err)
	}

	observability.RecordAudioForwarded(len(payload))
	return nil
}

// Events returns the transcript event channel.
func (c *AssemblyAIClient) Events() <-chan TranscriptEvent {
	return c.events
}

// Terminate sends the termination control message if the socket is open,
// then closes it. Idempotent.
func (c *AssemblyAIClient) Terminate() error {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return nil
	}
	c.terminated = true
	conn := c.conn
	connected := c.connected
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if connected && conn != nil {
		if err := conn.WriteJSON(map[string]string{"type": "Terminate"}); err != nil {
			c.logger.Warn().Err(err).Msg("failed to send terminate message")
		}
		if err := conn.Close(); err != nil {
			return fmt.Errorf("failed to close assemblyai connection: %w", err)
		}
		return nil
	}

	// Never connected: the read loop will not run, so close the channel here.
	close(c.events)
	return nil
}

// attemptReconnect redials after an unexpected disconnect.
func (c *AssemblyAIClient) attemptReconnect() {
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	reconnectCfg := &resilience.ReconnectConfig{
		MaxAttempts: c.cfg.ReconnectMaxAttempts,
		Backoff:     time.Duration(c.cfg.ReconnectBackoff) * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}

	err := resilience.Reconnect(ctx, func() error {
		c.mu.Lock()
		if c.terminated {
			c.mu.Unlock()
			return nil
		}
		c.connected = false
		c.mu.Unlock()
		return c.Connect(ctx)
	}, reconnectCfg)

	if err != nil {
		c.logger.Error().Err(err).Msg("failed to reconnect assemblyai stream")
		observability.RecordError("stt_reconnect_failed", "assemblyai")
		c.mu.Lock()
		alreadyTerminated := c.terminated
		c.terminated = true
		c.mu.Unlock()
		if !alreadyTerminated {
			close(c.events)
		}
	}
}
