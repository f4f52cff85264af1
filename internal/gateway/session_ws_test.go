package gateway

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prepnest/interview-gateway/internal/config"
	"github.com/prepnest/interview-gateway/internal/stt"
)

func testGatewayConfig() *config.Config {
	return &config.Config{
		STTProvider:      "assemblyai",
		AssemblyAIAPIKey: "test-key",
		SampleRate:       16000,
		TranscriptBuffer: 16,
		SpeechAPIKey:     "test-key",
		SpeechAPIURL:     "http://localhost:0",
		SpeechVoice:      "Amy",
		SpeechEngine:     "neural",
		SpeechTimeout:    1,
		ResponderAPIKey:  "test-key",
		ResponderBaseURL: "http://localhost:0",
		ResponderModel:   "test-model",
		ResponderTimeout: 1,
		TurnCooldownMs:   500,
		MinTranscriptLen: 2,
	}
}

func dialSession(t *testing.T) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(HandleSessionWS(testGatewayConfig()))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial session socket: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func float32Payload(samples []float32) string {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func TestSessionWS_EndClosesConnection(t *testing.T) {
	conn := dialSession(t)

	if err := conn.WriteJSON(clientMessage{Type: "end"}); err != nil {
		t.Fatalf("Failed to send end: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg serverMessage
	for {
		if err := conn.ReadJSON(&msg); err != nil {
			// Server closed the socket after teardown.
			return
		}
	}
}

func TestSessionWS_ToleratesAudioAndControlMessages(t *testing.T) {
	conn := dialSession(t)

	// Audio before start is discarded by the forwarding predicate, not an
	// error. Mute/unmute and client-side errors are likewise absorbed.
	messages := []clientMessage{
		{Type: "audio", Payload: float32Payload([]float32{0.5, -0.5, 0.1, -0.1})},
		{Type: "audio", Payload: "not base64!!"},
		{Type: "mute"},
		{Type: "unmute"},
		{Type: "error", Message: "mic permission denied"},
		{Type: "bogus"},
		{Type: "end"},
	}
	for _, m := range messages {
		if err := conn.WriteJSON(m); err != nil {
			t.Fatalf("Failed to send %q message: %v", m.Type, err)
		}
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg serverMessage
	for {
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
	}
}

func TestSessionWS_RejectsPlainHTTP(t *testing.T) {
	server := httptest.NewServer(HandleSessionWS(testGatewayConfig()))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusSwitchingProtocols {
		t.Error("Expected non-upgrade request to be rejected")
	}
}

func TestNewStreamClient_ProviderSelection(t *testing.T) {
	cfg := testGatewayConfig()

	if _, ok := newStreamClient(cfg).(*stt.AssemblyAIClient); !ok {
		t.Error("Expected the AssemblyAI client by default")
	}

	cfg.STTProvider = "deepgram"
	cfg.DeepgramAPIKey = "test-key"
	if _, ok := newStreamClient(cfg).(*stt.DeepgramClient); !ok {
		t.Error("Expected the Deepgram client when selected")
	}
}
