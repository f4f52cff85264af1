package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/prepnest/interview-gateway/internal/config"
	"github.com/prepnest/interview-gateway/internal/observability"
)

// speechRequest is the JSON payload for the speech synthesis API
type speechRequest struct {
	Text   string `json:"text"`
	Voice  string `json:"voice"`
	Engine string `json:"engine,omitempty"`
}

type speechErrorResponse struct {
	Error string `json:"error"`
}

// SpeechClient implements Synthesizer against an HTTP speech synthesis API.
// The API accepts a JSON request and returns the audio bytes directly.
type SpeechClient struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewSpeechClient creates a new speech synthesis client
func NewSpeechClient(cfg *config.Config) *SpeechClient {
	return &SpeechClient{
		apiKey: cfg.SpeechAPIKey,
		apiURL: cfg.SpeechAPIURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.SpeechTimeout) * time.Second,
		},
		logger: observability.GetLogger().With().Str("component", "tts").Logger(),
	}
}

// Synthesize converts text to audio bytes
func (c *SpeechClient) Synthesize(ctx context.Context, text string, opts SynthesisOptions) ([]byte, error) {
	start := time.Now()

	reqBody := speechRequest{
		Text:   text,
		Voice:  opts.Voice,
		Engine: opts.Engine,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		observability.RecordSynthesis(start, err)
		return nil, fmt.Errorf("failed to marshal synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		observability.RecordSynthesis(start, err)
		return nil, fmt.Errorf("failed to create synthesis request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordSynthesis(start, err)
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr speechErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			err = fmt.Errorf("speech API returned status %d: %s", resp.StatusCode, apiErr.Error)
		} else {
			err = fmt.Errorf("speech API returned status %d", resp.StatusCode)
		}
		observability.RecordSynthesis(start, err)
		return nil, err
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.RecordSynthesis(start, err)
		return nil, fmt.Errorf("failed to read synthesis response: %w", err)
	}

	if len(audioData) == 0 {
		err = fmt.Errorf("speech API returned empty audio")
		observability.RecordSynthesis(start, err)
		return nil, err
	}

	observability.RecordSynthesis(start, nil)
	c.logger.Debug().
		Int("text_len", len(text)).
		Int("audio_bytes", len(audioData)).
		Dur("latency", time.Since(start)).
		Msg("synthesis complete")

	return audioData, nil
}
