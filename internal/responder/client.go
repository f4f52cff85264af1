package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prepnest/interview-gateway/internal/config"
	"github.com/prepnest/interview-gateway/internal/observability"
	"github.com/prepnest/interview-gateway/internal/resilience"
	"github.com/prepnest/interview-gateway/internal/store"
)

// Turn is one prior exchange in the conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnRequest carries everything one response generation needs. The client
// holds no conversation state between calls.
type TurnRequest struct {
	Interview *store.InterviewContext
	History   []Turn
	Utterance string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      chatMessage `json:"message"`
}

type chatCompletionsResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

// Client generates interviewer responses through an OpenAI-compatible
// chat-completions API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	breaker    *resilience.CircuitBreaker
	logger     zerolog.Logger
}

// NewClient creates a responder client from config
func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: time.Duration(cfg.ResponderTimeout) * time.Second},
		apiKey:     cfg.ResponderAPIKey,
		baseURL:    strings.TrimRight(cfg.ResponderBaseURL, "/"),
		model:      cfg.ResponderModel,
		breaker: resilience.NewCircuitBreaker(
			"responder",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		logger: observability.GetLogger().With().Str("component", "responder").Logger(),
	}
}

// Respond generates the interviewer's reply to req.Utterance. The greeting
// trigger with an empty history requests the opening greeting instead of
// answering a candidate utterance.
func (c *Client) Respond(ctx context.Context, req TurnRequest) (string, error) {
	start := time.Now()

	var answer string
	err := c.breaker.Call(func() error {
		var callErr error
		answer, callErr = c.complete(ctx, req)
		return callErr
	})

	observability.RecordResponderRequest(start, err)
	observability.UpdateCircuitBreakerState("responder", int(c.breaker.GetState()))
	if err != nil {
		return "", err
	}

	c.logger.Debug().
		Int("history_len", len(req.History)).
		Dur("latency", time.Since(start)).
		Msg("responder reply generated")
	return answer, nil
}

func (c *Client) complete(ctx context.Context, req TurnRequest) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("responder api key missing")
	}

	isGreeting := req.Utterance == GreetingTrigger && len(req.History) == 0

	messages := make([]chatMessage, 0, len(req.History)+2)
	messages = append(messages, chatMessage{
		Role:    "system",
		Content: buildSystemPrompt(req.Interview, isGreeting),
	})
	for _, turn := range req.History {
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}

	userMessage := req.Utterance
	if isGreeting {
		userMessage = "Please start the interview with a personalized greeting."
	}
	messages = append(messages, chatMessage{Role: "user", Content: userMessage})

	reqBody, err := json.Marshal(chatCompletionsRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("responder API error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var cr chatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("responder returned empty choices")
	}

	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}
