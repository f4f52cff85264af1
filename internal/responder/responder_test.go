package responder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prepnest/interview-gateway/internal/config"
	"github.com/prepnest/interview-gateway/internal/resilience"
	"github.com/prepnest/interview-gateway/internal/store"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		ResponderAPIKey:            "test-key",
		ResponderBaseURL:           server.URL,
		ResponderModel:             "gpt-oss-120b",
		ResponderTimeout:           5,
		CircuitBreakerMaxFailures:  5,
		CircuitBreakerResetTimeout: 30,
	}
	return NewClient(cfg)
}

func completionResponse(content string) string {
	resp := chatCompletionsResponse{
		Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: content}}},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestRespond_SendsHistoryAndUtterance(t *testing.T) {
	var gotReq chatCompletionsRequest
	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(completionResponse("  Tell me about your last project.  ")))
	})

	answer, err := client.Respond(context.Background(), TurnRequest{
		Interview: &store.InterviewContext{JobTitle: "Backend Engineer", CompanyName: "Acme"},
		History: []Turn{
			{Role: "assistant", Content: "What's your name?"},
			{Role: "user", Content: "I'm Sam."},
		},
		Utterance: "I have five years of Go experience.",
	})
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if answer != "Tell me about your last project." {
		t.Errorf("Expected trimmed answer, got %q", answer)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Unexpected auth header %q", gotAuth)
	}

	// system + 2 history turns + new utterance
	if len(gotReq.Messages) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" {
		t.Errorf("Expected system message first, got %q", gotReq.Messages[0].Role)
	}
	if !strings.Contains(gotReq.Messages[0].Content, "Backend Engineer at Acme") {
		t.Error("Expected interview context in system prompt")
	}
	if last := gotReq.Messages[3]; last.Role != "user" || last.Content != "I have five years of Go experience." {
		t.Errorf("Unexpected final message: %+v", last)
	}
}

func TestRespond_GreetingTrigger(t *testing.T) {
	var gotReq chatCompletionsRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(completionResponse("Welcome! What's your name?")))
	})

	_, err := client.Respond(context.Background(), TurnRequest{
		Interview: &store.InterviewContext{JobTitle: "Data Analyst", CompanyName: "Initech"},
		Utterance: GreetingTrigger,
	})
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	system := gotReq.Messages[0].Content
	if !strings.Contains(system, "START of the interview") {
		t.Error("Expected greeting instructions in system prompt")
	}
	if !strings.Contains(system, "Data Analyst") {
		t.Error("Expected job title in greeting instructions")
	}
	if last := gotReq.Messages[len(gotReq.Messages)-1]; last.Content == GreetingTrigger {
		t.Error("Greeting trigger must not be sent as the user utterance")
	}
}

func TestRespond_GreetingTriggerWithHistoryIsNotGreeting(t *testing.T) {
	var gotReq chatCompletionsRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(completionResponse("ok")))
	})

	client.Respond(context.Background(), TurnRequest{
		History:   []Turn{{Role: "user", Content: "hi"}},
		Utterance: GreetingTrigger,
	})

	if strings.Contains(gotReq.Messages[0].Content, "START of the interview") {
		t.Error("Greeting instructions must require an empty history")
	}
}

func TestRespond_ResumeIncludedWhenPresent(t *testing.T) {
	var gotReq chatCompletionsRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(completionResponse("ok")))
	})

	client.Respond(context.Background(), TurnRequest{
		Interview: &store.InterviewContext{
			JobTitle:    "SRE",
			CompanyName: "Globex",
			ResumeText:  "Ten years running Kubernetes clusters.",
		},
		Utterance: "hello",
	})

	if !strings.Contains(gotReq.Messages[0].Content, "CANDIDATE RESUME") {
		t.Error("Expected resume block in system prompt")
	}
	if !strings.Contains(gotReq.Messages[0].Content, "Kubernetes clusters") {
		t.Error("Expected resume text in system prompt")
	}
}

func TestRespond_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := client.Respond(context.Background(), TurnRequest{Utterance: "hi"}); err == nil {
		t.Error("Expected error for 502 status")
	}
}

func TestRespond_EmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	if _, err := client.Respond(context.Background(), TurnRequest{Utterance: "hi"}); err == nil {
		t.Error("Expected error for empty choices")
	}
}

func TestRespond_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 5; i++ {
		client.Respond(context.Background(), TurnRequest{Utterance: "hi"})
	}

	_, err := client.Respond(context.Background(), TurnRequest{Utterance: "hi"})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Expected circuit open error, got %v", err)
	}
}

func TestRespond_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(completionResponse("late")))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := client.Respond(ctx, TurnRequest{Utterance: "hi"}); err == nil {
		t.Error("Expected timeout error")
	}
}
