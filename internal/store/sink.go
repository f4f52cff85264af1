package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/prepnest/interview-gateway/internal/config"
	"github.com/prepnest/interview-gateway/internal/observability"
)

// Message is one conversation turn as persisted.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordMetadata describes the session a conversation record came from.
type RecordMetadata struct {
	InterviewID   string    `json:"interviewId"`
	InterviewType string    `json:"interviewType"`
	EndTime       time.Time `json:"endTime"`
	TotalMessages int       `json:"totalMessages"`
}

// ConversationRecord is the persisted form of one completed session.
type ConversationRecord struct {
	ConversationID string         `json:"conversation_id"`
	History        []Message      `json:"conversation_history"`
	Metadata       RecordMetadata `json:"metadata"`
}

// ConversationSink uploads finished conversation records to object storage
// as JSON, one object per conversation.
type ConversationSink struct {
	baseURL    string
	apiKey     string
	bucket     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewConversationSink creates a sink against the configured storage service
func NewConversationSink(cfg *config.Config) *ConversationSink {
	return &ConversationSink{
		baseURL:    cfg.StorageBaseURL,
		apiKey:     cfg.StorageAPIKey,
		bucket:     cfg.StorageBucket,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     observability.GetLogger().With().Str("component", "conversation_sink").Logger(),
	}
}

// Save uploads one conversation record. The object key is derived from the
// conversation ID.
func (s *ConversationSink) Save(ctx context.Context, record ConversationRecord) error {
	if record.ConversationID == "" {
		return fmt.Errorf("conversation record has no ID")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation record: %w", err)
	}

	key := fmt.Sprintf("%s.json", record.ConversationID)
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, url.PathEscape(s.bucket), url.PathEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		observability.RecordError("conversation_save_failed", "store")
		return fmt.Errorf("conversation upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.RecordError("conversation_save_failed", "store")
		return fmt.Errorf("storage API returned status %d", resp.StatusCode)
	}

	s.logger.Info().
		Str("conversation_id", record.ConversationID).
		Int("messages", len(record.History)).
		Msg("conversation saved")
	return nil
}
