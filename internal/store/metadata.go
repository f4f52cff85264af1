package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/prepnest/interview-gateway/internal/config"
	"github.com/prepnest/interview-gateway/internal/observability"
	"github.com/prepnest/interview-gateway/internal/resilience"
)

// InterviewContext is the interview setup a session is conducted against.
type InterviewContext struct {
	ID                string `json:"id"`
	JobTitle          string `json:"jobTitle"`
	CompanyName       string `json:"companyName"`
	JobDescription    string `json:"jobDescription,omitempty"`
	YearsOfExperience int    `json:"yearsOfExperience,omitempty"`
	ResumeText        string `json:"resumeText,omitempty"`
}

type metadataEnvelope struct {
	Success bool              `json:"success"`
	Data    *InterviewContext `json:"data"`
	Error   string            `json:"error"`
}

// MetadataClient fetches interview setup from the application API.
type MetadataClient struct {
	baseURL    string
	httpClient *http.Client
	retry      *resilience.RetryConfig
	logger     zerolog.Logger
}

// NewMetadataClient creates a metadata client against the configured base URL
func NewMetadataClient(cfg *config.Config) *MetadataClient {
	retry := resilience.DefaultRetryConfig()
	if cfg.RetryMaxAttempts > 0 {
		retry.MaxAttempts = cfg.RetryMaxAttempts
	}
	if cfg.RetryInitialBackoff > 0 {
		retry.InitialBackoff = time.Duration(cfg.RetryInitialBackoff) * time.Millisecond
	}
	return &MetadataClient{
		baseURL:    cfg.MetadataBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry:      retry,
		logger:     observability.GetLogger().With().Str("component", "metadata").Logger(),
	}
}

// GetInterview fetches the interview context for an interview ID. The fetch
// is an idempotent read, so transient network failures are retried.
func (c *MetadataClient) GetInterview(ctx context.Context, interviewID string) (*InterviewContext, error) {
	var interview *InterviewContext
	err := resilience.Retry(func() error {
		var fetchErr error
		interview, fetchErr = c.fetch(ctx, interviewID)
		return fetchErr
	}, c.retry, resilience.IsRetryableNetworkError)

	if err != nil {
		observability.RecordError("metadata_fetch_failed", "store")
		return nil, err
	}

	c.logger.Debug().
		Str("interview_id", interviewID).
		Str("job_title", interview.JobTitle).
		Msg("interview context loaded")
	return interview, nil
}

func (c *MetadataClient) fetch(ctx context.Context, interviewID string) (*InterviewContext, error) {
	endpoint := fmt.Sprintf("%s/api/mock-interview?id=%s", c.baseURL, url.QueryEscape(interviewID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata API returned status %d", resp.StatusCode)
	}

	var envelope metadataEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode metadata response: %w", err)
	}

	if !envelope.Success || envelope.Data == nil {
		return nil, fmt.Errorf("metadata API error: %s", envelope.Error)
	}
	return envelope.Data, nil
}
