package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prepnest/interview-gateway/internal/observability"
	"github.com/prepnest/interview-gateway/internal/responder"
	"github.com/prepnest/interview-gateway/internal/store"
	"github.com/prepnest/interview-gateway/internal/stt"
)

// MetadataFetcher loads the interview setup a session runs against.
type MetadataFetcher interface {
	GetInterview(ctx context.Context, interviewID string) (*store.InterviewContext, error)
}

// ConversationSaver persists a finished conversation. Failures are logged,
// never retried, and never block teardown.
type ConversationSaver interface {
	Save(ctx context.Context, record store.ConversationRecord) error
}

// fallbackGreeting opens the interview when the responder cannot produce a
// personalized one.
const fallbackGreeting = "Hello! Thanks for joining me today. Let's begin the interview."

const interviewType = "practice-interview"

// Lifecycle drives session startup and teardown around the orchestrator.
// Both Start and End are idempotent.
type Lifecycle struct {
	orch      *Orchestrator
	stream    stt.StreamClient
	playback  PlaybackController
	responder ResponderClient
	metadata  MetadataFetcher
	sink      ConversationSaver
	logger    zerolog.Logger

	mu             sync.Mutex
	started        bool
	ended          bool
	interviewID    string
	conversationID string
	sessionStart   time.Time
}

// NewLifecycle assembles a session lifecycle around its collaborators.
func NewLifecycle(orch *Orchestrator, stream stt.StreamClient, playback PlaybackController, resp ResponderClient, metadata MetadataFetcher, sink ConversationSaver) *Lifecycle {
	return &Lifecycle{
		orch:      orch,
		stream:    stream,
		playback:  playback,
		responder: resp,
		metadata:  metadata,
		sink:      sink,
		logger:    observability.GetLogger().With().Str("component", "lifecycle").Logger(),
	}
}

// ConversationID returns the server-minted conversation ID, empty before
// Start.
func (l *Lifecycle) ConversationID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conversationID
}

// Start brings the session up: interview context, transcription stream, and
// the opening greeting. A second call is a no-op.
func (l *Lifecycle) Start(ctx context.Context, interviewID string) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return nil
	}
	l.started = true
	l.interviewID = interviewID
	l.conversationID = uuid.NewString()
	l.sessionStart = time.Now()
	l.mu.Unlock()

	observability.RecordSessionStart()
	logger := observability.WithSession(l.ConversationID(), interviewID)

	interview, err := l.metadata.GetInterview(ctx, interviewID)
	if err != nil {
		// The interview still runs, just without tailored questions.
		logger.Warn().Err(err).Msg("failed to load interview context")
		interview = nil
	}
	l.orch.SetInterview(interview)

	if err := l.stream.Connect(ctx); err != nil {
		return fmt.Errorf("failed to open transcription stream: %w", err)
	}

	greeting, err := l.responder.Respond(ctx, responder.TurnRequest{
		Interview: interview,
		Utterance: responder.GreetingTrigger,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("greeting generation failed, using fallback")
		greeting = fallbackGreeting
	}

	l.orch.AppendAssistant(greeting)
	if err := l.playback.Speak(ctx, greeting); err != nil {
		logger.Warn().Err(err).Msg("greeting playback failed")
		l.orch.HandlePlaybackEnd()
	}

	logger.Info().Msg("session started")
	return nil
}

// End tears the session down: terminal state, stream termination, and
// transcript persistence. Persistence failure never blocks teardown. A
// second call is a no-op.
func (l *Lifecycle) End(ctx context.Context) error {
	l.mu.Lock()
	if l.ended {
		l.mu.Unlock()
		return nil
	}
	l.ended = true
	conversationID := l.conversationID
	interviewID := l.interviewID
	sessionStart := l.sessionStart
	started := l.started
	l.mu.Unlock()

	l.orch.End()

	if err := l.stream.Terminate(); err != nil {
		l.logger.Warn().Err(err).Msg("stream termination failed")
	}

	messages := l.orch.Messages()
	if started && len(messages) > 0 {
		record := store.ConversationRecord{
			ConversationID: conversationID,
			History:        toStoreMessages(messages),
			Metadata: store.RecordMetadata{
				InterviewID:   interviewID,
				InterviewType: interviewType,
				EndTime:       time.Now(),
				TotalMessages: len(messages),
			},
		}
		if err := l.sink.Save(ctx, record); err != nil {
			l.logger.Warn().Err(err).Msg("conversation persistence failed")
		}
	}

	if started {
		observability.RecordSessionEnd(sessionStart)
	}
	l.logger.Info().Int("messages", len(messages)).Msg("session ended")
	return nil
}

func toStoreMessages(messages []TurnMessage) []store.Message {
	out := make([]store.Message, len(messages))
	for i, m := range messages {
		out[i] = store.Message{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp}
	}
	return out
}
