package session

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/prepnest/interview-gateway/internal/config"
	"github.com/prepnest/interview-gateway/internal/observability"
	"github.com/prepnest/interview-gateway/internal/responder"
	"github.com/prepnest/interview-gateway/internal/store"
	"github.com/prepnest/interview-gateway/internal/stt"
)

// ResponderClient generates the next assistant utterance.
type ResponderClient interface {
	Respond(ctx context.Context, req responder.TurnRequest) (string, error)
}

// PlaybackController delivers assistant speech.
type PlaybackController interface {
	Speak(ctx context.Context, text string) error
	Stop()
	IsSpeaking() bool
}

// Rejection reasons, used as the metric label and in diagnostics.
const (
	rejectNotListening = "not_listening"
	rejectInFlight     = "turn_in_flight"
	rejectDuplicate    = "duplicate"
	rejectSpeaking     = "assistant_speaking"
	rejectCooldown     = "cooldown"
	rejectTooShort     = "too_short"
)

// Orchestrator is the turn-taking state machine. It owns the session state,
// the dedup guard, and the conversation log; all three are mutated only under
// its mutex. Collaborators are reached through their start/stop contracts,
// never their resources.
type Orchestrator struct {
	responder ResponderClient
	playback  PlaybackController
	logger    zerolog.Logger

	cooldown time.Duration
	minLen   int

	mu            sync.Mutex
	state         State
	guard         dedupGuard
	messages      []TurnMessage
	interview     *store.InterviewContext
	micMuted      bool
	cooldownUntil time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// OnStateChange and OnMessage fan out transitions and log appends to
	// the session transport. Both are invoked outside the mutex and may be
	// nil.
	OnStateChange func(State)
	OnMessage     func(TurnMessage)
}

// NewOrchestrator creates an orchestrator in StateIdle.
func NewOrchestrator(cfg *config.Config, resp ResponderClient, playback PlaybackController) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		responder: resp,
		playback:  playback,
		logger:    observability.GetLogger().With().Str("component", "orchestrator").Logger(),
		cooldown:  time.Duration(cfg.TurnCooldownMs) * time.Millisecond,
		minLen:    cfg.MinTranscriptLen,
		state:     StateIdle,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetInterview attaches the interview context responses are generated
// against. Immutable for the session once set.
func (o *Orchestrator) SetInterview(interview *store.InterviewContext) {
	o.mu.Lock()
	o.interview = interview
	o.mu.Unlock()
}

// State returns the current session state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Messages returns a snapshot of the conversation log.
func (o *Orchestrator) Messages() []TurnMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]TurnMessage, len(o.messages))
	copy(out, o.messages)
	return out
}

// ShouldForwardAudio is the capture-path predicate: microphone frames go to
// the transcription stream only while listening with the mic open.
func (o *Orchestrator) ShouldForwardAudio() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == StateListening && !o.micMuted
}

// AppendAssistant appends an assistant message outside the turn path. Used
// for the opening greeting, which has no user turn behind it.
func (o *Orchestrator) AppendAssistant(content string) {
	o.mu.Lock()
	msg := o.appendLocked(RoleAssistant, content)
	o.mu.Unlock()
	o.notifyMessage(msg)
}

// HandleTranscript applies the turn acceptance policy to one transcript
// event. Partial hypotheses are never turn candidates. On accept, exactly
// one responder request is launched.
func (o *Orchestrator) HandleTranscript(ev stt.TranscriptEvent) {
	if !ev.IsFinal {
		return
	}

	text := strings.TrimSpace(ev.Text)

	o.mu.Lock()
	if reason := o.rejectionReasonLocked(text); reason != "" {
		o.mu.Unlock()
		observability.RecordTurnRejected(reason)
		o.logger.Debug().Str("reason", reason).Str("text", text).Msg("transcript rejected")
		return
	}

	o.guard.turnInFlight = true
	o.guard.lastAccepted = text
	history := o.historyLocked()
	interview := o.interview
	msg := o.appendLocked(RoleUser, text)
	o.state = StateAwaitingResponse
	o.mu.Unlock()

	observability.RecordTurnAccepted()
	o.notifyMessage(msg)
	o.notifyState(StateAwaitingResponse)

	go o.runTurn(interview, history, text)
}

// rejectionReasonLocked returns the empty string when the transcript is
// accepted. Policy order: in-flight, duplicate, assistant speaking,
// cooldown, too short.
func (o *Orchestrator) rejectionReasonLocked(text string) string {
	switch o.state {
	case StateIdle, StateEnding:
		return rejectNotListening
	case StateAwaitingResponse:
		return rejectInFlight
	}
	if o.guard.turnInFlight {
		return rejectInFlight
	}
	if text == o.guard.lastAccepted {
		return rejectDuplicate
	}
	if o.state == StatePlaying || o.playback.IsSpeaking() {
		return rejectSpeaking
	}
	if time.Now().Before(o.cooldownUntil) {
		return rejectCooldown
	}
	if utf8.RuneCountInString(text) < o.minLen {
		return rejectTooShort
	}
	return ""
}

func (o *Orchestrator) runTurn(interview *store.InterviewContext, history []responder.Turn, utterance string) {
	reply, err := o.responder.Respond(o.ctx, responder.TurnRequest{
		Interview: interview,
		History:   history,
		Utterance: utterance,
	})

	o.mu.Lock()
	if o.state == StateEnding {
		o.guard.turnInFlight = false
		o.mu.Unlock()
		return
	}

	if err != nil {
		// Recoverable: no assistant turn appears and the candidate may
		// speak again. lastAccepted is retained so the identical phrase
		// is not silently resubmitted.
		o.guard.turnInFlight = false
		o.state = StateListening
		o.mu.Unlock()
		o.logger.Warn().Err(err).Msg("responder call failed, back to listening")
		o.notifyState(StateListening)
		return
	}

	o.guard.turnInFlight = false
	msg := o.appendLocked(RoleAssistant, reply)
	o.state = StatePlaying
	o.mu.Unlock()

	o.notifyMessage(msg)
	o.notifyState(StatePlaying)

	if speakErr := o.playback.Speak(o.ctx, reply); speakErr != nil {
		o.HandlePlaybackEnd()
	}
}

// HandlePlaybackEnd runs when assistant audio finishes or fails. It arms the
// cooldown window and returns the session to listening. Wired to the
// playback controller's OnEnd and OnError callbacks.
func (o *Orchestrator) HandlePlaybackEnd() {
	o.mu.Lock()
	if o.state == StateEnding {
		o.mu.Unlock()
		return
	}
	o.guard.turnInFlight = false
	o.cooldownUntil = time.Now().Add(o.cooldown)
	changed := o.state != StateListening
	o.state = StateListening
	o.mu.Unlock()

	if changed {
		o.notifyState(StateListening)
	}
}

// SetMicMuted applies the microphone mute contract: muting during playback
// stops the audio immediately and returns to listening; unmuting clears the
// in-flight guard so an abandoned turn cannot block the next one.
func (o *Orchestrator) SetMicMuted(muted bool) {
	o.mu.Lock()
	o.micMuted = muted

	if !muted {
		o.guard.turnInFlight = false
		o.mu.Unlock()
		return
	}

	interrupting := o.state == StatePlaying
	if interrupting {
		o.state = StateListening
	}
	o.mu.Unlock()

	o.playback.Stop()
	if interrupting {
		o.notifyState(StateListening)
	}
}

// MicMuted reports the mic state.
func (o *Orchestrator) MicMuted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.micMuted
}

// End moves the session to the terminal state from anywhere, cancels any
// in-flight responder call, and stops playback. Idempotent.
func (o *Orchestrator) End() {
	o.mu.Lock()
	if o.state == StateEnding {
		o.mu.Unlock()
		return
	}
	o.state = StateEnding
	o.guard.turnInFlight = false
	o.mu.Unlock()

	o.cancel()
	o.playback.Stop()
	o.notifyState(StateEnding)
}

func (o *Orchestrator) appendLocked(role, content string) TurnMessage {
	msg := TurnMessage{Role: role, Content: content, Timestamp: time.Now()}
	o.messages = append(o.messages, msg)
	return msg
}

func (o *Orchestrator) historyLocked() []responder.Turn {
	history := make([]responder.Turn, 0, len(o.messages))
	for _, m := range o.messages {
		history = append(history, responder.Turn{Role: m.Role, Content: m.Content})
	}
	return history
}

func (o *Orchestrator) notifyState(s State) {
	if o.OnStateChange != nil {
		o.OnStateChange(s)
	}
}

func (o *Orchestrator) notifyMessage(msg TurnMessage) {
	if o.OnMessage != nil {
		o.OnMessage(msg)
	}
}
