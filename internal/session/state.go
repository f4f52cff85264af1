package session

import "time"

// State is the session's turn-taking state. Exactly one state holds at any
// instant; Listening and Playing are mutually exclusive.
type State int

const (
	// StateIdle holds from creation until the opening greeting finishes
	StateIdle State = iota

	// StateListening accepts finalized transcripts and forwards mic audio
	StateListening

	// StateAwaitingResponse holds while a responder call is in flight
	StateAwaitingResponse

	// StatePlaying holds while assistant audio is being delivered
	StatePlaying

	// StateEnding is terminal
	StateEnding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StatePlaying:
		return "playing"
	case StateEnding:
		return "ending"
	default:
		return "unknown"
	}
}

// Message roles in the turn log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TurnMessage is one entry in the append-only conversation log.
type TurnMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// dedupGuard prevents double-submission of an identical finalized transcript
// and overlapping responder requests. Mutated only by the orchestrator, under
// its mutex.
type dedupGuard struct {
	lastAccepted string
	turnInFlight bool
}
