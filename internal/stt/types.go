package stt

import "context"

// TranscriptEvent is one transcription update from the streaming backend.
type TranscriptEvent struct {
	// Text is the transcript for the current turn so far
	Text string

	// IsFinal indicates a finalized, stable turn transcript as opposed to a
	// partial hypothesis
	IsFinal bool

	// TurnID groups events belonging to the same spoken turn, when the
	// backend provides one
	TurnID string
}

// StreamClient is the interface for streaming speech-to-text backends.
// Events are delivered in the order received from the backend.
type StreamClient interface {
	// Connect establishes the streaming session
	Connect(ctx context.Context) error

	// SendFrame transmits one 16-bit linear PCM frame. It is a no-op when
	// the connection is not open.
	SendFrame(pcm []int16) error

	// Events returns the channel transcript events are delivered on. The
	// channel is closed when the session ends.
	Events() <-chan TranscriptEvent

	// Terminate sends a termination control message if the channel is open,
	// then closes it. Safe to call more than once.
	Terminate() error
}
