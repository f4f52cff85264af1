package audio

import (
	"fmt"
)

// ForwardFunc delivers one fixed-size 16-bit PCM frame downstream.
type ForwardFunc func(frame []int16) error

// SendPredicate reports whether microphone audio may be forwarded right now.
// The turn orchestrator owns this decision; the capture source only asks.
type SendPredicate func() bool

// CaptureSource owns the inbound microphone path: it decodes raw float32 PCM
// buffers from the client, converts them to 16-bit linear PCM, segments them
// into fixed-size frames, and forwards frames downstream when permitted.
type CaptureSource struct {
	chunker    *FrameChunker
	gate       *EnergyGate
	forward    ForwardFunc
	shouldSend SendPredicate
}

// NewCaptureSource creates a capture source emitting frames of frameSize
// samples. shouldSend may be nil, in which case all frames are forwarded.
func NewCaptureSource(frameSize int, gate *EnergyGate, shouldSend SendPredicate, forward ForwardFunc) *CaptureSource {
	if gate == nil {
		gate = NewEnergyGate(nil)
	}
	return &CaptureSource{
		chunker:    NewFrameChunker(frameSize),
		gate:       gate,
		forward:    forward,
		shouldSend: shouldSend,
	}
}

// Push ingests one raw float32 PCM buffer from the client. Frames assembled
// from it are forwarded only while the send predicate holds; audio arriving
// while forwarding is disallowed is discarded, not buffered, so stale speech
// can never leak into the next listening window.
func (c *CaptureSource) Push(raw []byte) error {
	samples, err := DecodeFloat32LE(raw)
	if err != nil {
		return fmt.Errorf("decode capture buffer: %w", err)
	}

	pcm := ConvertFloat32PCM(samples)

	for _, frame := range c.chunker.Push(pcm) {
		c.gate.ProcessFrame(frame)

		if c.shouldSend != nil && !c.shouldSend() {
			continue
		}
		if c.forward == nil {
			continue
		}
		if err := c.forward(frame); err != nil {
			return fmt.Errorf("forward capture frame: %w", err)
		}
	}
	return nil
}

// Gate exposes the energy gate for diagnostics.
func (c *CaptureSource) Gate() *EnergyGate {
	return c.gate
}

// Reset drops any partially assembled frame.
func (c *CaptureSource) Reset() {
	c.chunker.Reset()
	c.gate.Reset()
}
