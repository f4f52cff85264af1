package audio

import (
	"sync"
)

// FrameChunker accumulates PCM samples and emits fixed-size frames. Browser
// capture buffers arrive at whatever granularity the audio worklet uses; the
// transcription backend wants a steady frame size.
type FrameChunker struct {
	mu        sync.Mutex
	pending   []int16
	frameSize int
}

// NewFrameChunker creates a chunker emitting frames of frameSize samples.
func NewFrameChunker(frameSize int) *FrameChunker {
	if frameSize <= 0 {
		frameSize = 1024
	}
	return &FrameChunker{frameSize: frameSize}
}

// Push appends samples and returns zero or more complete frames.
func (c *FrameChunker) Push(samples []int16) [][]int16 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = append(c.pending, samples...)

	var frames [][]int16
	for len(c.pending) >= c.frameSize {
		frame := make([]int16, c.frameSize)
		copy(frame, c.pending[:c.frameSize])
		frames = append(frames, frame)
		c.pending = c.pending[c.frameSize:]
	}
	return frames
}

// Pending returns the number of samples waiting for a complete frame.
func (c *FrameChunker) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Flush returns any partial frame and clears the accumulator. Called at
// session teardown so trailing audio is not silently dropped.
func (c *FrameChunker) Flush() []int16 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return nil
	}
	out := make([]int16, len(c.pending))
	copy(out, c.pending)
	c.pending = c.pending[:0]
	return out
}

// Reset discards all pending samples.
func (c *FrameChunker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = c.pending[:0]
}
