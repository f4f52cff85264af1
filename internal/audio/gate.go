package audio

import (
	"sync"
	"time"
)

// GateConfig holds configuration for the microphone energy gate
type GateConfig struct {
	EnergyThreshold float64 // RMS energy threshold for voice detection
	SilenceFrames   int     // consecutive quiet frames to mark end of voice
}

// DefaultGateConfig returns a default gate configuration
func DefaultGateConfig() *GateConfig {
	return &GateConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,
	}
}

// EnergyGate tracks microphone voice activity from frame energy. It is a
// diagnostic signal only: turn finalization belongs to the transcription
// backend, never to this gate.
type EnergyGate struct {
	mu             sync.Mutex
	config         *GateConfig
	silenceCounter int
	voiced         bool
	lastVoiceTime  time.Time
}

// NewEnergyGate creates a new energy gate
func NewEnergyGate(config *GateConfig) *EnergyGate {
	if config == nil {
		config = DefaultGateConfig()
	}
	return &EnergyGate{config: config}
}

// ProcessFrame updates the gate with one frame and reports whether voice is
// currently detected.
func (g *EnergyGate) ProcessFrame(samples []int16) bool {
	rms := CalculateRMS(samples)

	g.mu.Lock()
	defer g.mu.Unlock()

	if rms > g.config.EnergyThreshold {
		g.silenceCounter = 0
		g.voiced = true
		g.lastVoiceTime = time.Now()
		return true
	}

	g.silenceCounter++
	if g.voiced && g.silenceCounter >= g.config.SilenceFrames {
		g.voiced = false
		g.silenceCounter = 0
	}
	return g.voiced
}

// RecentVoice reports whether voice energy was seen within the given window.
func (g *EnergyGate) RecentVoice(window time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastVoiceTime.IsZero() {
		return false
	}
	return time.Since(g.lastVoiceTime) <= window
}

// Reset clears the gate state
func (g *EnergyGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.silenceCounter = 0
	g.voiced = false
	g.lastVoiceTime = time.Time{}
}
