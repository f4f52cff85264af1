package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the interview gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Speech-to-text configuration
	// STT_PROVIDER selects the streaming transcription backend: "assemblyai" or "deepgram".
	STTProvider      string `envconfig:"STT_PROVIDER" default:"assemblyai"`
	AssemblyAIAPIKey string `envconfig:"ASSEMBLYAI_API_KEY"`
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY"`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`
	SampleRate       int    `envconfig:"STT_SAMPLE_RATE" default:"16000"` // Hz, browser capture rate
	TranscriptBuffer int    `envconfig:"TRANSCRIPT_BUFFER" default:"100"` // event channel depth

	// Speech synthesis configuration
	SpeechAPIKey  string `envconfig:"SPEECH_API_KEY" required:"true"`
	SpeechAPIURL  string `envconfig:"SPEECH_API_URL" default:"https://api.speech.prepnest.dev/v1/synthesize"`
	SpeechVoice   string `envconfig:"SPEECH_VOICE" default:"Amy"`
	SpeechEngine  string `envconfig:"SPEECH_ENGINE" default:"neural"` // neural or standard
	SpeechTimeout int    `envconfig:"SPEECH_TIMEOUT" default:"15"`    // seconds

	// Conversational AI backend (OpenAI-compatible chat completions)
	ResponderAPIKey  string `envconfig:"RESPONDER_API_KEY" required:"true"`
	ResponderBaseURL string `envconfig:"RESPONDER_BASE_URL" default:"https://api.cerebras.ai/v1"`
	ResponderModel   string `envconfig:"RESPONDER_MODEL" default:"gpt-oss-120b"`
	ResponderTimeout int    `envconfig:"RESPONDER_TIMEOUT" default:"20"` // seconds

	// Interview metadata store (application backend)
	MetadataBaseURL string `envconfig:"METADATA_BASE_URL" default:"http://localhost:3000"`

	// Conversation persistence (object storage API)
	StorageBaseURL string `envconfig:"STORAGE_BASE_URL" default:""`
	StorageAPIKey  string `envconfig:"STORAGE_API_KEY" default:""`
	StorageBucket  string `envconfig:"STORAGE_BUCKET" default:"conversations"`

	// Turn-taking configuration.
	// TurnCooldownMs is how long after assistant audio ends before transcripts
	// are accepted again. It absorbs tail-end playback bleeding into the
	// microphone; tunable, no derivation beyond field testing.
	TurnCooldownMs   int `envconfig:"TURN_COOLDOWN_MS" default:"500"`
	MinTranscriptLen int `envconfig:"MIN_TRANSCRIPT_LEN" default:"2"` // shorter finals are treated as noise

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // seconds
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"` // milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"` // milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from environment variables.
// It first attempts to load from .env file if it exists, then from environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments).
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.STTProvider {
	case "assemblyai":
		if c.AssemblyAIAPIKey == "" {
			return fmt.Errorf("ASSEMBLYAI_API_KEY is required when STT_PROVIDER=assemblyai")
		}
	case "deepgram":
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when STT_PROVIDER=deepgram")
		}
	default:
		return fmt.Errorf("unknown STT_PROVIDER %q (want assemblyai or deepgram)", c.STTProvider)
	}

	if c.SpeechEngine != "neural" && c.SpeechEngine != "standard" {
		return fmt.Errorf("SPEECH_ENGINE must be neural or standard, got %q", c.SpeechEngine)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("STT_SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
