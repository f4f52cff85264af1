package config

import (
	"os"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Setenv("ASSEMBLYAI_API_KEY", "test-assemblyai-key")
	os.Setenv("SPEECH_API_KEY", "test-speech-key")
	os.Setenv("RESPONDER_API_KEY", "test-responder-key")
	t.Cleanup(func() {
		os.Unsetenv("ASSEMBLYAI_API_KEY")
		os.Unsetenv("SPEECH_API_KEY")
		os.Unsetenv("RESPONDER_API_KEY")
	})
}

func TestLoadFromEnv(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.AssemblyAIAPIKey != "test-assemblyai-key" {
		t.Errorf("Expected AssemblyAIAPIKey 'test-assemblyai-key', got '%s'", cfg.AssemblyAIAPIKey)
	}
	if cfg.SpeechAPIKey != "test-speech-key" {
		t.Errorf("Expected SpeechAPIKey 'test-speech-key', got '%s'", cfg.SpeechAPIKey)
	}
	if cfg.ResponderAPIKey != "test-responder-key" {
		t.Errorf("Expected ResponderAPIKey 'test-responder-key', got '%s'", cfg.ResponderAPIKey)
	}
}

func TestLoadFromEnv_MissingRequired(t *testing.T) {
	os.Unsetenv("ASSEMBLYAI_API_KEY")
	os.Unsetenv("SPEECH_API_KEY")
	os.Unsetenv("RESPONDER_API_KEY")

	_, err := LoadFromEnv()
	if err == nil {
		t.Error("Expected error when required keys are missing")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}
	if cfg.STTProvider != "assemblyai" {
		t.Errorf("Expected default STTProvider 'assemblyai', got '%s'", cfg.STTProvider)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("Expected default SampleRate 16000, got %d", cfg.SampleRate)
	}
	if cfg.SpeechVoice != "Amy" {
		t.Errorf("Expected default SpeechVoice 'Amy', got '%s'", cfg.SpeechVoice)
	}
	if cfg.SpeechEngine != "neural" {
		t.Errorf("Expected default SpeechEngine 'neural', got '%s'", cfg.SpeechEngine)
	}
	if cfg.TurnCooldownMs != 500 {
		t.Errorf("Expected default TurnCooldownMs 500, got %d", cfg.TurnCooldownMs)
	}
	if cfg.MinTranscriptLen != 2 {
		t.Errorf("Expected default MinTranscriptLen 2, got %d", cfg.MinTranscriptLen)
	}
	if cfg.ResponderTimeout != 20 {
		t.Errorf("Expected default ResponderTimeout 20, got %d", cfg.ResponderTimeout)
	}
	if cfg.StorageBucket != "conversations" {
		t.Errorf("Expected default StorageBucket 'conversations', got '%s'", cfg.StorageBucket)
	}
}

func TestLoadFromEnv_DeepgramProvider(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("STT_PROVIDER", "deepgram")
	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	t.Cleanup(func() {
		os.Unsetenv("STT_PROVIDER")
		os.Unsetenv("DEEPGRAM_API_KEY")
	})

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if cfg.DeepgramModel != "nova-2" {
		t.Errorf("Expected default DeepgramModel 'nova-2', got '%s'", cfg.DeepgramModel)
	}
}

func TestLoadFromEnv_DeepgramProviderMissingKey(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("STT_PROVIDER", "deepgram")
	os.Unsetenv("DEEPGRAM_API_KEY")
	t.Cleanup(func() { os.Unsetenv("STT_PROVIDER") })

	_, err := LoadFromEnv()
	if err == nil {
		t.Error("Expected error when DEEPGRAM_API_KEY is missing for deepgram provider")
	}
}

func TestLoadFromEnv_UnknownProvider(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("STT_PROVIDER", "whisper")
	t.Cleanup(func() { os.Unsetenv("STT_PROVIDER") })

	_, err := LoadFromEnv()
	if err == nil {
		t.Error("Expected error for unknown STT provider")
	}
}

func TestLoadFromEnv_BadSpeechEngine(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("SPEECH_ENGINE", "turbo")
	t.Cleanup(func() { os.Unsetenv("SPEECH_ENGINE") })

	_, err := LoadFromEnv()
	if err == nil {
		t.Error("Expected error for invalid speech engine")
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}
