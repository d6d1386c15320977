package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("API_BASE_URL")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.APIBaseURL != "http://localhost:8000" {
		t.Errorf("Expected default APIBaseURL 'http://localhost:8000', got '%s'", cfg.APIBaseURL)
	}

	if cfg.TTSPath != "/generate-tts" {
		t.Errorf("Expected default TTSPath '/generate-tts', got '%s'", cfg.TTSPath)
	}

	if cfg.TTSVoice != "alloy" {
		t.Errorf("Expected default TTSVoice 'alloy', got '%s'", cfg.TTSVoice)
	}

	if cfg.ReplyDelay() != time.Second {
		t.Errorf("Expected default reply delay 1s, got %v", cfg.ReplyDelay())
	}

	if cfg.MinRecording() != time.Second {
		t.Errorf("Expected default minimum recording 1s, got %v", cfg.MinRecording())
	}

	if cfg.ChunkInterval() != 100*time.Millisecond {
		t.Errorf("Expected default chunk interval 100ms, got %v", cfg.ChunkInterval())
	}

	if cfg.CaptureSampleRate != 44100 {
		t.Errorf("Expected default CaptureSampleRate 44100, got %d", cfg.CaptureSampleRate)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	os.Setenv("API_BASE_URL", "https://bot.example.com/")
	os.Setenv("REPLY_DELAY_MS", "250")
	defer os.Unsetenv("API_BASE_URL")
	defer os.Unsetenv("REPLY_DELAY_MS")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.BaseURL() != "https://bot.example.com" {
		t.Errorf("Expected trailing slash trimmed, got '%s'", cfg.BaseURL())
	}

	if cfg.ReplyDelay() != 250*time.Millisecond {
		t.Errorf("Expected reply delay 250ms, got %v", cfg.ReplyDelay())
	}
}

func TestLoad_InvalidBaseURL(t *testing.T) {
	os.Setenv("API_BASE_URL", "localhost-without-scheme")
	defer os.Unsetenv("API_BASE_URL")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for a base URL without scheme")
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			APIBaseURL:        "http://localhost:8000",
			TTSPath:           "/generate-tts",
			RequestTimeout:    30,
			ReplyDelayMs:      1000,
			MinRecordingMs:    1000,
			ChunkIntervalMs:   100,
			CaptureSampleRate: 44100,
			HealthInterval:    30,

			ReconnectMaxAttempts: 5,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero reply delay allowed", func(c *Config) { c.ReplyDelayMs = 0 }, false},
		{"negative reply delay", func(c *Config) { c.ReplyDelayMs = -1 }, true},
		{"tts path without slash", func(c *Config) { c.TTSPath = "generate-tts" }, true},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
		{"zero min recording", func(c *Config) { c.MinRecordingMs = 0 }, true},
		{"zero sample rate", func(c *Config) { c.CaptureSampleRate = 0 }, true},
		{"zero reconnect attempts", func(c *Config) { c.ReconnectMaxAttempts = 0 }, true},
		{"zero health interval", func(c *Config) { c.HealthInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ResilienceDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.CircuitBreakerMaxFailures != 5 {
		t.Errorf("Expected default CircuitBreakerMaxFailures 5, got %d", cfg.CircuitBreakerMaxFailures)
	}

	if cfg.CircuitBreakerResetTimeout != 30 {
		t.Errorf("Expected default CircuitBreakerResetTimeout 30, got %d", cfg.CircuitBreakerResetTimeout)
	}

	if cfg.ReconnectMaxAttempts != 5 {
		t.Errorf("Expected default ReconnectMaxAttempts 5, got %d", cfg.ReconnectMaxAttempts)
	}

	if cfg.ReconnectBackoff != 1000 {
		t.Errorf("Expected default ReconnectBackoff 1000, got %d", cfg.ReconnectBackoff)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}

	if cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled false, got true")
	}
}
