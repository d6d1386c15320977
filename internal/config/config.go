package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the chat client
type Config struct {
	// Remote dialogue service
	APIBaseURL     string `envconfig:"API_BASE_URL" default:"http://localhost:8000"`
	TTSPath        string `envconfig:"TTS_PATH" default:"/generate-tts"` // the bundled backend serves /generate_tts
	TTSVoice       string `envconfig:"TTS_VOICE" default:"alloy"`
	RequestTimeout int    `envconfig:"REQUEST_TIMEOUT" default:"30"` // seconds

	// Turn pacing
	ReplyDelayMs int `envconfig:"REPLY_DELAY_MS" default:"1000"` // delay before a bot reply is shown

	// Capture configuration
	MinRecordingMs    int    `envconfig:"MIN_RECORDING_MS" default:"1000"`
	ChunkIntervalMs   int    `envconfig:"CHUNK_INTERVAL_MS" default:"100"`
	CaptureSampleRate int    `envconfig:"CAPTURE_SAMPLE_RATE" default:"44100"`
	CapturePCMPath    string `envconfig:"CAPTURE_PCM_PATH" default:""` // raw s16le mono source, e.g. a FIFO fed by arecord

	// Playback configuration
	PlayerCommand string `envconfig:"PLAYER_COMMAND" default:"aplay -q -"` // receives a WAV rendering on stdin; empty disables audio output

	// Connectivity indicator
	HealthInterval int `envconfig:"HEALTH_INTERVAL" default:"30"` // seconds

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Health probes while offline
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Probe backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`   // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"` // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricsPort    string `envconfig:"METRICS_PORT" default:"9090"`
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values envconfig cannot
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL %q is not an absolute URL", c.APIBaseURL)
	}
	if !strings.HasPrefix(c.TTSPath, "/") {
		return fmt.Errorf("TTS_PATH must start with '/', got %q", c.TTSPath)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %d", c.RequestTimeout)
	}
	if c.ReplyDelayMs < 0 {
		return fmt.Errorf("REPLY_DELAY_MS must not be negative, got %d", c.ReplyDelayMs)
	}
	if c.MinRecordingMs <= 0 || c.ChunkIntervalMs <= 0 {
		return fmt.Errorf("MIN_RECORDING_MS and CHUNK_INTERVAL_MS must be positive")
	}
	if c.CaptureSampleRate <= 0 {
		return fmt.Errorf("CAPTURE_SAMPLE_RATE must be positive, got %d", c.CaptureSampleRate)
	}
	if c.ReconnectMaxAttempts <= 0 {
		return fmt.Errorf("RECONNECT_MAX_ATTEMPTS must be positive, got %d", c.ReconnectMaxAttempts)
	}
	if c.HealthInterval <= 0 {
		return fmt.Errorf("HEALTH_INTERVAL must be positive, got %d", c.HealthInterval)
	}
	return nil
}

// BaseURL returns the dialogue service URL without a trailing slash
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.APIBaseURL, "/")
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

func (c *Config) ReplyDelay() time.Duration {
	return time.Duration(c.ReplyDelayMs) * time.Millisecond
}

func (c *Config) MinRecording() time.Duration {
	return time.Duration(c.MinRecordingMs) * time.Millisecond
}

func (c *Config) ChunkInterval() time.Duration {
	return time.Duration(c.ChunkIntervalMs) * time.Millisecond
}
