package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/audio"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/config"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/errorsx"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/observability"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/resilience"
)

// ErrEmptyText is returned for blank input without calling the service.
var ErrEmptyText = errorsx.New(errorsx.ReasonSynthesis, "text is required")

// Client requests speech from the dialogue service's synthesis endpoint.
type Client struct {
	url            string
	voice          string
	httpClient     *http.Client
	circuitBreaker *resilience.CircuitBreaker
	metrics        *observability.Metrics
	logger         zerolog.Logger
}

// NewClient creates a synthesis client. metrics may be nil.
func NewClient(cfg *config.Config, metrics *observability.Metrics) *Client {
	return &Client{
		url:        cfg.BaseURL() + cfg.TTSPath,
		voice:      cfg.TTSVoice,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		circuitBreaker: resilience.NewCircuitBreaker(
			"tts",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		metrics: metrics,
		logger:  observability.WithComponent("tts"),
	}
}

// Synthesize converts text to a decoded clip. All failures carry the
// synthesis reason.
func (c *Client) Synthesize(ctx context.Context, text string) (*audio.Clip, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	start := time.Now()
	var clip *audio.Clip
	err := c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		clip, err = c.synthesize(ctx, text)
		return err
	})
	c.metrics.RecordTTS(err == nil, time.Since(start))
	if err != nil {
		if errors.Is(err, resilience.ErrOpen) {
			c.logger.Warn().Msg("Synthesis circuit open, failing fast")
		}
		return nil, errorsx.ReasonedError{Err: err, Reason: errorsx.ReasonSynthesis}
	}

	c.metrics.RecordAudioBytes("synthesized", len(clip.Data))
	c.logger.Debug().
		Int("text_len", len(text)).
		Int("bytes", len(clip.Data)).
		Dur("duration", clip.Duration()).
		Dur("latency", time.Since(start)).
		Msg("Synthesized message audio")
	return clip, nil
}

func (c *Client) synthesize(ctx context.Context, text string) (*audio.Clip, error) {
	payload, err := json.Marshal(Request{Text: text, Voice: c.voice})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", observability.NewCorrelationID())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("synthesis endpoint returned status %d", resp.StatusCode)
	}

	var body Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode synthesis response: %w", err)
	}
	if body.AudioResponse == "" {
		return nil, errors.New("synthesis response carried no audio")
	}

	data, err := base64.StdEncoding.DecodeString(body.AudioResponse)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio: %w", err)
	}

	return audio.DecodeClip("audio/mp3", data)
}
