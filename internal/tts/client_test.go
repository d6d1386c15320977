package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/audio"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/config"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/errorsx"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		APIBaseURL:                 baseURL,
		TTSPath:                    "/generate_tts",
		TTSVoice:                   "alloy",
		RequestTimeout:             5,
		CircuitBreakerMaxFailures:  5,
		CircuitBreakerResetTimeout: 30,
	}
}

func wavFixture() []byte {
	samples := make([]float32, 2205)
	for i := range samples {
		samples[i] = 0.25
	}
	return audio.EncodeWAV([][]float32{samples}, 22050)
}

func TestClient_Synthesize(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/generate_tts" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(Response{
			AudioResponse: base64.StdEncoding.EncodeToString(wavFixture()),
			Timestamp:     "2024-05-01T10:00:00",
		})
	}))
	defer srv.Close()

	clip, err := NewClient(testConfig(srv.URL), nil).Synthesize(context.Background(), "Hello there")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if got.Text != "Hello there" || got.Voice != "alloy" {
		t.Errorf("Unexpected request %+v", got)
	}
	if clip.SampleRate != 22050 || clip.Channels != 1 || len(clip.Samples) != 2205 {
		t.Errorf("Unexpected clip %d Hz, %d ch, %d samples", clip.SampleRate, clip.Channels, len(clip.Samples))
	}
	if clip.Duration().Milliseconds() != 100 {
		t.Errorf("Expected 100ms clip, got %v", clip.Duration())
	}
}

func TestClient_EmptyText(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL), nil).Synthesize(context.Background(), "   ")
	if !errors.Is(err, ErrEmptyText) {
		t.Fatalf("Expected ErrEmptyText, got %v", err)
	}
	if calls.Load() != 0 {
		t.Error("Expected no request for blank text")
	}
}

func TestClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":"TTS generation failed"}`))
		}},
		{"missing audio", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"audio_response":null}`))
		}},
		{"bad base64", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"audio_response":"***"}`))
		}},
		{"undecodable audio", func(w http.ResponseWriter, r *http.Request) {
			payload := base64.StdEncoding.EncodeToString([]byte("this is not audio at all"))
			_, _ = w.Write([]byte(`{"audio_response":"` + payload + `"}`))
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`oops`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient(testConfig(srv.URL), nil).Synthesize(context.Background(), "hi")
			if err == nil {
				t.Fatal("Expected an error")
			}
			if errorsx.Reason(err) != errorsx.ReasonSynthesis {
				t.Errorf("Expected synthesis reason, got %s", errorsx.Reason(err))
			}
		})
	}
}
