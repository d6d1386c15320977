package tts

import (
	"context"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/audio"
)

// Request is the body of the synthesis endpoint
type Request struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// Response carries base64-encoded MP3 audio
type Response struct {
	AudioResponse string `json:"audio_response"`
	Timestamp     string `json:"timestamp"`
}

// Synthesizer turns message text into a playable clip
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*audio.Clip, error)
}
