package audio

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// Clip is a decoded, playable audio handle.
type Clip struct {
	MimeType   string
	Data       []byte  // payload as received
	Samples    []int16 // frame-interleaved PCM
	Channels   int
	SampleRate int
}

// Duration returns the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	if c == nil || c.Channels == 0 || c.SampleRate == 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// WAV renders the clip as a 16-bit PCM WAV stream for external players.
func (c *Clip) WAV() []byte {
	return encodePCM16WAV(c.Samples, c.Channels, c.SampleRate)
}

// DecodeClip decodes a synthesized payload into a playable clip. MP3 is what
// the speech backend returns; WAV is accepted as well.
func DecodeClip(mimeType string, data []byte) (*Clip, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio payload")
	}

	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return decodeWAVClip(data)
	case isMP3(mimeType):
		return decodeMP3Clip(mimeType, data)
	default:
		return nil, fmt.Errorf("unsupported audio payload type %q", mimeType)
	}
}

func isMP3(mimeType string) bool {
	mimeType = strings.ToLower(mimeType)
	return mimeType == "" || mimeType == "audio/mp3" || mimeType == "audio/mpeg"
}

func decodeMP3Clip(mimeType string, data []byte) (*Clip, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("mp3 decoder: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("mp3 payload contained no frames")
	}
	// go-mp3 always yields 16-bit little-endian stereo
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("unexpected mp3 decoded length %d", len(raw))
	}
	if mimeType == "" {
		mimeType = "audio/mp3"
	}
	return &Clip{
		MimeType:   mimeType,
		Data:       data,
		Samples:    bytesToPCM16(raw),
		Channels:   2,
		SampleRate: dec.SampleRate(),
	}, nil
}

func decodeWAVClip(data []byte) (*Clip, error) {
	w, err := parseWAV(data)
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	if w.format != wavFormatPCM || w.bits != 16 || w.channels < 1 {
		return nil, fmt.Errorf("wav: unsupported encoding (format %d, %d bits, %d channels)", w.format, w.bits, w.channels)
	}
	return &Clip{
		MimeType:   "audio/wav",
		Data:       data,
		Samples:    bytesToPCM16(w.data),
		Channels:   w.channels,
		SampleRate: w.sampleRate,
	}, nil
}
