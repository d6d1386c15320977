package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/hraban/opus"
	"github.com/pion/webrtc/v3/pkg/media/oggreader"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/errorsx"
)

const (
	// OpusDecodeRate is the rate captured Opus streams are decoded at.
	OpusDecodeRate = 48000

	// 120 ms at 48 kHz, the longest frame an Opus packet can carry.
	maxOpusFrameSamples = 5760
)

// ErrDecode marks a malformed container or an unsupported codec.
var ErrDecode = errorsx.New(errorsx.ReasonDecode, "audio decode failed")

// Buffer holds decoded linear PCM, one float slice per channel.
type Buffer struct {
	Channels   [][]float32
	SampleRate int
}

// Frames returns the number of samples per channel.
func (b Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

type decodeErr struct {
	msg string
}

func (e *decodeErr) Error() string { return "audio decode failed: " + e.msg }

func (e *decodeErr) Is(target error) bool { return target == ErrDecode }

func (e *decodeErr) Unwrap() error { return ErrDecode }

func decodeError(format string, args ...any) error {
	return &decodeErr{msg: fmt.Sprintf(format, args...)}
}

// Decode turns a captured container into per-channel PCM. Ogg/Opus (what the
// capture device produces) and RIFF/WAVE are understood; anything else fails
// with ErrDecode.
func Decode(container []byte) (Buffer, error) {
	switch {
	case len(container) < 4:
		return Buffer{}, decodeError("container too short (%d bytes)", len(container))
	case bytes.HasPrefix(container, []byte("OggS")):
		return decodeOggOpus(container)
	case bytes.HasPrefix(container, []byte("RIFF")):
		return decodeWAV(container)
	case bytes.HasPrefix(container, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return Buffer{}, decodeError("webm/matroska containers are not supported")
	default:
		return Buffer{}, decodeError("unrecognised container signature % x", container[:4])
	}
}

// decodeOggOpus expects one Opus packet per Ogg page, which is how the
// capture device lays pages out.
func decodeOggOpus(container []byte) (Buffer, error) {
	reader, header, err := oggreader.NewWith(bytes.NewReader(container))
	if err != nil {
		return Buffer{}, decodeError("ogg: %v", err)
	}

	channels := int(header.Channels)
	if channels < 1 || channels > 2 {
		return Buffer{}, decodeError("ogg: unsupported channel count %d", channels)
	}

	dec, err := opus.NewDecoder(OpusDecodeRate, channels)
	if err != nil {
		return Buffer{}, decodeError("opus: %v", err)
	}

	pcm := make([]int16, maxOpusFrameSamples*channels)
	var interleaved []int16
	for {
		payload, _, err := reader.ParseNextPage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Buffer{}, decodeError("ogg page: %v", err)
		}
		if len(payload) == 0 || bytes.HasPrefix(payload, []byte("OpusTags")) {
			continue
		}

		n, err := dec.Decode(payload, pcm)
		if err != nil {
			return Buffer{}, decodeError("opus packet: %v", err)
		}
		interleaved = append(interleaved, pcm[:n*channels]...)
	}

	if len(interleaved) == 0 {
		return Buffer{}, decodeError("ogg: no audio packets")
	}

	// Pre-skip is expressed at 48 kHz, which is also the decode rate.
	skip := int(header.PreSkip) * channels
	if skip < len(interleaved) {
		interleaved = interleaved[skip:]
	}

	return Buffer{
		Channels:   Deinterleave(PCM16ToFloat(interleaved), channels),
		SampleRate: OpusDecodeRate,
	}, nil
}
