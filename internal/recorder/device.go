package recorder

import (
	"context"
	"time"
)

// CaptureProfile describes the requested microphone format.
type CaptureProfile struct {
	Channels         int
	SampleRate       int
	SampleSize       int // bits
	EchoCancellation bool
	NoiseSuppression bool
}

// DefaultProfile is the fixed capture profile: mono, 44.1 kHz, 16-bit, with
// echo cancellation and noise suppression.
func DefaultProfile() CaptureProfile {
	return CaptureProfile{
		Channels:         1,
		SampleRate:       44100,
		SampleSize:       16,
		EchoCancellation: true,
		NoiseSuppression: true,
	}
}

// Device grants exclusive access to a microphone.
type Device interface {
	// Open acquires the microphone. Permission or hardware failures are
	// reported here.
	Open(ctx context.Context, profile CaptureProfile) (Capture, error)
}

// Capture is an open microphone producing encoded container chunks.
type Capture interface {
	// Start begins encoding and emits a chunk every timeslice. The channel
	// is closed once Stop has flushed the final chunk.
	Start(timeslice time.Duration) (<-chan []byte, error)
	// Stop ends encoding. Remaining data is flushed before the chunk channel closes.
	Stop() error
	// Release frees the device. It is safe to call more than once.
	Release() error
	// MimeType names the container the chunks form.
	MimeType() string
}
