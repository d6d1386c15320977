package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/errorsx"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/observability"
)

// State of the recording session
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateFinalizing:
		return "finalizing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrAlreadyRecording      = errorsx.New(errorsx.ReasonState, "already recording")
	ErrNotRecording          = errorsx.New(errorsx.ReasonState, "not recording")
	ErrMicrophoneUnavailable = errorsx.New(errorsx.ReasonDevice, "microphone unavailable")
	ErrTooShort              = errorsx.New(errorsx.ReasonDuration, "recording too short")
)

// DeviceError carries the underlying microphone failure.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string { return "microphone unavailable: " + e.Err.Error() }

func (e *DeviceError) Unwrap() []error { return []error{ErrMicrophoneUnavailable, e.Err} }

// Recording is a finished capture ready for transcoding.
type Recording struct {
	Container []byte
	MimeType  string
	Duration  time.Duration
}

// Options configures a Session
type Options struct {
	MinDuration time.Duration // recordings shorter than this are discarded
	Timeslice   time.Duration // chunk cadence and tick interval
	Profile     CaptureProfile
	Now         func() time.Time
	OnTick      func(elapsed time.Duration) // UI feedback only
	Metrics     *observability.Metrics
}

func (o *Options) applyDefaults() {
	if o.MinDuration <= 0 {
		o.MinDuration = time.Second
	}
	if o.Timeslice <= 0 {
		o.Timeslice = 100 * time.Millisecond
	}
	if o.Profile == (CaptureProfile{}) {
		o.Profile = DefaultProfile()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// take is one capture's chunk accumulation. chunks is written only by the
// collector goroutine and read after done is closed.
type take struct {
	chunks [][]byte
	done   chan struct{}
}

func (t *take) collect(ch <-chan []byte) {
	defer close(t.done)
	for chunk := range ch {
		if len(chunk) > 0 {
			t.chunks = append(t.chunks, chunk)
		}
	}
}

// Session owns the microphone lifecycle. At most one capture is open at a time.
type Session struct {
	device Device
	opts   Options
	logger zerolog.Logger

	mu        sync.Mutex
	state     State
	acquiring bool
	startedAt time.Time
	capture   Capture
	take      *take
	stopTick  chan struct{}
}

// NewSession creates a recording session over device
func NewSession(device Device, opts Options) *Session {
	opts.applyDefaults()
	return &Session{
		device: device,
		opts:   opts,
		logger: observability.WithComponent("recorder"),
		state:  StateIdle,
	}
}

// State returns the current state and, while capturing, when it began
func (s *Session) State() (State, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.startedAt
}

// Elapsed returns how long the current capture has been running
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCapturing {
		return 0
	}
	return s.opts.Now().Sub(s.startedAt)
}

// Start acquires the microphone and begins buffering chunks.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle || s.acquiring {
		s.mu.Unlock()
		return ErrAlreadyRecording
	}
	s.acquiring = true
	s.mu.Unlock()

	capture, chunks, err := s.open(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquiring = false
	if err != nil {
		s.opts.Metrics.RecordRecording("device_error", 0)
		s.logger.Warn().Err(err).Msg("Microphone acquisition failed")
		return err
	}

	t := &take{done: make(chan struct{})}
	go t.collect(chunks)

	s.state = StateCapturing
	s.startedAt = s.opts.Now()
	s.capture = capture
	s.take = t
	s.stopTick = make(chan struct{})
	if s.opts.OnTick != nil {
		go s.tick(s.startedAt, s.stopTick)
	}

	s.logger.Debug().Str("mime_type", capture.MimeType()).Msg("Recording started")
	return nil
}

func (s *Session) open(ctx context.Context) (Capture, <-chan []byte, error) {
	capture, err := s.device.Open(ctx, s.opts.Profile)
	if err != nil {
		return nil, nil, &DeviceError{Err: err}
	}
	chunks, err := capture.Start(s.opts.Timeslice)
	if err != nil {
		_ = capture.Release()
		return nil, nil, &DeviceError{Err: err}
	}
	return capture, chunks, nil
}

func (s *Session) tick(startedAt time.Time, stop <-chan struct{}) {
	ticker := time.NewTicker(s.opts.Timeslice)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.opts.OnTick(s.opts.Now().Sub(startedAt))
		}
	}
}

// Stop ends the capture. Captures shorter than the minimum duration are
// discarded with ErrTooShort; otherwise the buffered chunks are returned as
// one container. The device is released on every path.
func (s *Session) Stop(ctx context.Context) (Recording, error) {
	s.mu.Lock()
	if s.state != StateCapturing {
		s.mu.Unlock()
		return Recording{}, ErrNotRecording
	}
	elapsed := s.opts.Now().Sub(s.startedAt)
	capture, t := s.capture, s.take
	close(s.stopTick)

	if elapsed < s.opts.MinDuration {
		s.resetLocked()
		s.mu.Unlock()

		s.discard(capture)
		s.opts.Metrics.RecordRecording("too_short", elapsed)
		s.logger.Debug().Dur("elapsed", elapsed).Msg("Recording discarded, too short")
		return Recording{Duration: elapsed}, fmt.Errorf("%w: %v < %v", ErrTooShort, elapsed.Round(time.Millisecond), s.opts.MinDuration)
	}

	s.state = StateFinalizing
	s.mu.Unlock()

	defer func() {
		if err := capture.Release(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to release microphone")
		}
		s.mu.Lock()
		s.resetLocked()
		s.mu.Unlock()
	}()

	if err := capture.Stop(); err != nil {
		s.opts.Metrics.RecordRecording("device_error", elapsed)
		return Recording{}, errorsx.Wrap(fmt.Errorf("finalize capture: %w", err), errorsx.ReasonDevice)
	}

	select {
	case <-t.done:
	case <-ctx.Done():
		return Recording{}, ctx.Err()
	}

	container := bytes.Join(t.chunks, nil)
	s.opts.Metrics.RecordRecording("ok", elapsed)
	s.opts.Metrics.RecordAudioBytes("captured", len(container))
	s.logger.Debug().
		Dur("elapsed", elapsed).
		Int("chunks", len(t.chunks)).
		Int("bytes", len(container)).
		Msg("Recording finalized")

	return Recording{
		Container: container,
		MimeType:  capture.MimeType(),
		Duration:  elapsed,
	}, nil
}

// Abort releases an open capture without producing a recording.
func (s *Session) Abort() {
	s.mu.Lock()
	if s.state != StateCapturing {
		s.mu.Unlock()
		return
	}
	capture := s.capture
	close(s.stopTick)
	s.resetLocked()
	s.mu.Unlock()

	s.discard(capture)
	s.logger.Debug().Msg("Recording aborted")
}

func (s *Session) discard(capture Capture) {
	if err := capture.Stop(); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug().Err(err).Msg("Stopping discarded capture failed")
	}
	if err := capture.Release(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to release microphone")
	}
}

func (s *Session) resetLocked() {
	s.state = StateIdle
	s.startedAt = time.Time{}
	s.capture = nil
	s.take = nil
	s.stopTick = nil
}
