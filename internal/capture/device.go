package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/hraban/opus"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
	"github.com/rs/zerolog"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/audio"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/observability"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/recorder"
)

const (
	// MimeType of the chunks an OpusDevice produces.
	MimeType = "audio/ogg; codecs=opus"

	opusPayloadType = 111
	frameDuration   = 20 * time.Millisecond
	maxPacketSize   = 4000
)

var opusRates = []int{8000, 12000, 16000, 24000, 48000}

// NegotiateRate maps a requested capture rate to the closest Opus rate at or
// above it. 44.1 kHz becomes 48 kHz.
func NegotiateRate(requested int) int {
	for _, r := range opusRates {
		if requested <= r {
			return r
		}
	}
	return 48000
}

// OpusDevice records from a PCM source into an Ogg/Opus stream.
type OpusDevice struct {
	source Source
	logger zerolog.Logger
}

// NewOpusDevice creates a capture device reading from source
func NewOpusDevice(source Source) *OpusDevice {
	return &OpusDevice{
		source: source,
		logger: observability.WithComponent("capture"),
	}
}

// Open acquires the source and prepares an encoder for the profile.
func (d *OpusDevice) Open(ctx context.Context, profile recorder.CaptureProfile) (recorder.Capture, error) {
	rate := NegotiateRate(profile.SampleRate)
	channels := profile.Channels
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}

	enc, err := opus.NewEncoder(rate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}

	src, err := d.source.Open(ctx, rate, channels)
	if err != nil {
		return nil, err
	}

	d.logger.Debug().
		Int("requested_rate", profile.SampleRate).
		Int("sample_rate", rate).
		Int("channels", channels).
		Msg("Capture source opened")

	return &opusCapture{
		src:          src,
		enc:          enc,
		rate:         rate,
		channels:     channels,
		frameSamples: rate * int(frameDuration) / int(time.Second),
		ssrc:         rand.Uint32(),
		speech:       audio.NewSpeechDetector(nil),
		logger:       d.logger,
		stop:         make(chan struct{}),
		readerDone:   make(chan struct{}),
		flusherDone:  make(chan struct{}),
	}, nil
}

type opusCapture struct {
	src          io.ReadCloser
	enc          *opus.Encoder
	rate         int
	channels     int
	frameSamples int
	ssrc         uint32
	logger       zerolog.Logger

	mu      sync.Mutex
	page    bytes.Buffer
	ogg     *oggwriter.OggWriter
	seq     uint16
	ts      uint32
	pending []int16
	speech  *audio.SpeechDetector
	err     error

	out         chan []byte
	stop        chan struct{}
	readerDone  chan struct{}
	flusherDone chan struct{}
	started     bool
	stopOnce    sync.Once
	releaseOnce sync.Once
}

func (c *opusCapture) MimeType() string { return MimeType }

// Start writes the Ogg headers and begins encoding.
func (c *opusCapture) Start(timeslice time.Duration) (<-chan []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil, errors.New("capture already started")
	}

	ogg, err := oggwriter.NewWith(&c.page, uint32(c.rate), uint16(c.channels))
	if err != nil {
		return nil, fmt.Errorf("ogg writer: %w", err)
	}
	c.ogg = ogg
	c.out = make(chan []byte, 64)
	c.started = true

	go c.read()
	go c.flush(timeslice)
	return c.out, nil
}

func (c *opusCapture) read() {
	defer close(c.readerDone)

	frameBytes := c.frameSamples * c.channels * 2
	buf := make([]byte, frameBytes)
	for {
		n, err := io.ReadFull(c.src, buf)
		if n > 0 {
			c.write(buf[:n-n%2])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, os.ErrClosed) {
				c.mu.Lock()
				c.err = fmt.Errorf("read capture source: %w", err)
				c.mu.Unlock()
			}
			return
		}
	}
}

func (c *opusCapture) write(pcm []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i+1 < len(pcm); i += 2 {
		c.pending = append(c.pending, int16(uint16(pcm[i])|uint16(pcm[i+1])<<8))
	}
	frame := c.frameSamples * c.channels
	for len(c.pending) >= frame {
		c.encodeLocked(c.pending[:frame])
		c.pending = append(c.pending[:0], c.pending[frame:]...)
	}
}

func (c *opusCapture) encodeLocked(frame []int16) {
	if c.err != nil {
		return
	}
	c.speech.Process(frame)

	data := make([]byte, maxPacketSize)
	n, err := c.enc.Encode(frame, data)
	if err != nil {
		c.err = fmt.Errorf("opus encode: %w", err)
		return
	}

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    opusPayloadType,
			SequenceNumber: c.seq,
			Timestamp:      c.ts,
			SSRC:           c.ssrc,
		},
		Payload: data[:n],
	}
	if err := c.ogg.WriteRTP(pkt); err != nil {
		c.err = fmt.Errorf("ogg page: %w", err)
		return
	}
	c.seq++
	// granule positions are always in 48 kHz units
	c.ts += uint32(c.frameSamples * 48000 / c.rate)
}

func (c *opusCapture) takeLocked() []byte {
	if c.page.Len() == 0 {
		return nil
	}
	chunk := make([]byte, c.page.Len())
	copy(chunk, c.page.Bytes())
	c.page.Reset()
	return chunk
}

func (c *opusCapture) flush(timeslice time.Duration) {
	defer close(c.flusherDone)

	ticker := time.NewTicker(timeslice)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			chunk := c.takeLocked()
			c.mu.Unlock()
			if chunk != nil {
				c.out <- chunk
			}
		}
	}
}

// Stop finishes the stream: the last partial frame is padded with silence
// and flushed before the chunk channel closes.
func (c *opusCapture) Stop() error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return nil
	}

	var err error
	c.stopOnce.Do(func() {
		close(c.stop)
		_ = c.src.Close()
		<-c.readerDone
		<-c.flusherDone

		c.mu.Lock()
		if len(c.pending) > 0 {
			frame := make([]int16, c.frameSamples*c.channels)
			copy(frame, c.pending)
			c.encodeLocked(frame)
			c.pending = c.pending[:0]
		}
		if closeErr := c.ogg.Close(); closeErr != nil && c.err == nil {
			c.err = closeErr
		}
		chunk := c.takeLocked()
		err = c.err
		speech := c.speech.Summary()
		c.mu.Unlock()

		if chunk != nil {
			c.out <- chunk
		}
		close(c.out)

		if speech.Silent() {
			c.logger.Warn().
				Float64("peak_rms", speech.PeakRMS).
				Int("frames", speech.Frames).
				Msg("No speech detected in captured audio")
		} else {
			c.logger.Debug().
				Int("segments", speech.Segments).
				Int("speech_frames", speech.SpeechFrames).
				Int("frames", speech.Frames).
				Msg("Captured speech")
		}
	})
	return err
}

// Release frees the source. Safe to call more than once.
func (c *opusCapture) Release() error {
	var err error
	c.releaseOnce.Do(func() {
		err = c.src.Close()
		if errors.Is(err, os.ErrClosed) {
			err = nil
		}
	})
	return err
}
