package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/recorder"
)

// Device is an in-memory microphone for tests. Each Open returns a new
// Capture that emits whatever the test pushes into it.
type Device struct {
	// OpenErr and StartErr make the next Open or Start fail.
	OpenErr  error
	StartErr error
	// Tail is emitted by every capture when it is stopped.
	Tail [][]byte
	// Mime is reported by captures; defaults to audio/wav.
	Mime string

	mu       sync.Mutex
	opens    int
	captures []*Capture
}

func New() *Device { return &Device{} }

func (d *Device) Open(ctx context.Context, profile recorder.CaptureProfile) (recorder.Capture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	mime := d.Mime
	if mime == "" {
		mime = "audio/wav"
	}
	c := &Capture{profile: profile, tail: d.Tail, startErr: d.StartErr, mime: mime}
	d.captures = append(d.captures, c)
	return c, nil
}

// Opens reports how many times the device was opened.
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Last returns the most recently opened capture.
func (d *Device) Last() *Capture {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.captures) == 0 {
		return nil
	}
	return d.captures[len(d.captures)-1]
}

// Capture records lifecycle calls for assertions.
type Capture struct {
	profile  recorder.CaptureProfile
	tail     [][]byte
	startErr error
	mime     string

	// StopErr makes Stop fail after closing the chunk channel.
	StopErr error

	mu        sync.Mutex
	ch        chan []byte
	timeslice time.Duration
	closed    bool
	stops     atomic.Int32
	releases  atomic.Int32
}

func (c *Capture) Start(timeslice time.Duration) (<-chan []byte, error) {
	if c.startErr != nil {
		return nil, c.startErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeslice = timeslice
	c.ch = make(chan []byte, 256)
	return c.ch, nil
}

// Push emits a chunk as if a timeslice elapsed.
func (c *Capture) Push(chunk []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.ch == nil {
		return
	}
	c.ch <- chunk
}

func (c *Capture) Stop() error {
	c.stops.Add(1)
	c.mu.Lock()
	if !c.closed && c.ch != nil {
		for _, chunk := range c.tail {
			c.ch <- chunk
		}
		close(c.ch)
		c.closed = true
	}
	c.mu.Unlock()
	return c.StopErr
}

func (c *Capture) Release() error {
	c.releases.Add(1)
	return nil
}

func (c *Capture) MimeType() string { return c.mime }

func (c *Capture) Profile() recorder.CaptureProfile { return c.profile }

func (c *Capture) Timeslice() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeslice
}

func (c *Capture) Stops() int { return int(c.stops.Load()) }

func (c *Capture) Releases() int { return int(c.releases.Load()) }
