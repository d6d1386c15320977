package playback

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/audio"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/conversation"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/errorsx"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/observability"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/tts"
)

var (
	ErrUnknownMessage = errorsx.New(errorsx.ReasonState, "unknown message")
	ErrNotPlayable    = errorsx.New(errorsx.ReasonState, "only bot messages can be played")
	ErrSuperseded     = errorsx.New(errorsx.ReasonState, "playback superseded by conversation reset")
)

// MessageStore is the slice of the conversation engine playback needs.
type MessageStore interface {
	Message(id int64) (conversation.Message, bool)
	AttachAudio(id int64, clip *audio.Clip) (*audio.Clip, error)
	AppendDiagnostic(text string) conversation.Message
}

// Manager keeps at most one message playing. Audio for a message is
// synthesized on first play and cached on the message.
type Manager struct {
	store   MessageStore
	synth   tts.Synthesizer
	output  Output
	metrics *observability.Metrics
	logger  zerolog.Logger
	group   singleflight.Group

	mu         sync.Mutex
	active     int64 // 0 when nothing plays
	generation uint64
	epoch      uint64 // bumped by Reset
	onChange   func(id int64, playing bool)
}

// NewManager creates a playback manager
func NewManager(store MessageStore, synth tts.Synthesizer, output Output, metrics *observability.Metrics) *Manager {
	return &Manager{
		store:   store,
		synth:   synth,
		output:  output,
		metrics: metrics,
		logger:  observability.WithComponent("playback"),
	}
}

// OnChange registers a callback fired whenever the active message changes.
func (m *Manager) OnChange(fn func(id int64, playing bool)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Active returns the message currently playing
func (m *Manager) Active() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.active != 0
}

// Toggle stops the message if it is playing, otherwise plays it and
// supersedes whatever else was playing. A synthesis failure appends a
// diagnostic and leaves playback untouched. A reset while synthesis is in
// flight drops the result silently with ErrSuperseded.
func (m *Manager) Toggle(ctx context.Context, id int64) error {
	m.mu.Lock()
	epoch := m.epoch
	if m.active != 0 && m.active == id {
		err := m.stopLocked()
		cb := m.onChange
		m.mu.Unlock()
		notify(cb, id, false)
		return err
	}
	m.mu.Unlock()

	msg, ok := m.store.Message(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownMessage, id)
	}
	if msg.Sender != conversation.SenderBot {
		return fmt.Errorf("%w: %d", ErrNotPlayable, id)
	}

	clip := msg.Audio
	if clip == nil {
		var err error
		clip, err = m.resolve(ctx, msg)
		if m.superseded(epoch) || errors.Is(err, conversation.ErrUnknownMessage) {
			m.logger.Debug().Int64("message_id", id).Msg("Synthesis finished after reset, dropped")
			return ErrSuperseded
		}
		if err != nil {
			m.logger.Warn().Err(err).Int64("message_id", id).Msg("Synthesis failed")
			m.store.AppendDiagnostic(conversation.SynthesisFailure)
			return err
		}
	}

	return m.play(id, clip, epoch)
}

func (m *Manager) superseded(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch != epoch
}

// resolve synthesizes a message's audio. Concurrent requests for the same
// message share one synthesis call, which outlives any single caller's ctx.
func (m *Manager) resolve(ctx context.Context, msg conversation.Message) (*audio.Clip, error) {
	ctx = context.WithoutCancel(ctx)
	v, err, _ := m.group.Do(strconv.FormatInt(msg.ID, 10), func() (any, error) {
		if cached, ok := m.store.Message(msg.ID); ok && cached.Audio != nil {
			return cached.Audio, nil
		}
		clip, err := m.synth.Synthesize(ctx, msg.Text)
		if err != nil {
			return nil, err
		}
		return m.store.AttachAudio(msg.ID, clip)
	})
	if err != nil {
		return nil, err
	}
	return v.(*audio.Clip), nil
}

func (m *Manager) play(id int64, clip *audio.Clip, epoch uint64) error {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return ErrSuperseded
	}
	previous := m.active
	if previous != 0 {
		if err := m.stopLocked(); err != nil {
			m.logger.Debug().Err(err).Int64("message_id", previous).Msg("Stopping superseded playback failed")
		}
	}

	done, err := m.output.Play(clip)
	if err != nil {
		cb := m.onChange
		m.mu.Unlock()
		if previous != 0 {
			notify(cb, previous, false)
		}
		m.metrics.RecordError(string(errorsx.ReasonDevice), "playback")
		return errorsx.Wrap(fmt.Errorf("play message %d: %w", id, err), errorsx.ReasonDevice)
	}

	m.generation++
	gen := m.generation
	m.active = id
	cb := m.onChange
	m.mu.Unlock()

	m.metrics.RecordPlaybackStart()
	m.logger.Debug().Int64("message_id", id).Dur("duration", clip.Duration()).Msg("Playback started")
	notify(cb, id, true)

	go m.watch(done, gen, id)
	return nil
}

// watch clears the active message at end-of-stream unless a later play or
// stop already took over.
func (m *Manager) watch(done <-chan struct{}, gen uint64, id int64) {
	<-done

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return
	}
	m.active = 0
	cb := m.onChange
	m.mu.Unlock()

	m.logger.Debug().Int64("message_id", id).Msg("Playback ended")
	notify(cb, id, false)
}

// Reset stops playback. It is registered as a conversation reset hook.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.epoch++
	id := m.active
	if id == 0 {
		m.mu.Unlock()
		return
	}
	if err := m.stopLocked(); err != nil {
		m.logger.Debug().Err(err).Msg("Stopping playback on reset failed")
	}
	cb := m.onChange
	m.mu.Unlock()
	notify(cb, id, false)
}

func (m *Manager) stopLocked() error {
	m.generation++
	m.active = 0
	return m.output.Stop()
}

func notify(cb func(int64, bool), id int64, playing bool) {
	if cb != nil {
		cb(id, playing)
	}
}
