package conversation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/audio"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/dialogue"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/errorsx"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/observability"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/recorder"
)

var (
	ErrEmptyInput     = errorsx.New(errorsx.ReasonState, "message is empty")
	ErrTurnInFlight   = errorsx.New(errorsx.ReasonState, "a turn is already in flight")
	ErrSuperseded     = errorsx.New(errorsx.ReasonState, "turn superseded by conversation reset")
	ErrUnknownMessage = errorsx.New(errorsx.ReasonState, "unknown message")
)

// ChatClient is the dialogue service as seen by the engine
type ChatClient interface {
	Chat(ctx context.Context, req dialogue.ChatRequest) (*dialogue.ChatResponse, error)
	DeleteUser(ctx context.Context, userID string) error
	CareersInfo(ctx context.Context) (*dialogue.CareersInfo, error)
	Conversation(ctx context.Context, userID string) (*dialogue.Conversation, error)
}

// Recorder is the microphone session driving voice turns
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (recorder.Recording, error)
}

// Transcoder turns a captured container into the canonical WAV upload.
type Transcoder func(container []byte) ([]byte, error)

// TranscodeWAV decodes a captured container and re-encodes it as 16-bit mono WAV.
func TranscodeWAV(container []byte) ([]byte, error) {
	buf, err := audio.Decode(container)
	if err != nil {
		return nil, err
	}
	return audio.EncodeWAV(buf.Channels, buf.SampleRate), nil
}

// AfterFunc schedules f to run once d has elapsed
type AfterFunc func(d time.Duration, f func())

// Options configures an Engine
type Options struct {
	ReplyDelay time.Duration // pause before a bot reply is shown
	Transcoder Transcoder
	Now        func() time.Time
	AfterFunc  AfterFunc
	Location   *time.Location // for naive server timestamps and exports
	Metrics    *observability.Metrics
}

func (o *Options) applyDefaults() {
	if o.ReplyDelay < 0 {
		o.ReplyDelay = 0
	}
	if o.Transcoder == nil {
		o.Transcoder = TranscodeWAV
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.AfterFunc == nil {
		o.AfterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	if o.Location == nil {
		o.Location = time.Local
	}
}

// Engine sequences text and voice turns against the dialogue service and
// owns the conversation log. At most one turn is in flight at a time.
type Engine struct {
	identity Identity
	client   ChatClient
	recorder Recorder
	opts     Options
	logger   zerolog.Logger

	mu     sync.Mutex
	state  State
	nextID int64
	epoch  uint64
	input  string

	listenersMu  sync.Mutex
	listeners    map[int]func(State)
	nextListener int
	resetHooks   []func()
}

// NewEngine creates an engine whose log holds only the greeting
func NewEngine(identity Identity, client ChatClient, rec Recorder, opts Options) *Engine {
	opts.applyDefaults()
	e := &Engine{
		identity:  identity,
		client:    client,
		recorder:  rec,
		opts:      opts,
		logger:    observability.WithSession(observability.WithComponent("conversation"), identity.String()),
		listeners: make(map[int]func(State)),
	}
	e.state = e.freshStateLocked()
	return e
}

// Identity returns the session identity used for every remote call
func (e *Engine) Identity() Identity { return e.identity }

// State returns a snapshot of the conversation
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Subscribe registers fn to receive a snapshot after every change. fn runs
// synchronously and must not call back into the engine.
func (e *Engine) Subscribe(fn func(State)) (cancel func()) {
	e.listenersMu.Lock()
	id := e.nextListener
	e.nextListener++
	e.listeners[id] = fn
	e.listenersMu.Unlock()

	return func() {
		e.listenersMu.Lock()
		delete(e.listeners, id)
		e.listenersMu.Unlock()
	}
}

// OnReset registers a hook run after every conversation reset
func (e *Engine) OnReset(fn func()) {
	e.listenersMu.Lock()
	e.resetHooks = append(e.resetHooks, fn)
	e.listenersMu.Unlock()
}

// publish delivers the current snapshot. listenersMu serializes deliveries so
// listeners observe snapshots in mutation order.
func (e *Engine) publish() {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	if len(e.listeners) == 0 {
		return
	}
	snapshot := e.State()
	for _, fn := range e.listeners {
		fn(snapshot)
	}
}

func (e *Engine) freshStateLocked() State {
	return State{
		Messages: []Message{e.newMessageLocked(Greeting, SenderBot, e.opts.Now())},
	}
}

func (e *Engine) newMessageLocked(text string, sender Sender, ts time.Time) Message {
	e.nextID++
	return Message{ID: e.nextID, Text: text, Sender: sender, Timestamp: ts}
}

func (e *Engine) appendLocked(text string, sender Sender, ts time.Time) Message {
	msg := e.newMessageLocked(text, sender, ts)
	e.state.Messages = append(e.state.Messages, msg)
	return msg
}

func (e *Engine) indexLocked(id int64) int {
	for i := range e.state.Messages {
		if e.state.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// Message returns the message with the given id
func (e *Engine) Message(id int64) (Message, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.indexLocked(id); i >= 0 {
		return e.state.Messages[i], true
	}
	return Message{}, false
}

// AttachAudio caches synthesized audio on a message. An existing clip is
// kept; the cached clip is returned either way.
func (e *Engine) AttachAudio(id int64, clip *audio.Clip) (*audio.Clip, error) {
	e.mu.Lock()
	i := e.indexLocked(id)
	if i < 0 {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessage, id)
	}
	if cached := e.state.Messages[i].Audio; cached != nil {
		e.mu.Unlock()
		return cached, nil
	}
	e.state.Messages[i].Audio = clip
	e.mu.Unlock()

	e.publish()
	return clip, nil
}

// AppendDiagnostic appends a bot-authored message describing a failure
func (e *Engine) AppendDiagnostic(text string) Message {
	e.mu.Lock()
	msg := e.appendLocked(text, SenderBot, e.opts.Now())
	e.mu.Unlock()

	e.publish()
	return msg
}

// SubmitText starts a text turn. The user message is appended before the
// request is issued.
func (e *Engine) SubmitText(ctx context.Context, text string) (*Turn, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	e.mu.Lock()
	if e.state.PendingTurn {
		e.mu.Unlock()
		e.opts.Metrics.RecordRejected("turn_in_flight")
		return nil, ErrTurnInFlight
	}
	msg := e.appendLocked(text, SenderUser, e.opts.Now())
	e.state.PendingTurn = true
	e.input = ""
	epoch := e.epoch
	e.mu.Unlock()
	e.publish()

	turn := newTurn(msg.ID)
	go e.runText(context.WithoutCancel(ctx), turn, epoch, text)
	return turn, nil
}

func (e *Engine) runText(ctx context.Context, turn *Turn, epoch uint64, text string) {
	start := time.Now()
	resp, err := e.client.Chat(ctx, dialogue.ChatRequest{
		Message: text,
		UserID:  e.identity.String(),
	})
	e.opts.Metrics.RecordTurn("text", err == nil, time.Since(start))
	if err != nil {
		e.logger.Warn().Err(err).Msg("Text turn failed")
		e.fail(turn, epoch, ConnectionFailure, "", err)
		return
	}
	e.apply(turn, epoch, resp, 0)
}

// StartRecording opens the microphone for a voice turn.
func (e *Engine) StartRecording(ctx context.Context) error {
	e.mu.Lock()
	pending := e.state.PendingTurn
	e.mu.Unlock()
	if pending {
		e.opts.Metrics.RecordRejected("turn_in_flight")
		return ErrTurnInFlight
	}

	err := e.recorder.Start(ctx)
	if err == nil || errors.Is(err, recorder.ErrAlreadyRecording) {
		return err
	}

	cause := err.Error()
	var de *recorder.DeviceError
	if errors.As(err, &de) {
		cause = de.Err.Error()
	}
	e.opts.Metrics.RecordError(string(errorsx.Reason(err)), "conversation")
	e.AppendDiagnostic(fmt.Sprintf(microphoneFailureFormat, cause))
	return err
}

// StopRecording finishes the capture and submits it as a voice turn. While a
// turn is in flight the request is rejected and the capture keeps running.
func (e *Engine) StopRecording(ctx context.Context) (*Turn, error) {
	e.mu.Lock()
	if e.state.PendingTurn {
		e.mu.Unlock()
		e.opts.Metrics.RecordRejected("turn_in_flight")
		return nil, ErrTurnInFlight
	}
	// reserve the turn so no text submission slips in while finalizing
	e.state.PendingTurn = true
	epoch := e.epoch
	e.mu.Unlock()

	rec, err := e.recorder.Stop(ctx)
	if err != nil {
		e.mu.Lock()
		if e.epoch == epoch {
			e.state.PendingTurn = false
		}
		switch {
		case errors.Is(err, recorder.ErrNotRecording):
		case errors.Is(err, recorder.ErrTooShort):
			e.appendLocked(RecordingTooShort, SenderBot, e.opts.Now())
		default:
			e.logger.Warn().Err(err).Msg("Finalizing recording failed")
			e.appendLocked(AudioProcessingErr, SenderBot, e.opts.Now())
		}
		e.mu.Unlock()
		e.publish()
		return nil, err
	}

	e.mu.Lock()
	if e.epoch != epoch {
		// reset while finalizing; the capture belongs to the old conversation
		e.mu.Unlock()
		return nil, ErrSuperseded
	}
	placeholder := e.appendLocked(VoicePlaceholder, SenderUser, e.opts.Now())
	e.mu.Unlock()
	e.publish()

	turn := newTurn(placeholder.ID)
	go e.runVoice(context.WithoutCancel(ctx), turn, epoch, placeholder.ID, rec)
	return turn, nil
}

func (e *Engine) runVoice(ctx context.Context, turn *Turn, epoch uint64, placeholderID int64, rec recorder.Recording) {
	wav, err := e.opts.Transcoder(rec.Container)
	if err != nil {
		e.logger.Warn().Err(err).Int("container_bytes", len(rec.Container)).Msg("Voice transcoding failed")
		e.opts.Metrics.RecordError(string(errorsx.Reason(err)), "conversation")
		e.fail(turn, epoch, AudioProcessingErr, "", errorsx.Wrap(err, errorsx.ReasonDecode))
		return
	}
	e.opts.Metrics.RecordAudioBytes("uploaded", len(wav))

	start := time.Now()
	resp, err := e.client.Chat(ctx, dialogue.ChatRequest{
		UserID:    e.identity.String(),
		IsVoice:   true,
		AudioData: base64.StdEncoding.EncodeToString(wav),
	})
	e.opts.Metrics.RecordTurn("voice", err == nil, time.Since(start))
	if err != nil {
		e.logger.Warn().Err(err).Msg("Voice turn failed")
		e.fail(turn, epoch, fmt.Sprintf(voiceFailureFormat, err.Error()), "", err)
		return
	}
	e.apply(turn, epoch, resp, placeholderID)
}

// fail unwinds the pending flag and appends a diagnostic, unless a reset has
// already replaced the conversation.
func (e *Engine) fail(turn *Turn, epoch uint64, diagnostic, transcript string, err error) {
	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		turn.finish(nil, "", ErrSuperseded)
		return
	}
	e.appendLocked(diagnostic, SenderBot, e.opts.Now())
	e.state.PendingTurn = false
	e.mu.Unlock()

	e.publish()
	turn.finish(nil, transcript, err)
}

// apply records the gating signals at once and schedules the reply. A
// placeholderID of zero means there is no voice placeholder to replace.
func (e *Engine) apply(turn *Turn, epoch uint64, resp *dialogue.ChatResponse, placeholderID int64) {
	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		turn.finish(nil, "", ErrSuperseded)
		return
	}
	e.state.RequiresCustomerInfo = resp.RequiresCustomerInfo
	e.state.MissingFields = append([]string(nil), resp.MissingFields...)
	e.state.CustomerInfoComplete = resp.CustomerInfoComplete
	e.mu.Unlock()
	e.publish()

	if resp.Intent != "" {
		e.logger.Debug().Str("intent", resp.Intent).Msg("Turn classified")
	}

	e.opts.AfterFunc(e.opts.ReplyDelay, func() {
		e.mu.Lock()
		if e.epoch != epoch {
			e.mu.Unlock()
			turn.finish(nil, "", ErrSuperseded)
			return
		}

		transcript := ""
		if placeholderID != 0 {
			transcript = resp.TranscribedText
			if transcript == "" {
				transcript = VoiceFallback
			}
			if i := e.indexLocked(placeholderID); i >= 0 {
				e.state.Messages[i].Text = transcript
			}
		}

		now := e.opts.Now()
		reply := e.appendLocked(resp.Response, SenderBot, resp.Time(e.opts.Location, now))
		e.state.SuggestedFollowUps = append([]string(nil), resp.SuggestedQuestions...)
		e.state.PendingTurn = false
		e.mu.Unlock()

		e.publish()
		turn.finish(&reply, transcript, nil)
	})
}

// Reset clears the server-side conversation and starts a fresh log holding
// only the greeting. A failed deletion is logged and the local reset still
// happens. Turns still in flight are discarded when they complete.
func (e *Engine) Reset(ctx context.Context) {
	if err := e.client.DeleteUser(ctx, e.identity.String()); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to clear server-side conversation")
	}

	e.mu.Lock()
	e.epoch++
	e.state = e.freshStateLocked()
	e.input = ""
	e.mu.Unlock()

	e.listenersMu.Lock()
	hooks := append([]func(){}, e.resetHooks...)
	e.listenersMu.Unlock()
	for _, hook := range hooks {
		hook()
	}

	e.logger.Info().Msg("Conversation reset")
	e.publish()
}
