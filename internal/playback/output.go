package playback

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/audio"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/observability"
)

// Output is a single audio channel. Play replaces whatever was playing; the
// returned channel closes at end-of-stream or when the clip is stopped.
type Output interface {
	Play(clip *audio.Clip) (<-chan struct{}, error)
	Stop() error
}

// stream is one clip occupying an output
type stream struct {
	done chan struct{}
	once sync.Once
}

func newStream() *stream { return &stream{done: make(chan struct{})} }

func (s *stream) finish() { s.once.Do(func() { close(s.done) }) }

// CommandOutput pipes a WAV rendering of each clip to an external player
// such as `aplay -q -` or `ffplay -nodisp -autoexit -`.
type CommandOutput struct {
	args   []string
	logger zerolog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	current *stream
}

// NewCommandOutput parses a player command line
func NewCommandOutput(command string) (*CommandOutput, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, errors.New("empty player command")
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return nil, fmt.Errorf("player %q not found: %w", args[0], err)
	}
	return &CommandOutput{args: args, logger: observability.WithComponent("playback")}, nil
}

func (o *CommandOutput) Play(clip *audio.Clip) (<-chan struct{}, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()

	cmd := exec.Command(o.args[0], o.args[1:]...)
	cmd.Stdin = bytes.NewReader(clip.WAV())
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start player: %w", err)
	}

	s := newStream()
	o.cmd, o.current = cmd, s
	go func() {
		if err := cmd.Wait(); err != nil {
			o.logger.Debug().Err(err).Msg("Player exited")
		}
		s.finish()
	}()
	return s.done, nil
}

func (o *CommandOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopLocked()
}

func (o *CommandOutput) stopLocked() error {
	if o.cmd == nil {
		return nil
	}
	var err error
	if err = o.cmd.Process.Kill(); errors.Is(err, os.ErrProcessDone) {
		err = nil
	}
	o.current.finish()
	o.cmd, o.current = nil, nil
	return err
}

// NullOutput plays nothing but keeps a clip "playing" for its duration. It
// stands in when no player is configured.
type NullOutput struct {
	mu      sync.Mutex
	timer   *time.Timer
	current *stream
}

func NewNullOutput() *NullOutput { return &NullOutput{} }

func (o *NullOutput) Play(clip *audio.Clip) (<-chan struct{}, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()

	s := newStream()
	o.current = s
	o.timer = time.AfterFunc(clip.Duration(), s.finish)
	return s.done, nil
}

func (o *NullOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
	return nil
}

func (o *NullOutput) stopLocked() {
	if o.current == nil {
		return
	}
	o.timer.Stop()
	o.current.finish()
	o.timer, o.current = nil, nil
}
