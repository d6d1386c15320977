package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/connectivity"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/conversation"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/errorsx"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/playback"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/recorder"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/resilience"
)

const helpText = `Commands:
  <text>          send a message
  /record         start a voice message
  /stop           stop recording and send it
  /play <id>      play or stop a bot message
  /chips          list suggested questions
  /ask <n>        send suggested question n
  /careers        show career opportunities
  /info           show collected customer information
  /confirm        confirm your details
  /export [path]  save the transcript
  /reset          start a new conversation
  /status         show backend connectivity
  /quit           exit`

// command is one parsed console line
type command struct {
	name string // empty for plain text
	arg  string
}

func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{arg: line}
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}
}

// circuitReporter exposes a client's breaker state
type circuitReporter interface {
	CircuitState() resilience.CircuitState
}

// console drives the engine from line-oriented input and prints the
// transcript as it changes.
type console struct {
	engine  *conversation.Engine
	player  *playback.Manager
	monitor *connectivity.Monitor
	circuit circuitReporter
	out     io.Writer
	now     func() time.Time

	mu   sync.Mutex
	seen map[int64]string
}

func newConsole(engine *conversation.Engine, player *playback.Manager, monitor *connectivity.Monitor, circuit circuitReporter, out io.Writer) *console {
	c := &console{
		engine:  engine,
		player:  player,
		monitor: monitor,
		circuit: circuit,
		out:     out,
		now:     time.Now,
		seen:    make(map[int64]string),
	}
	engine.Subscribe(c.render)
	engine.OnReset(func() { c.printf("--- new conversation ---\n") })
	player.OnChange(func(id int64, playing bool) {
		if playing {
			c.printf("  (playing #%d)\n", id)
		}
	})
	if monitor != nil {
		monitor.OnChange(func(connected bool) {
			if connected {
				c.printf("  (backend online)\n")
			} else {
				c.printf("  (backend offline)\n")
			}
		})
	}
	return c
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// render prints messages that are new or whose text changed, such as a voice
// placeholder replaced by its transcript.
func (c *console) render(state conversation.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range state.Messages {
		prev, ok := c.seen[m.ID]
		if ok && prev == m.Text {
			continue
		}
		c.seen[m.ID] = m.Text
		label := "You"
		if m.Sender == conversation.SenderBot {
			label = "Bot"
		}
		fmt.Fprintf(c.out, "[#%d %s] %s: %s\n", m.ID, m.Timestamp.Format("3:04 PM"), label, m.Text)
	}
	if state.RequiresCustomerInfo && len(state.MissingFields) > 0 {
		fmt.Fprintf(c.out, "  (still needed: %s)\n", strings.Join(state.MissingFields, ", "))
	}
}

// Run reads commands until in is exhausted, /quit, or ctx ends.
func (c *console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	c.render(c.engine.State())
	c.printf("Type /help for commands.\n")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := c.handle(ctx, parseCommand(line)); quit {
				return nil
			}
		}
	}
}

// handle executes one command and reports whether the console should exit.
func (c *console) handle(ctx context.Context, cmd command) bool {
	switch cmd.name {
	case "":
		if cmd.arg == "" {
			return false
		}
		c.engine.SetInput(cmd.arg)
		_, err := c.engine.SubmitInput(ctx)
		c.report(err)
	case "quit", "exit":
		return true
	case "help":
		c.printf("%s\n", helpText)
	case "record":
		if err := c.engine.StartRecording(ctx); err == nil {
			c.printf("  (recording, /stop to send)\n")
		} else {
			c.report(err)
		}
	case "stop":
		_, err := c.engine.StopRecording(ctx)
		c.report(err)
	case "play":
		id, err := strconv.ParseInt(strings.TrimPrefix(cmd.arg, "#"), 10, 64)
		if err != nil {
			c.printf("usage: /play <message id>\n")
			return false
		}
		c.report(c.player.Toggle(ctx, id))
	case "chips":
		for i, q := range c.engine.Chips(4) {
			c.printf("  %d. %s\n", i+1, q)
		}
	case "ask":
		chips := c.engine.Chips(4)
		n, err := strconv.Atoi(cmd.arg)
		if err != nil || n < 1 || n > len(chips) {
			c.printf("usage: /ask <1-%d>\n", len(chips))
			return false
		}
		c.engine.UseQuickQuestion(chips[n-1])
		_, err = c.engine.SubmitInput(ctx)
		c.report(err)
	case "careers":
		c.printf("%s\n", c.engine.CareersInfo(ctx))
	case "info":
		info, err := c.engine.CustomerInfo(ctx)
		if err != nil {
			c.report(err)
			return false
		}
		c.printf("  name: %s\n  phone: %s\n  email: %s\n  complete: %t\n", info.Name, info.Phone, info.Email, info.IsComplete)
	case "confirm":
		c.engine.Confirm()
		c.printf("  (details confirmed)\n")
	case "export":
		path := cmd.arg
		if path == "" {
			path = conversation.ExportFilename(c.now())
		}
		if err := c.export(path); err != nil {
			c.report(err)
			return false
		}
		c.printf("  (saved %s)\n", path)
	case "reset":
		c.engine.Reset(ctx)
	case "status":
		connected := "unknown"
		if c.monitor != nil {
			connected = strconv.FormatBool(c.monitor.Connected())
		}
		c.printf("  connected: %s\n  circuit: %s\n", connected, c.circuit.CircuitState())
	default:
		c.printf("unknown command /%s, try /help\n", cmd.name)
	}
	return false
}

func (c *console) export(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.engine.Export(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// report prints errors the transcript does not already show
func (c *console) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, conversation.ErrEmptyInput), errors.Is(err, playback.ErrSuperseded):
	case errors.Is(err, conversation.ErrTurnInFlight):
		c.printf("  (please wait for the current reply)\n")
	case errors.Is(err, playback.ErrNotPlayable):
		c.printf("  (only bot messages can be played)\n")
	case errors.Is(err, recorder.ErrAlreadyRecording):
		c.printf("  (already recording)\n")
	case errors.Is(err, recorder.ErrNotRecording):
		c.printf("  (not recording)\n")
	case errors.Is(err, recorder.ErrTooShort), errors.Is(err, recorder.ErrMicrophoneUnavailable),
		errorsx.HasReason(err, errorsx.ReasonSynthesis):
		// shown as a bot message
	default:
		c.printf("  error: %v\n", err)
	}
}
