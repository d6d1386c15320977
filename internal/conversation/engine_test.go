package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/audio"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/dialogue"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/errorsx"
)

func TestNewIdentity(t *testing.T) {
	a, b := NewIdentity(), NewIdentity()
	if a == b {
		t.Fatal("Expected distinct identities")
	}
	if !strings.HasPrefix(a.String(), "user_") {
		t.Fatalf("Expected user_ prefix, got %q", a)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(a.String(), "user_")); err != nil {
		t.Errorf("Expected a uuid suffix: %v", err)
	}
}

func TestEngine_StartsWithGreeting(t *testing.T) {
	h := newHarness(t)
	s := h.engine.State()

	if len(s.Messages) != 1 {
		t.Fatalf("Expected one message, got %d", len(s.Messages))
	}
	m := s.Messages[0]
	if m.ID != 1 || m.Sender != SenderBot || m.Text != Greeting {
		t.Errorf("Unexpected greeting %+v", m)
	}
	if s.PendingTurn {
		t.Error("Expected no pending turn")
	}
}

func TestEngine_TextTurn(t *testing.T) {
	h := newHarness(t)
	h.chat.respond = func(req dialogue.ChatRequest) (*dialogue.ChatResponse, error) {
		return &dialogue.ChatResponse{
			Response:             "We offer BPO services...",
			Timestamp:            "2024-05-01T09:15:00",
			SuggestedQuestions:   []string{"Which industries?", "Where are you located?"},
			RequiresCustomerInfo: true,
			MissingFields:        []string{"name", "email"},
		}, nil
	}
	h.engine.SetInput("What services do you offer?")

	turn, err := h.engine.SubmitText(context.Background(), "What services do you offer?")
	if err != nil {
		t.Fatalf("SubmitText failed: %v", err)
	}

	s := h.engine.State()
	last, _ := s.Last()
	if last.Sender != SenderUser || last.Text != "What services do you offer?" {
		t.Fatalf("Expected the user message to be appended immediately, got %+v", last)
	}
	if !s.PendingTurn {
		t.Error("Expected pending turn after submission")
	}
	if h.engine.Input() != "" {
		t.Error("Expected the input to be cleared")
	}

	reply := h.sched.next(t)
	if reply.d != time.Second {
		t.Errorf("Expected a 1s reply delay, got %v", reply.d)
	}

	s = h.engine.State()
	if !s.PendingTurn || len(s.Messages) != 2 {
		t.Fatalf("Expected the bot reply to wait for the delay, got %d messages pending=%v", len(s.Messages), s.PendingTurn)
	}
	if !s.RequiresCustomerInfo || len(s.MissingFields) != 2 {
		t.Errorf("Expected gating fields right after the response, got %+v", s)
	}

	reply.f()
	res, err := waitTurn(t, turn)
	if err != nil {
		t.Fatalf("Turn failed: %v", err)
	}

	s = h.engine.State()
	if s.PendingTurn {
		t.Error("Expected pending turn to clear after the reply")
	}
	if len(s.Messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(s.Messages))
	}
	bot := s.Messages[2]
	if bot.Sender != SenderBot || bot.Text != "We offer BPO services..." {
		t.Errorf("Unexpected reply %+v", bot)
	}
	if !bot.Timestamp.Equal(time.Date(2024, 5, 1, 9, 15, 0, 0, time.UTC)) {
		t.Errorf("Expected the server timestamp, got %v", bot.Timestamp)
	}
	if res.Reply == nil || res.Reply.ID != bot.ID || res.UserMessageID != 2 {
		t.Errorf("Unexpected result %+v", res)
	}
	if len(s.SuggestedFollowUps) != 2 || s.SuggestedFollowUps[0] != "Which industries?" {
		t.Errorf("Unexpected follow-ups %v", s.SuggestedFollowUps)
	}

	reqs := h.chat.Requests()
	if len(reqs) != 1 {
		t.Fatalf("Expected one request, got %d", len(reqs))
	}
	if r := reqs[0]; r.Message != "What services do you offer?" || r.UserID != "user_test" || r.IsVoice || r.GenerateTTS || r.AudioData != "" {
		t.Errorf("Unexpected request %+v", r)
	}
}

func TestEngine_EmptyInput(t *testing.T) {
	h := newHarness(t)
	for _, in := range []string{"", "   ", "\n\t"} {
		if _, err := h.engine.SubmitText(context.Background(), in); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("SubmitText(%q): expected ErrEmptyInput, got %v", in, err)
		}
	}
	if n := len(h.engine.State().Messages); n != 1 {
		t.Errorf("Expected no new messages, got %d", n)
	}
}

func TestEngine_RejectsWhilePending(t *testing.T) {
	h := newHarness(t)
	h.chat.gate = make(chan struct{})

	turn, err := h.engine.SubmitText(context.Background(), "first")
	if err != nil {
		t.Fatalf("SubmitText failed: %v", err)
	}

	if _, err := h.engine.SubmitText(context.Background(), "second"); !errors.Is(err, ErrTurnInFlight) {
		t.Errorf("Expected ErrTurnInFlight, got %v", err)
	}
	if err := h.engine.StartRecording(context.Background()); !errors.Is(err, ErrTurnInFlight) {
		t.Errorf("Expected voice path to be rejected, got %v", err)
	}
	if h.device.Opens() != 0 {
		t.Error("Expected the microphone to stay closed")
	}
	if n := len(h.engine.State().Messages); n != 2 {
		t.Errorf("Expected no extra messages, got %d", n)
	}

	close(h.chat.gate)
	h.sched.next(t).f()
	if _, err := waitTurn(t, turn); err != nil {
		t.Fatalf("Turn failed: %v", err)
	}

	if _, err := h.engine.SubmitText(context.Background(), "third"); err != nil {
		t.Errorf("Expected submission after the reply to succeed, got %v", err)
	}
}

func TestEngine_TransportFailure(t *testing.T) {
	h := newHarness(t)
	h.chat.respond = func(dialogue.ChatRequest) (*dialogue.ChatResponse, error) {
		return nil, errorsx.Wrap(&dialogue.StatusError{StatusCode: 500}, errorsx.ReasonTransport)
	}

	turn, err := h.engine.SubmitText(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SubmitText failed: %v", err)
	}
	_, err = waitTurn(t, turn)
	if !errorsx.HasReason(err, errorsx.ReasonTransport) {
		t.Fatalf("Expected transport failure, got %v", err)
	}
	h.sched.assertIdle(t)

	s := h.engine.State()
	if s.PendingTurn {
		t.Error("Expected pending turn to clear")
	}
	if len(s.Messages) != 3 {
		t.Fatalf("Expected greeting, user and one diagnostic, got %d", len(s.Messages))
	}
	if s.Messages[1].Text != "hello" || s.Messages[1].Sender != SenderUser {
		t.Errorf("Expected the user message to be kept, got %+v", s.Messages[1])
	}
	if s.Messages[2].Text != ConnectionFailure || s.Messages[2].Sender != SenderBot {
		t.Errorf("Unexpected diagnostic %+v", s.Messages[2])
	}
}

func TestEngine_PendingCoversExactlyTheTurn(t *testing.T) {
	h := newHarness(t)

	var mu sync.Mutex
	var snapshots []State
	cancel := h.engine.Subscribe(func(s State) {
		mu.Lock()
		snapshots = append(snapshots, s)
		mu.Unlock()
	})
	defer cancel()

	for _, text := range []string{"one", "two"} {
		turn, err := h.engine.SubmitText(context.Background(), text)
		if err != nil {
			t.Fatalf("SubmitText failed: %v", err)
		}
		h.sched.next(t).f()
		if _, err := waitTurn(t, turn); err != nil {
			t.Fatalf("Turn failed: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(snapshots) == 0 {
		t.Fatal("Expected snapshots")
	}
	for i, s := range snapshots {
		last, _ := s.Last()
		if last.Sender == SenderUser && !s.PendingTurn {
			t.Errorf("snapshot %d: user message awaiting reply without a pending turn", i)
		}
		if last.Sender == SenderBot && s.PendingTurn {
			t.Errorf("snapshot %d: pending turn after the bot replied", i)
		}
	}
	if snapshots[len(snapshots)-1].PendingTurn {
		t.Error("Expected the final snapshot to be idle")
	}
}

func TestEngine_Reset(t *testing.T) {
	h := newHarness(t)
	h.chat.respond = func(dialogue.ChatRequest) (*dialogue.ChatResponse, error) {
		return &dialogue.ChatResponse{
			Response:             "Please share your email.",
			RequiresCustomerInfo: true,
			MissingFields:        []string{"email"},
			SuggestedQuestions:   []string{"Why?"},
		}, nil
	}
	hooks := 0
	h.engine.OnReset(func() { hooks++ })

	turn, _ := h.engine.SubmitText(context.Background(), "I want to apply")
	h.sched.next(t).f()
	_, _ = waitTurn(t, turn)
	h.engine.Confirm()
	h.engine.SetInput("draft")

	before := h.engine.State()
	lastID := before.Messages[len(before.Messages)-1].ID

	h.engine.Reset(context.Background())

	s := h.engine.State()
	if len(s.Messages) != 1 || s.Messages[0].Text != Greeting || s.Messages[0].Sender != SenderBot {
		t.Fatalf("Expected only the greeting, got %+v", s.Messages)
	}
	if s.Messages[0].ID <= lastID {
		t.Errorf("Expected ids to keep increasing, got %d after %d", s.Messages[0].ID, lastID)
	}
	if s.RequiresCustomerInfo || len(s.MissingFields) != 0 || len(s.SuggestedFollowUps) != 0 || s.Confirmed || s.PendingTurn {
		t.Errorf("Expected cleared state, got %+v", s)
	}
	if h.engine.Input() != "" {
		t.Error("Expected the input to be cleared")
	}
	if hooks != 1 {
		t.Errorf("Expected reset hook to run once, got %d", hooks)
	}
	if d := h.chat.Deleted(); len(d) != 1 || d[0] != "user_test" {
		t.Errorf("Expected deletion for the session identity, got %v", d)
	}
}

func TestEngine_ResetSurvivesDeleteFailure(t *testing.T) {
	h := newHarness(t)
	h.chat.deleteErr = errors.New("connection refused")
	_, _ = h.engine.SubmitText(context.Background(), "hi")
	h.sched.next(t).f()

	h.engine.Reset(context.Background())
	h.engine.Reset(context.Background())

	if n := len(h.engine.State().Messages); n != 1 {
		t.Errorf("Expected reset despite deletion failure, got %d messages", n)
	}
}

func TestEngine_ResetDropsInFlightTurn(t *testing.T) {
	h := newHarness(t)
	h.chat.gate = make(chan struct{})

	turn, err := h.engine.SubmitText(context.Background(), "slow question")
	if err != nil {
		t.Fatalf("SubmitText failed: %v", err)
	}
	h.engine.Reset(context.Background())

	if h.engine.State().PendingTurn {
		t.Error("Expected reset to clear the pending turn")
	}

	close(h.chat.gate)
	if _, err := waitTurn(t, turn); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("Expected ErrSuperseded, got %v", err)
	}
	h.sched.assertIdle(t)
	if n := len(h.engine.State().Messages); n != 1 {
		t.Errorf("Expected the stale reply to be dropped, got %d messages", n)
	}
}

func TestEngine_ResetDuringReplyDelay(t *testing.T) {
	h := newHarness(t)
	turn, _ := h.engine.SubmitText(context.Background(), "question")
	reply := h.sched.next(t)

	h.engine.Reset(context.Background())
	reply.f()

	if _, err := waitTurn(t, turn); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("Expected ErrSuperseded, got %v", err)
	}
	if n := len(h.engine.State().Messages); n != 1 {
		t.Errorf("Expected only the greeting, got %d messages", n)
	}
}

func TestEngine_AttachAudio(t *testing.T) {
	h := newHarness(t)
	first := &audio.Clip{MimeType: "audio/mp3"}
	second := &audio.Clip{MimeType: "audio/wav"}

	got, err := h.engine.AttachAudio(1, first)
	if err != nil || got != first {
		t.Fatalf("Expected first clip to be cached, got %v %v", got, err)
	}
	got, err = h.engine.AttachAudio(1, second)
	if err != nil || got != first {
		t.Errorf("Expected the cached clip to win, got %v %v", got, err)
	}

	m, ok := h.engine.Message(1)
	if !ok || m.Audio != first || !m.HasAudio() {
		t.Errorf("Expected message 1 to carry the clip, got %+v", m)
	}

	if _, err := h.engine.AttachAudio(99, first); !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("Expected ErrUnknownMessage, got %v", err)
	}
	if _, ok := h.engine.Message(99); ok {
		t.Error("Expected message 99 to be unknown")
	}
}

func TestEngine_SnapshotsAreCopies(t *testing.T) {
	h := newHarness(t)
	s := h.engine.State()
	s.Messages[0].Text = "mutated"

	if h.engine.State().Messages[0].Text != Greeting {
		t.Error("Expected snapshots not to alias engine state")
	}
}
