package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/dialogue"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/recorder"
	"github.com/Prajwal-ai11002/cci-global-bot/internal/recorder/mock"
)

type fakeChat struct {
	mu        sync.Mutex
	requests  []dialogue.ChatRequest
	deleted   []string
	respond   func(req dialogue.ChatRequest) (*dialogue.ChatResponse, error)
	gate      chan struct{} // when set, Chat blocks until it is closed
	deleteErr error
	careers   *dialogue.CareersInfo
	convo     *dialogue.Conversation
	fetchErr  error
}

func (f *fakeChat) Chat(ctx context.Context, req dialogue.ChatRequest) (*dialogue.ChatResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	gate, respond := f.gate, f.respond
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if respond == nil {
		return &dialogue.ChatResponse{Response: "ok"}, nil
	}
	return respond(req)
}

func (f *fakeChat) DeleteUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, userID)
	return f.deleteErr
}

func (f *fakeChat) CareersInfo(ctx context.Context) (*dialogue.CareersInfo, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.careers, nil
}

func (f *fakeChat) Conversation(ctx context.Context, userID string) (*dialogue.Conversation, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.convo, nil
}

func (f *fakeChat) Requests() []dialogue.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dialogue.ChatRequest(nil), f.requests...)
}

func (f *fakeChat) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// scheduler captures delayed continuations so tests decide when they run.
type scheduler struct {
	calls chan delayed
}

type delayed struct {
	d time.Duration
	f func()
}

func newScheduler() *scheduler {
	return &scheduler{calls: make(chan delayed, 16)}
}

func (s *scheduler) AfterFunc(d time.Duration, f func()) {
	s.calls <- delayed{d: d, f: f}
}

// next waits for the engine to schedule a continuation
func (s *scheduler) next(t *testing.T) delayed {
	t.Helper()
	select {
	case c := <-s.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for a scheduled reply")
		return delayed{}
	}
}

func (s *scheduler) assertIdle(t *testing.T) {
	t.Helper()
	select {
	case <-s.calls:
		t.Fatal("Expected no scheduled reply")
	case <-time.After(20 * time.Millisecond):
	}
}

type harness struct {
	engine *Engine
	chat   *fakeChat
	sched  *scheduler
	device *mock.Device
	clock  *mock.Clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	chat := &fakeChat{}
	sched := newScheduler()
	device := mock.New()
	clock := mock.NewClock()

	session := recorder.NewSession(device, recorder.Options{
		MinDuration: time.Second,
		Timeslice:   100 * time.Millisecond,
		Now:         clock.Now,
	})
	engine := NewEngine("user_test", chat, session, Options{
		ReplyDelay: time.Second,
		Now:        clock.Now,
		AfterFunc:  sched.AfterFunc,
		Location:   time.UTC,
	})
	return &harness{engine: engine, chat: chat, sched: sched, device: device, clock: clock}
}

func waitTurn(t *testing.T, turn *Turn) (Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := turn.Wait(ctx)
	if err == context.DeadlineExceeded {
		t.Fatal("Timed out waiting for turn")
	}
	return res, err
}
