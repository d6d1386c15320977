package conversation

import "context"

// Result is the outcome of one turn
type Result struct {
	UserMessageID int64
	Transcript    string   // voice turns only
	Reply         *Message // nil unless the bot replied
	Err           error
}

// Turn completes once the bot reply or a diagnostic has been appended, or
// when a reset supersedes it.
type Turn struct {
	done   chan struct{}
	result Result
}

func newTurn(userMessageID int64) *Turn {
	return &Turn{
		done:   make(chan struct{}),
		result: Result{UserMessageID: userMessageID},
	}
}

// Done is closed when the turn has finished
func (t *Turn) Done() <-chan struct{} { return t.done }

// Wait blocks until the turn finishes or ctx ends. The returned error is the
// turn's own failure, if any.
func (t *Turn) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, t.result.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (t *Turn) finish(reply *Message, transcript string, err error) {
	t.result.Reply = reply
	t.result.Transcript = transcript
	t.result.Err = err
	close(t.done)
}
