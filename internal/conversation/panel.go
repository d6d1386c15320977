package conversation

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/dialogue"
)

var quickQuestions = []string{
	"What services do you offer?",
	"Where are your offices located?",
	"What industries do you serve?",
	"Why choose CCI Global?",
	"How can I contact you?",
	"Tell me about your recent expansion",
	"What career opportunities do you have?",
}

// QuickQuestions returns the fixed starter questions
func QuickQuestions() []string {
	return append([]string(nil), quickQuestions...)
}

// Chips returns the questions to offer next: the server's follow-ups when
// there are any, otherwise the first limit quick questions.
func (e *Engine) Chips(limit int) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.state.SuggestedFollowUps) > 0 {
		return append([]string(nil), e.state.SuggestedFollowUps...)
	}
	if limit <= 0 || limit > len(quickQuestions) {
		limit = len(quickQuestions)
	}
	return append([]string(nil), quickQuestions[:limit]...)
}

// SetInput replaces the pending input text
func (e *Engine) SetInput(text string) {
	e.mu.Lock()
	e.input = text
	e.mu.Unlock()
}

// Input returns the pending input text. Submitting a turn clears it.
func (e *Engine) Input() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.input
}

// UseQuickQuestion fills the input with q without submitting it
func (e *Engine) UseQuickQuestion(q string) {
	e.SetInput(q)
}

// SubmitInput submits the pending input as a text turn
func (e *Engine) SubmitInput(ctx context.Context) (*Turn, error) {
	return e.SubmitText(ctx, e.Input())
}

// Confirm records that the user confirmed their details
func (e *Engine) Confirm() {
	e.mu.Lock()
	e.state.Confirmed = true
	e.mu.Unlock()
	e.publish()
}

// CareersInfo fetches the careers panel text, falling back to a fixed
// apology when the service cannot be reached.
func (e *Engine) CareersInfo(ctx context.Context) string {
	info, err := e.client.CareersInfo(ctx)
	if err != nil || info.Text == "" {
		if err != nil {
			e.logger.Warn().Err(err).Msg("Failed to fetch careers info")
		}
		return CareersFallback
	}
	return info.Text
}

// CustomerInfo fetches what the service has gathered about this session
func (e *Engine) CustomerInfo(ctx context.Context) (dialogue.CustomerInfo, error) {
	conv, err := e.client.Conversation(ctx, e.identity.String())
	if err != nil {
		return dialogue.CustomerInfo{}, err
	}
	return conv.CustomerInfo, nil
}

// ExportFilename names a transcript exported at now
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("cci-global-chat-%s.txt", now.Format("2006-01-02"))
}

// Export writes the transcript, one block per message separated by a blank
// line. Times are rendered in the engine's location.
func (e *Engine) Export(w io.Writer) error {
	state := e.State()

	lines := make([]string, 0, len(state.Messages))
	for _, m := range state.Messages {
		line := fmt.Sprintf("[%s] %s: %s",
			m.Timestamp.In(e.opts.Location).Format("3:04:05 PM"),
			strings.ToUpper(string(m.Sender)),
			m.Text,
		)
		if m.HasAudio() {
			line += " [Audio Response]"
		}
		lines = append(lines, line)
	}

	_, err := io.WriteString(w, strings.Join(lines, "\n\n"))
	return err
}
