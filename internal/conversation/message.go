package conversation

import (
	"time"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/audio"
)

// Sender identifies who authored a message
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Fixed texts shown to the user
const (
	Greeting           = "Hello! I'm your CCI Global assistant. I can help you with information about our BPO services, locations, industries we serve, and more. What would you like to know?"
	VoicePlaceholder   = "Processing voice message..."
	VoiceFallback      = "Voice message processed"
	ConnectionFailure  = "I'm sorry, I'm having trouble connecting to the server. Please check if the backend is running."
	RecordingTooShort  = "Recording too short. Please record for at least 1 second."
	AudioProcessingErr = "Error processing audio. Please try again or type your message."
	SynthesisFailure   = "Failed to generate audio for this message. Please try again."
	CareersFallback    = "Sorry, I couldn't fetch career opportunities. Please try again or contact careers@cci.com."

	voiceFailureFormat      = "I'm sorry, I couldn't process your voice input: %s. Please ensure your microphone is working, speak clearly, and try again, or type your message."
	microphoneFailureFormat = "Failed to access microphone: %s. Please check permissions and ensure your microphone is connected."
)

// Message is one entry in the conversation log. Audio is populated lazily
// the first time the message is played.
type Message struct {
	ID        int64
	Text      string
	Sender    Sender
	Timestamp time.Time
	Audio     *audio.Clip
}

// HasAudio reports whether synthesized audio is cached on the message
func (m Message) HasAudio() bool { return m.Audio != nil }

// State is a snapshot of the conversation. Slices are copies.
type State struct {
	Messages             []Message
	PendingTurn          bool
	SuggestedFollowUps   []string
	RequiresCustomerInfo bool
	MissingFields        []string
	CustomerInfoComplete bool
	Confirmed            bool
}

// Last returns the newest message
func (s State) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

func (s State) clone() State {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	out.SuggestedFollowUps = append([]string(nil), s.SuggestedFollowUps...)
	out.MissingFields = append([]string(nil), s.MissingFields...)
	return out
}
