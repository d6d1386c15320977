package dialogue

import (
	"encoding/json"
	"time"
)

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	Message     string `json:"message"`
	UserID      string `json:"user_id"`
	IsVoice     bool   `json:"is_voice"`
	AudioData   string `json:"audio_data,omitempty"` // base64 WAV for voice turns
	GenerateTTS bool   `json:"generate_tts"`
	TTSVoice    string `json:"tts_voice,omitempty"`
}

// ChatResponse is the reply to POST /chat
type ChatResponse struct {
	Response             string   `json:"response"`
	TranscribedText      string   `json:"transcribed_text"`
	Timestamp            string   `json:"timestamp"`
	SuggestedQuestions   []string `json:"suggested_questions"`
	RequiresCustomerInfo bool     `json:"requires_customer_info"`
	MissingFields        []string `json:"missing_fields"`
	CustomerInfoComplete bool     `json:"customer_info_complete"`
	AudioResponse        string   `json:"audio_response,omitempty"`
	Intent               string   `json:"intent,omitempty"`
	Confidence           *float64 `json:"confidence,omitempty"`
	Error                string   `json:"error,omitempty"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Time parses the server timestamp. The backend emits naive ISO-8601 local
// times; those are read in loc. An unparsable value yields fallback.
func (r *ChatResponse) Time(loc *time.Location, fallback time.Time) time.Time {
	if r.Timestamp == "" {
		return fallback
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, r.Timestamp, loc); err == nil {
			return t
		}
	}
	return fallback
}

// HistoryEntry is one server-side conversation record
type HistoryEntry struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// CustomerInfo is what the backend has gathered about the user so far
type CustomerInfo struct {
	Name                string         `json:"name,omitempty"`
	Phone               string         `json:"phone,omitempty"`
	Email               string         `json:"email,omitempty"`
	IsComplete          bool           `json:"is_complete"`
	SelectedPosition    string         `json:"selected_position,omitempty"`
	ConversationContext map[string]any `json:"conversation_context,omitempty"`
}

// Conversation is the reply to GET /conversation/{user_id}
type Conversation struct {
	Messages     []HistoryEntry `json:"messages"`
	CustomerInfo CustomerInfo   `json:"customer_info"`
}

// CareersInfo is the reply to GET /careers-info. Only Text is interpreted;
// every other field is kept verbatim.
type CareersInfo struct {
	Text   string
	Fields map[string]json.RawMessage
}

func (c *CareersInfo) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	c.Fields = fields
	c.Text = ""
	if raw, ok := fields["text"]; ok {
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			c.Text = text
		}
	}
	return nil
}

// HealthStatus is the reply to GET /health
type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
