package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	Language   string `json:"language" validate:"omitempty,min=2,max=10"`
	TtsEnabled *bool  `json:"tts_enabled"`
}

type CreateSessionResponse struct {
	SessionId string `json:"session_id"`
	Token     string `json:"token"`
	Mode      string `json:"mode"`
	Language  string `json:"language"`
}

type SetModeRequest struct {
	Mode string `json:"mode" validate:"required"`
}

type ModeResponse struct {
	Mode     string `json:"mode"`
	Reverted bool   `json:"reverted"`
}

type InputRequest struct {
	Text     string `json:"text" validate:"max=4000"`
	Image    string `json:"image"`
	Voice    bool   `json:"voice"`
	Grounded bool   `json:"grounded"`
}

type CitationResponse struct {
	Uri   string `json:"uri"`
	Title string `json:"title"`
}

type ChatMessageResponse struct {
	Id        uuid.UUID          `json:"id"`
	Role      string             `json:"role"`
	Text      string             `json:"text"`
	Citations []CitationResponse `json:"citations"`
	CreatedAt time.Time          `json:"created_at"`
}

type InputResponse struct {
	Mode       string               `json:"mode"`
	Accepted   bool                 `json:"accepted"`
	Generation uint64               `json:"generation,omitempty"`
	Reply      *ChatMessageResponse `json:"reply,omitempty"`
}

type UpdatePreferencesRequest struct {
	Language   *string `json:"language" validate:"omitempty,min=2,max=10"`
	TtsEnabled *bool   `json:"tts_enabled"`
	Track      *string `json:"track"`
}

type PreferencesResponse struct {
	Language   string `json:"language"`
	TtsEnabled bool   `json:"tts_enabled"`
	Track      string `json:"track"`
}

type GuidanceReplyResponse struct {
	ThoughtTrace string `json:"thought_trace"`
	Realm        string `json:"realm"`
	Advice       string `json:"advice"`
	ActionIntent string `json:"action_intent"`
	Urgency      string `json:"urgency"`
	Fallback     bool   `json:"fallback"`
}

type SessionResponse struct {
	SessionId      string                 `json:"session_id"`
	Mode           string                 `json:"mode"`
	State          string                 `json:"state"`
	Thought        string                 `json:"thought"`
	Reply          *GuidanceReplyResponse `json:"reply"`
	RollingContext []string               `json:"rolling_context"`
	Transcript     []ChatMessageResponse  `json:"transcript"`
	LiveState      string                 `json:"live_state"`
	Preferences    PreferencesResponse    `json:"preferences"`
	CreatedAt      time.Time              `json:"created_at"`
}

// JournalQuery narrows a journal listing; zero fields do not filter.
type JournalQuery struct {
	Realm  string
	Intent string
	Since  time.Time
	Limit  int
}

type JournalEntryResponse struct {
	Id           uuid.UUID `json:"id"`
	Realm        string    `json:"realm"`
	ActionIntent string    `json:"action_intent"`
	Urgency      string    `json:"urgency"`
	Advice       string    `json:"advice"`
	Context      []string  `json:"context"`
	CreatedAt    time.Time `json:"created_at"`
}

type TrackResponse struct {
	Id   string `json:"id"`
	Name string `json:"name"`
	Url  string `json:"url"`
}
