package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedReply = errors.New("malformed guidance reply")
	ErrEmptyReply     = errors.New("provider returned an empty reply")
)

type ActionIntent string

const (
	IntentSetAlarm  ActionIntent = "SET_ALARM"
	IntentPlaySound ActionIntent = "PLAY_SOUND"
	IntentNone      ActionIntent = "NONE"
)

func (a ActionIntent) Valid() bool {
	switch a {
	case IntentSetAlarm, IntentPlaySound, IntentNone:
		return true
	}
	return false
}

// Image is an inline raster attachment.
type Image struct {
	MIMEType string
	Data     []byte
}

// ParseImage accepts a data URL ("data:image/jpeg;base64,...") or bare base64.
// Bare payloads are assumed to be PNG.
func ParseImage(raw string) (*Image, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	mimeType := "image/png"
	payload := raw
	if strings.HasPrefix(raw, "data:") {
		header, data, ok := strings.Cut(raw, ",")
		if !ok {
			return nil, fmt.Errorf("invalid data URL: missing payload")
		}
		meta := strings.TrimPrefix(header, "data:")
		if mt, _, _ := strings.Cut(meta, ";"); mt != "" {
			mimeType = mt
		}
		payload = data
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid image payload: %w", err)
	}
	return &Image{MIMEType: mimeType, Data: data}, nil
}

// DataURL renders the image back into data URL form for clients.
func (i *Image) DataURL() string {
	if i == nil {
		return ""
	}
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

type GuidanceRequest struct {
	Text     string
	Language string
	Context  []string // rolling realm labels, oldest first
	Image    *Image
	Voice    bool
}

type GuidanceReply struct {
	ThoughtTrace string       `json:"thought_trace"`
	Realm        string       `json:"realm"`
	Advice       string       `json:"advice"`
	ActionIntent ActionIntent `json:"action_intent"`
	Fallback     bool         `json:"fallback,omitempty"`
}

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

type ChatMessage struct {
	Role      Role
	Text      string
	Image     *Image
	Citations []Citation
}

type ChatRequest struct {
	History  []ChatMessage // prior transcript, without the new turn
	Text     string
	Image    *Image
	Language string
	Grounded bool
}

type ChatReply struct {
	Text      string
	Citations []Citation
}

// Guide produces single-turn structured guidance.
type Guide interface {
	RequestGuidance(ctx context.Context, req GuidanceRequest) (GuidanceReply, error)
}

// ChatProvider produces multi-turn replies.
type ChatProvider interface {
	RequestChatTurn(ctx context.Context, req ChatRequest) (ChatReply, error)
}

// Speaker synthesizes speech audio for text.
type Speaker interface {
	Synthesize(ctx context.Context, text, language, voice string) ([]byte, error)
}

// Option allows for optional parameters like Temperature or Model.
type Option func(*Options)

type Options struct {
	Temperature float32
	Model       string // Override default model
}

func WithTemperature(temp float32) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func ApplyOptions(base Options, opts ...Option) Options {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}
