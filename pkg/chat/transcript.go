// Package chat keeps the append-only multi-turn transcript of a companion
// session.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"mindful-be/internal/pkg/logger"
	"mindful-be/pkg/events"
	"mindful-be/pkg/llm"
	"mindful-be/pkg/metrics"

	"github.com/google/uuid"
)

var ErrEmptyMessage = errors.New("chat message is empty")

type Message struct {
	ID        uuid.UUID      `json:"id"`
	Role      llm.Role       `json:"role"`
	Text      string         `json:"text"`
	Image     *llm.Image     `json:"-"`
	Citations []llm.Citation `json:"citations,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (m Message) clone() Message {
	if m.Citations != nil {
		m.Citations = append([]llm.Citation(nil), m.Citations...)
	}
	return m
}

// Recorder persists appended messages. Failures are logged and never undo
// the in-memory append.
type Recorder interface {
	RecordMessage(ctx context.Context, sessionID string, msg Message) error
}

type Config struct {
	SessionID string
	Timeout   time.Duration
}

type SendInput struct {
	Text     string
	Image    *llm.Image
	Grounded bool
	Language string
}

// Manager appends a user message before asking the provider and a model
// message only when the provider answers. Sends are serialized so each
// request sees the transcript the previous one produced.
type Manager struct {
	sendMu sync.Mutex
	mu     sync.RWMutex

	messages []Message

	provider llm.ChatProvider
	recorder Recorder
	emitter  events.Emitter
	logger   logger.ILogger
	metrics  *metrics.Metrics
	cfg      Config
}

func New(cfg Config, provider llm.ChatProvider, recorder Recorder, emitter events.Emitter, log logger.ILogger, m *metrics.Metrics) *Manager {
	if emitter == nil {
		emitter = events.Discard
	}
	return &Manager{
		provider: provider,
		recorder: recorder,
		emitter:  emitter,
		logger:   log,
		metrics:  m,
		cfg:      cfg,
	}
}

// Seed replaces an empty transcript with previously stored messages.
func (m *Manager) Seed(msgs []Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) > 0 {
		return
	}
	for _, msg := range msgs {
		m.messages = append(m.messages, msg.clone())
	}
}

func (m *Manager) Transcript() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Message, len(m.messages))
	for i, msg := range m.messages {
		out[i] = msg.clone()
	}
	return out
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// Send appends the user turn, asks the provider and appends its reply. On
// provider failure the user turn stays and the error is returned.
func (m *Manager) Send(ctx context.Context, in SendInput) (Message, error) {
	if strings.TrimSpace(in.Text) == "" && in.Image == nil {
		return Message{}, ErrEmptyMessage
	}

	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	history := m.history()
	m.append(ctx, Message{
		ID:        uuid.New(),
		Role:      llm.RoleUser,
		Text:      in.Text,
		Image:     in.Image,
		CreatedAt: time.Now(),
	})

	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	started := time.Now()
	reply, err := m.provider.RequestChatTurn(ctx, llm.ChatRequest{
		History:  history,
		Text:     in.Text,
		Image:    in.Image,
		Language: in.Language,
		Grounded: in.Grounded,
	})
	m.metrics.ObserveProvider("chat", time.Since(started))
	if err != nil {
		m.metrics.RecordChatTurn("failed")
		m.logger.Warn("ChatTranscript", "Chat turn failed", map[string]interface{}{
			"session_id": m.cfg.SessionID,
			"error":      err.Error(),
		})
		return Message{}, fmt.Errorf("chat turn: %w", err)
	}

	m.metrics.RecordChatTurn("replied")
	msg := Message{
		ID:        uuid.New(),
		Role:      llm.RoleModel,
		Text:      reply.Text,
		Citations: append([]llm.Citation(nil), reply.Citations...),
		CreatedAt: time.Now(),
	}
	if len(msg.Citations) == 0 {
		msg.Citations = nil
	}
	m.append(ctx, msg)
	return msg.clone(), nil
}

func (m *Manager) history() []llm.ChatMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]llm.ChatMessage, len(m.messages))
	for i, msg := range m.messages {
		out[i] = llm.ChatMessage{Role: msg.Role, Text: msg.Text, Image: msg.Image}
	}
	return out
}

func (m *Manager) append(ctx context.Context, msg Message) {
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	index := len(m.messages) - 1
	m.mu.Unlock()

	m.emitter.Emit(events.New(events.TypeChatMessageAppended, m.cfg.SessionID, map[string]interface{}{
		"index":     index,
		"id":        msg.ID.String(),
		"role":      string(msg.Role),
		"text":      msg.Text,
		"image":     msg.Image.DataURL(),
		"citations": msg.Citations,
	}))

	if m.recorder == nil {
		return
	}
	// the request context may already be past its deadline
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := m.recorder.RecordMessage(recordCtx, m.cfg.SessionID, msg); err != nil {
		m.logger.Error("ChatTranscript", "Failed to record chat message", map[string]interface{}{
			"session_id": m.cfg.SessionID,
			"role":       msg.Role,
			"error":      err.Error(),
		})
	}
}
