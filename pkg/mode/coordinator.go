// Package mode keeps guidance, chat and live voice mutually exclusive and
// routes submitted input to whichever one is active.
package mode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"mindful-be/internal/pkg/logger"
	"mindful-be/pkg/chat"
	"mindful-be/pkg/events"
	"mindful-be/pkg/llm"
	"mindful-be/pkg/sequencer"
)

type Mode string

const (
	Guidance Mode = "guidance"
	Chat     Mode = "chat"
	Live     Mode = "live"
)

var (
	ErrUnknownMode = errors.New("unknown mode")
	ErrEmptyInput  = errors.New("input has neither text nor image")
)

// Parse accepts the mode names and the legacy "zen" alias for guidance.
func Parse(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "guidance", "zen":
		return Guidance, nil
	case "chat":
		return Chat, nil
	case "live":
		return Live, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

type GuidanceSubmitter interface {
	Submit(in sequencer.Input) uint64
}

type ChatSender interface {
	Send(ctx context.Context, in chat.SendInput) (chat.Message, error)
}

type LiveSession interface {
	Connect(ctx context.Context) error
	Disconnect()
}

type Input struct {
	Text     string
	Image    *llm.Image
	Voice    bool
	Grounded bool
	Language string
}

// Outcome describes where an input went. Generation is set for guidance
// turns, Reply for answered chat turns, Ignored while live.
type Outcome struct {
	Mode       Mode
	Generation uint64
	Reply      *chat.Message
	Ignored    bool
}

type Coordinator struct {
	// switchMu serializes mode changes; mu guards the current mode only, so
	// input routing never waits on a live connect.
	switchMu sync.Mutex
	mu       sync.RWMutex
	mode     Mode

	sessionID string
	guidance  GuidanceSubmitter
	chat      ChatSender
	live      LiveSession
	emitter   events.Emitter
	logger    logger.ILogger
}

func New(sessionID string, guidance GuidanceSubmitter, chat ChatSender, live LiveSession, emitter events.Emitter, log logger.ILogger) *Coordinator {
	if emitter == nil {
		emitter = events.Discard
	}
	return &Coordinator{
		mode:      Guidance,
		sessionID: sessionID,
		guidance:  guidance,
		chat:      chat,
		live:      live,
		emitter:   emitter,
		logger:    log,
	}
}

func (c *Coordinator) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// SetMode switches modes and returns the mode actually in effect. Leaving
// Live disconnects before anything else runs; selecting Live again
// reconnects. A failed live connect falls back to Guidance without an error.
func (c *Coordinator) SetMode(ctx context.Context, next Mode) (Mode, error) {
	next, err := Parse(string(next))
	if err != nil {
		return c.Mode(), err
	}

	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	prev := c.Mode()
	if prev == next && next != Live {
		return prev, nil
	}
	if prev == Live {
		c.live.Disconnect()
	}

	if prev != next {
		c.set(next, prev, nil)
	}
	if next != Live {
		return next, nil
	}

	if err := c.live.Connect(ctx); err != nil {
		c.logger.Warn("ModeCoordinator", "Live session unavailable, returning to guidance", map[string]interface{}{
			"session_id": c.sessionID,
			"error":      err.Error(),
		})
		c.set(Guidance, Live, err)
		return Guidance, nil
	}
	return Live, nil
}

func (c *Coordinator) set(next, prev Mode, cause error) {
	c.mu.Lock()
	c.mode = next
	c.mu.Unlock()

	data := map[string]interface{}{
		"mode":     string(next),
		"previous": string(prev),
	}
	if cause != nil {
		data["reverted"] = true
	}
	c.emitter.Emit(events.New(events.TypeModeChanged, c.sessionID, data))
}

// SubmitInput routes input to the active mode. Live ignores typed input.
func (c *Coordinator) SubmitInput(ctx context.Context, in Input) (Outcome, error) {
	current := c.Mode()
	switch current {
	case Guidance:
		if strings.TrimSpace(in.Text) == "" && in.Image == nil {
			return Outcome{Mode: current}, ErrEmptyInput
		}
		gen := c.guidance.Submit(sequencer.Input{
			Text:     in.Text,
			Image:    in.Image,
			Voice:    in.Voice,
			Language: in.Language,
		})
		return Outcome{Mode: current, Generation: gen}, nil

	case Chat:
		msg, err := c.chat.Send(ctx, chat.SendInput{
			Text:     in.Text,
			Image:    in.Image,
			Grounded: in.Grounded,
			Language: in.Language,
		})
		if err != nil {
			return Outcome{Mode: current}, err
		}
		return Outcome{Mode: current, Reply: &msg}, nil

	default:
		return Outcome{Mode: current, Ignored: true}, nil
	}
}

// Close tears down any live session.
func (c *Coordinator) Close() {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	c.live.Disconnect()
}
