// Package mock provides a deterministic provider for local runs and tests.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"mindful-be/pkg/llm"
)

// Provider answers guidance, chat and speech requests. Scripted replies and
// errors are consumed in order; once exhausted it falls back to keyword rules.
type Provider struct {
	mu sync.Mutex

	Delay time.Duration

	guidance       []scripted[llm.GuidanceReply]
	chat           []scripted[llm.ChatReply]
	speechErr      error
	guidanceCalls  []llm.GuidanceRequest
	chatCalls      []llm.ChatRequest
	speechRequests []string
}

type scripted[T any] struct {
	reply T
	err   error
	delay time.Duration
}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) QueueGuidance(reply llm.GuidanceReply, err error) *Provider {
	return p.QueueGuidanceAfter(0, reply, err)
}

// QueueGuidanceAfter scripts a guidance answer delivered after delay.
func (p *Provider) QueueGuidanceAfter(delay time.Duration, reply llm.GuidanceReply, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.guidance = append(p.guidance, scripted[llm.GuidanceReply]{reply: reply, err: err, delay: delay})
	return p
}

func (p *Provider) QueueChat(reply llm.ChatReply, err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chat = append(p.chat, scripted[llm.ChatReply]{reply: reply, err: err})
	return p
}

func (p *Provider) FailSpeech(err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speechErr = err
	return p
}

func (p *Provider) GuidanceCalls() []llm.GuidanceRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.GuidanceRequest(nil), p.guidanceCalls...)
}

func (p *Provider) ChatCalls() []llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.ChatRequest(nil), p.chatCalls...)
}

func (p *Provider) SpeechRequests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.speechRequests...)
}

func (p *Provider) RequestGuidance(ctx context.Context, req llm.GuidanceRequest) (llm.GuidanceReply, error) {
	p.mu.Lock()
	p.guidanceCalls = append(p.guidanceCalls, req)
	next, ok := pop(&p.guidance)
	delay := p.Delay
	p.mu.Unlock()

	if ok && next.delay > 0 {
		delay = next.delay
	}
	if err := wait(ctx, delay); err != nil {
		return llm.GuidanceReply{}, err
	}
	if ok {
		return next.reply, next.err
	}
	return ruleBasedReply(req), nil
}

func (p *Provider) RequestChatTurn(ctx context.Context, req llm.ChatRequest) (llm.ChatReply, error) {
	p.mu.Lock()
	p.chatCalls = append(p.chatCalls, req)
	next, ok := pop(&p.chat)
	delay := p.Delay
	p.mu.Unlock()

	if err := wait(ctx, delay); err != nil {
		return llm.ChatReply{}, err
	}
	if ok {
		return next.reply, next.err
	}
	return llm.ChatReply{Text: "Sit with that for a breath: " + req.Text}, nil
}

// Synthesize returns the text bytes as stand-in audio.
func (p *Provider) Synthesize(ctx context.Context, text, language, voice string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speechRequests = append(p.speechRequests, text)
	if p.speechErr != nil {
		return nil, p.speechErr
	}
	return []byte(text), nil
}

func pop[T any](queue *[]scripted[T]) (scripted[T], bool) {
	if len(*queue) == 0 {
		var zero scripted[T]
		return zero, false
	}
	next := (*queue)[0]
	*queue = (*queue)[1:]
	return next, true
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func ruleBasedReply(req llm.GuidanceRequest) llm.GuidanceReply {
	text := strings.ToLower(req.Text)
	switch {
	case strings.Contains(text, "overwhelm") || strings.Contains(text, "anxious") || strings.Contains(text, "panic"):
		return llm.GuidanceReply{
			ThoughtTrace: "I sense a storm behind the words.",
			Realm:        "Anxiety",
			Advice:       "Let the sound of rain carry each thought away. Breathe with it.",
			ActionIntent: llm.IntentPlaySound,
		}
	case strings.Contains(text, "tired") || strings.Contains(text, "restless") || strings.Contains(text, "focus"):
		return llm.GuidanceReply{
			ThoughtTrace: "The mind wanders, seeking a place to rest.",
			Realm:        "Scattered Mind",
			Advice:       "Sit for a few minutes. Count ten breaths, then begin again.",
			ActionIntent: llm.IntentSetAlarm,
		}
	default:
		return llm.GuidanceReply{
			ThoughtTrace: "A quiet heart speaks softly.",
			Realm:        "Stillness",
			Advice:       "Notice this moment as it is. Nothing needs to change.",
			ActionIntent: llm.IntentNone,
		}
	}
}
