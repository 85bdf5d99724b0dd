package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"mindful-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedThenRules(t *testing.T) {
	p := New().QueueGuidance(llm.GuidanceReply{Realm: "Joy", ActionIntent: llm.IntentNone}, nil)

	first, err := p.RequestGuidance(context.Background(), llm.GuidanceRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Joy", first.Realm)

	second, err := p.RequestGuidance(context.Background(), llm.GuidanceRequest{Text: "I feel overwhelmed"})
	require.NoError(t, err)
	assert.Equal(t, "Anxiety", second.Realm)
	assert.Equal(t, llm.IntentPlaySound, second.ActionIntent)

	assert.Len(t, p.GuidanceCalls(), 2)
}

func TestDelayHonoursContext(t *testing.T) {
	p := New().QueueGuidanceAfter(time.Second, llm.GuidanceReply{Realm: "Late"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.RequestGuidance(ctx, llm.GuidanceRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChatAndSpeech(t *testing.T) {
	boom := errors.New("boom")
	p := New().QueueChat(llm.ChatReply{}, boom).FailSpeech(boom)

	_, err := p.RequestChatTurn(context.Background(), llm.ChatRequest{Text: "a"})
	assert.ErrorIs(t, err, boom)

	reply, err := p.RequestChatTurn(context.Background(), llm.ChatRequest{Text: "b"})
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "b")

	_, err = p.Synthesize(context.Background(), "advice", "en", "Aoede")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"advice"}, p.SpeechRequests())
}
