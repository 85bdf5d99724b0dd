package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"mindful-be/internal/pkg/logger"
	"mindful-be/pkg/events"
	"mindful-be/pkg/llm/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type speakerFunc func(ctx context.Context, text, language, voice string) ([]byte, error)

func (f speakerFunc) Synthesize(ctx context.Context, text, language, voice string) ([]byte, error) {
	return f(ctx, text, language, voice)
}

func TestResolvedAdviceIsVoiced(t *testing.T) {
	rec := events.NewRecorder()
	d := NewDispatcher(Config{Voice: "Aoede"}, mock.New(), rec, logger.NewNopLogger(), nil)

	d.Handle(events.New(events.TypeTurnResolved, "s1", map[string]interface{}{"advice": "Breathe.", "language": "en"}))
	d.Wait()

	ready := rec.OfType(events.TypeSpeechReady)
	require.Len(t, ready, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("Breathe.")), ready[0].Payload()["audio"])
	assert.Equal(t, DefaultMIMEType, ready[0].Payload()["mime"])
}

func TestFailureFallsBackToDeviceVoice(t *testing.T) {
	rec := events.NewRecorder()
	d := NewDispatcher(Config{}, mock.New().FailSpeech(errors.New("quota")), rec, logger.NewNopLogger(),
		func(string) (bool, string) { return true, "vi" })

	d.Handle(events.New(events.TypeChatMessageAppended, "s1", map[string]interface{}{"role": "model", "text": "Xin chào"}))
	d.Wait()

	fallback := rec.OfType(events.TypeSpeechFallback)
	require.Len(t, fallback, 1)
	assert.Equal(t, "Xin chào", fallback[0].Payload()["text"])
	assert.Equal(t, "vi", fallback[0].Payload()["language"])
}

func TestSkipsUserMessagesAndDisabledSessions(t *testing.T) {
	rec := events.NewRecorder()
	provider := mock.New()
	d := NewDispatcher(Config{}, provider, rec, logger.NewNopLogger(), func(id string) (bool, string) { return id != "muted", "en" })

	d.Handle(events.New(events.TypeChatMessageAppended, "s1", map[string]interface{}{"role": "user", "text": "hi"}))
	d.Handle(events.New(events.TypeTurnResolved, "muted", map[string]interface{}{"advice": "Rest."}))
	d.Handle(events.New(events.TypeModeChanged, "s1", nil))
	d.Wait()

	assert.Empty(t, provider.SpeechRequests())
	assert.Empty(t, rec.Events())
}

func TestNewerUtteranceSupersedesOlder(t *testing.T) {
	rec := events.NewRecorder()
	slow := speakerFunc(func(ctx context.Context, text, language, voice string) ([]byte, error) {
		if text == "first" {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
			}
		}
		return []byte(text), nil
	})
	d := NewDispatcher(Config{}, slow, rec, logger.NewNopLogger(), nil)

	d.Speak("s1", "first", "en")
	d.Speak("s1", "second", "en")
	d.Wait()

	ready := rec.OfType(events.TypeSpeechReady)
	require.Len(t, ready, 1)
	assert.Equal(t, "second", ready[0].Payload()["text"])
	assert.Empty(t, rec.OfType(events.TypeSpeechFallback))
}
