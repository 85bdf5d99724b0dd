package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"mindful-be/internal/pkg/logger"
	"mindful-be/pkg/events"
	"mindful-be/pkg/llm"
	"mindful-be/pkg/llm/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRecorder struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (r *memoryRecorder) RecordMessage(ctx context.Context, sessionID string, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func newManager(provider llm.ChatProvider, recorder Recorder) (*Manager, *events.Recorder) {
	rec := events.NewRecorder()
	return New(Config{SessionID: "s1"}, provider, recorder, rec, logger.NewNopLogger(), nil), rec
}

func TestGroundedReplyCarriesCitation(t *testing.T) {
	provider := mock.New().QueueChat(llm.ChatReply{
		Text:      "Here is what I found.",
		Citations: []llm.Citation{{URI: "https://x", Title: "X"}},
	}, nil)
	m, rec := newManager(provider, nil)

	reply, err := m.Send(context.Background(), SendInput{Text: "What is metta?", Grounded: true})
	require.NoError(t, err)

	assert.Equal(t, []llm.Citation{{URI: "https://x", Title: "X"}}, reply.Citations)

	transcript := m.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, llm.RoleUser, transcript[0].Role)
	assert.Empty(t, transcript[0].Citations)
	assert.Equal(t, llm.RoleModel, transcript[1].Role)
	assert.Len(t, transcript[1].Citations, 1)

	assert.True(t, provider.ChatCalls()[0].Grounded)
	assert.Equal(t, 2, rec.Count(events.TypeChatMessageAppended))
}

func TestFailureKeepsUserMessageOnly(t *testing.T) {
	provider := mock.New().QueueChat(llm.ChatReply{}, errors.New("503"))
	m, rec := newManager(provider, nil)

	_, err := m.Send(context.Background(), SendInput{Text: "hello"})
	require.Error(t, err)

	transcript := m.Transcript()
	require.Len(t, transcript, 1)
	assert.Equal(t, llm.RoleUser, transcript[0].Role)
	assert.Equal(t, 1, rec.Count(events.TypeChatMessageAppended))
}

func TestHistoryExcludesNewTurn(t *testing.T) {
	provider := mock.New()
	m, _ := newManager(provider, nil)

	_, err := m.Send(context.Background(), SendInput{Text: "one"})
	require.NoError(t, err)
	_, err = m.Send(context.Background(), SendInput{Text: "two"})
	require.NoError(t, err)

	calls := provider.ChatCalls()
	require.Len(t, calls, 2)
	assert.Empty(t, calls[0].History)
	require.Len(t, calls[1].History, 2)
	assert.Equal(t, "one", calls[1].History[0].Text)
	assert.Equal(t, llm.RoleModel, calls[1].History[1].Role)
	assert.Equal(t, "two", calls[1].Text)
}

func TestEmptyMessageRejected(t *testing.T) {
	m, rec := newManager(mock.New(), nil)

	_, err := m.Send(context.Background(), SendInput{Text: "   "})

	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, rec.Events())
}

func TestImageOnlyMessageAccepted(t *testing.T) {
	provider := mock.New()
	m, _ := newManager(provider, nil)
	img := &llm.Image{MIMEType: "image/jpeg", Data: []byte{1, 2, 3}}

	_, err := m.Send(context.Background(), SendInput{Image: img})
	require.NoError(t, err)

	assert.Equal(t, img, m.Transcript()[0].Image)
	assert.Equal(t, img, provider.ChatCalls()[0].Image)
}

func TestConcurrentSendsAreSerialized(t *testing.T) {
	provider := mock.New()
	m, _ := newManager(provider, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Send(context.Background(), SendInput{Text: "hi"})
		}()
	}
	wg.Wait()

	transcript := m.Transcript()
	require.Len(t, transcript, 10)
	for i, msg := range transcript {
		if i%2 == 0 {
			assert.Equal(t, llm.RoleUser, msg.Role)
		} else {
			assert.Equal(t, llm.RoleModel, msg.Role)
		}
	}
	for i, call := range provider.ChatCalls() {
		assert.Len(t, call.History, 2*i)
	}
}

func TestRecorderFailureDoesNotUndoAppend(t *testing.T) {
	recorder := &memoryRecorder{err: errors.New("db down")}
	m, _ := newManager(mock.New(), recorder)

	_, err := m.Send(context.Background(), SendInput{Text: "hi"})
	require.NoError(t, err)

	assert.Equal(t, 2, m.Len())
	assert.Len(t, recorder.msgs, 2)
}

func TestSeedOnlyFillsEmptyTranscript(t *testing.T) {
	m, _ := newManager(mock.New(), nil)
	m.Seed([]Message{{Role: llm.RoleUser, Text: "earlier"}})
	m.Seed([]Message{{Role: llm.RoleUser, Text: "ignored"}})

	transcript := m.Transcript()
	require.Len(t, transcript, 1)
	assert.Equal(t, "earlier", transcript[0].Text)
}

func TestTranscriptIsACopy(t *testing.T) {
	provider := mock.New().QueueChat(llm.ChatReply{Text: "a", Citations: []llm.Citation{{URI: "u", Title: "t"}}}, nil)
	m, _ := newManager(provider, nil)
	_, err := m.Send(context.Background(), SendInput{Text: "q"})
	require.NoError(t, err)

	snap := m.Transcript()
	snap[1].Citations[0].Title = "changed"

	assert.Equal(t, "t", m.Transcript()[1].Citations[0].Title)
}
