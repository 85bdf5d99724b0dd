package companion

import (
	"context"
	"errors"
	"testing"
	"time"

	"mindful-be/internal/pkg/logger"
	"mindful-be/pkg/events"
	"mindful-be/pkg/live"
	"mindful-be/pkg/llm"
	"mindful-be/pkg/llm/mock"
	"mindful-be/pkg/mode"
	"mindful-be/pkg/rolling"
	"mindful-be/pkg/sequencer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unit = 10 * time.Millisecond

func openSession(t *testing.T, provider *mock.Provider, dialer *mock.LiveDialer, store rolling.Store) (*Session, *events.Recorder) {
	t.Helper()
	rec := events.NewRecorder()
	s := Open(context.Background(), "s1", Config{TimeUnit: unit}, Deps{
		Guide:   provider,
		Chat:    provider,
		Live:    dialer,
		Store:   store,
		Emitter: rec,
		Logger:  logger.NewNopLogger(),
	}, Preferences{Language: "vi-VN", TTSEnabled: true})
	t.Cleanup(s.Close)
	return s, rec
}

func TestGuidanceTurnThroughSession(t *testing.T) {
	store := rolling.NewMemoryStore()
	provider := mock.New().QueueGuidance(llm.GuidanceReply{
		ThoughtTrace: "sensing distress",
		Realm:        "Anxiety",
		Advice:       "Breathe with the rain.",
		ActionIntent: llm.IntentPlaySound,
	}, nil)
	s, rec := openSession(t, provider, &mock.LiveDialer{}, store)

	out, err := s.Submit(context.Background(), mode.Input{Text: "I feel overwhelmed"})
	require.NoError(t, err)
	assert.Equal(t, mode.Guidance, out.Mode)

	require.Eventually(t, func() bool {
		return s.Sequencer.State() == sequencer.StateResolved
	}, time.Second, unit/2)

	assert.Equal(t, "vi", provider.GuidanceCalls()[0].Language)
	assert.Equal(t, []string{"Anxiety"}, s.Snapshot().RollingContext)
	require.Eventually(t, func() bool {
		labels, _ := store.Load(context.Background(), "s1")
		return len(labels) == 1
	}, time.Second, unit/2)
	assert.Equal(t, 1, rec.Count(events.TypeTurnResolved))
}

func TestRollingContextRestoredFromStore(t *testing.T) {
	store := rolling.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "s1", []string{"Grief", "Calm"}))

	s, _ := openSession(t, mock.New(), &mock.LiveDialer{}, store)

	assert.Equal(t, []string{"Grief", "Calm"}, s.Snapshot().RollingContext)
}

func TestChatTurnThroughSession(t *testing.T) {
	provider := mock.New().QueueChat(llm.ChatReply{
		Text:      "Metta is loving-kindness.",
		Citations: []llm.Citation{{URI: "https://x", Title: "X"}},
	}, nil)
	s, _ := openSession(t, provider, &mock.LiveDialer{}, nil)

	_, err := s.SetMode(context.Background(), mode.Chat)
	require.NoError(t, err)
	out, err := s.Submit(context.Background(), mode.Input{Text: "What is metta?", Grounded: true})
	require.NoError(t, err)

	require.NotNil(t, out.Reply)
	assert.Len(t, out.Reply.Citations, 1)
	assert.Len(t, s.Snapshot().Transcript, 2)
}

func TestLiveWithoutMicrophoneRevertsToGuidance(t *testing.T) {
	dialer := &mock.LiveDialer{}
	s, _ := openSession(t, mock.New(), dialer, nil)

	got, err := s.SetMode(context.Background(), mode.Live)

	require.NoError(t, err)
	assert.Equal(t, mode.Guidance, got)
	assert.Equal(t, live.StateError, s.Live.State())
	assert.True(t, dialer.Last().Closed())
	assert.False(t, s.Microphone.Capturing())
}

func TestLiveDialFailureRevertsToGuidance(t *testing.T) {
	dialer := &mock.LiveDialer{Err: errors.New("upstream refused")}
	s, _ := openSession(t, mock.New(), dialer, nil)
	defer s.Microphone.Attach()()

	got, err := s.SetMode(context.Background(), mode.Live)

	require.NoError(t, err)
	assert.Equal(t, mode.Guidance, got)
	assert.False(t, s.Microphone.Capturing())
}

func TestLiveLoopbackAndTeardownOnModeSwitch(t *testing.T) {
	dialer := &mock.LiveDialer{}
	s, rec := openSession(t, mock.New(), dialer, nil)
	defer s.Microphone.Attach()()

	got, err := s.SetMode(context.Background(), mode.Live)
	require.NoError(t, err)
	require.Equal(t, mode.Live, got)

	s.Microphone.Feed(make([]float32, live.DefaultFrameSize))
	require.Eventually(t, func() bool {
		return rec.Count(events.TypeLiveAudio) == 1
	}, time.Second, unit/2)

	_, err = s.SetMode(context.Background(), mode.Guidance)
	require.NoError(t, err)
	assert.True(t, dialer.Last().Closed())
	assert.False(t, s.Microphone.Capturing())
	assert.Equal(t, live.StateDisconnected, s.Live.State())
}

func TestUpdatePreferences(t *testing.T) {
	s, _ := openSession(t, mock.New(), &mock.LiveDialer{}, nil)
	lang := "EN"
	off := false

	prefs := s.UpdatePreferences(PreferencesUpdate{Language: &lang, TTSEnabled: &off})

	assert.Equal(t, "en", prefs.Language)
	assert.False(t, prefs.TTSEnabled)
	assert.Equal(t, prefs, s.Snapshot().Preferences)
}
