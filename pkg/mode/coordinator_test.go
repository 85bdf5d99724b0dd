package mode

import (
	"context"
	"errors"
	"sync"
	"testing"

	"mindful-be/internal/pkg/logger"
	"mindful-be/pkg/chat"
	"mindful-be/pkg/events"
	"mindful-be/pkg/llm"
	"mindful-be/pkg/sequencer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// journal records calls from every collaborator in order.
type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) add(call string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, call)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...)
}

type fakeGuidance struct {
	j      *journal
	inputs []sequencer.Input
}

func (f *fakeGuidance) Submit(in sequencer.Input) uint64 {
	f.j.add("guidance.submit")
	f.inputs = append(f.inputs, in)
	return uint64(len(f.inputs))
}

type fakeChat struct {
	j   *journal
	err error
}

func (f *fakeChat) Send(ctx context.Context, in chat.SendInput) (chat.Message, error) {
	f.j.add("chat.send")
	if f.err != nil {
		return chat.Message{}, f.err
	}
	return chat.Message{Role: llm.RoleModel, Text: "echo: " + in.Text}, nil
}

type fakeLive struct {
	j          *journal
	connectErr error
	open       bool
}

func (f *fakeLive) Connect(ctx context.Context) error {
	f.j.add("live.connect")
	if f.connectErr != nil {
		return f.connectErr
	}
	f.open = true
	return nil
}

func (f *fakeLive) Disconnect() {
	f.j.add("live.disconnect")
	f.open = false
}

type fixture struct {
	coord    *Coordinator
	j        *journal
	guidance *fakeGuidance
	chat     *fakeChat
	live     *fakeLive
	events   *events.Recorder
}

func newFixture() *fixture {
	j := &journal{}
	f := &fixture{
		j:        j,
		guidance: &fakeGuidance{j: j},
		chat:     &fakeChat{j: j},
		live:     &fakeLive{j: j},
		events:   events.NewRecorder(),
	}
	f.coord = New("s1", f.guidance, f.chat, f.live, f.events, logger.NewNopLogger())
	return f
}

func TestDefaultsToGuidance(t *testing.T) {
	f := newFixture()
	assert.Equal(t, Guidance, f.coord.Mode())
}

func TestParse(t *testing.T) {
	m, err := Parse("ZEN")
	require.NoError(t, err)
	assert.Equal(t, Guidance, m)

	m, err = Parse(" Live ")
	require.NoError(t, err)
	assert.Equal(t, Live, m)

	_, err = Parse("karaoke")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestSetModeRejectsUnknown(t *testing.T) {
	f := newFixture()

	got, err := f.coord.SetMode(context.Background(), Mode("karaoke"))

	assert.ErrorIs(t, err, ErrUnknownMode)
	assert.Equal(t, Guidance, got)
	assert.Empty(t, f.events.Events())
}

func TestSubmitRoutesByMode(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	out, err := f.coord.SubmitInput(ctx, Input{Text: "I feel overwhelmed", Voice: true})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), out.Generation)
	assert.True(t, f.guidance.inputs[0].Voice)

	_, err = f.coord.SetMode(ctx, Chat)
	require.NoError(t, err)
	out, err = f.coord.SubmitInput(ctx, Input{Text: "hello", Grounded: true})
	require.NoError(t, err)
	require.NotNil(t, out.Reply)
	assert.Equal(t, "echo: hello", out.Reply.Text)

	_, err = f.coord.SetMode(ctx, Live)
	require.NoError(t, err)
	out, err = f.coord.SubmitInput(ctx, Input{Text: "ignored"})
	require.NoError(t, err)
	assert.True(t, out.Ignored)

	assert.Equal(t, []string{"guidance.submit", "chat.send", "live.connect"}, f.j.list())
}

func TestGuidanceRejectsEmptyInput(t *testing.T) {
	f := newFixture()

	_, err := f.coord.SubmitInput(context.Background(), Input{Text: "  "})

	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Empty(t, f.guidance.inputs)
}

func TestChatFailureIsReturned(t *testing.T) {
	f := newFixture()
	f.chat.err = errors.New("503")
	_, err := f.coord.SetMode(context.Background(), Chat)
	require.NoError(t, err)

	out, err := f.coord.SubmitInput(context.Background(), Input{Text: "hello"})

	assert.Error(t, err)
	assert.Nil(t, out.Reply)
}

func TestLeavingLiveDisconnectsFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.coord.SetMode(ctx, Live)
	require.NoError(t, err)
	got, err := f.coord.SetMode(ctx, Chat)
	require.NoError(t, err)

	assert.Equal(t, Chat, got)
	assert.False(t, f.live.open)
	assert.Equal(t, []string{"live.connect", "live.disconnect"}, f.j.list())

	changes := f.events.OfType(events.TypeModeChanged)
	require.Len(t, changes, 2)
	assert.Equal(t, "chat", changes[1].Payload()["mode"])
	assert.Equal(t, "live", changes[1].Payload()["previous"])
}

func TestLiveConnectFailureRevertsToGuidance(t *testing.T) {
	f := newFixture()
	f.live.connectErr = errors.New("permission denied")
	_, err := f.coord.SetMode(context.Background(), Chat)
	require.NoError(t, err)

	got, err := f.coord.SetMode(context.Background(), Live)

	require.NoError(t, err)
	assert.Equal(t, Guidance, got)
	assert.Equal(t, Guidance, f.coord.Mode())

	changes := f.events.OfType(events.TypeModeChanged)
	require.Len(t, changes, 3)
	last := changes[2].Payload()
	assert.Equal(t, "guidance", last["mode"])
	assert.Equal(t, true, last["reverted"])
}

func TestSameModeIsNoop(t *testing.T) {
	f := newFixture()

	got, err := f.coord.SetMode(context.Background(), Guidance)

	require.NoError(t, err)
	assert.Equal(t, Guidance, got)
	assert.Empty(t, f.events.Events())
}

func TestSelectingLiveAgainReconnects(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.coord.SetMode(ctx, Live)
	require.NoError(t, err)
	_, err = f.coord.SetMode(ctx, Live)
	require.NoError(t, err)

	assert.Equal(t, []string{"live.connect", "live.disconnect", "live.connect"}, f.j.list())
	assert.Len(t, f.events.OfType(events.TypeModeChanged), 1)
}

func TestCloseDisconnectsLive(t *testing.T) {
	f := newFixture()
	_, err := f.coord.SetMode(context.Background(), Live)
	require.NoError(t, err)

	f.coord.Close()

	assert.False(t, f.live.open)
}
