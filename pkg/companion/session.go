// Package companion assembles one client's orchestrator: the turn
// sequencer, chat transcript and live voice manager behind a mode
// coordinator, sharing a rolling context and an event emitter.
package companion

import (
	"context"
	"sync"
	"time"

	"mindful-be/internal/pkg/logger"
	"mindful-be/pkg/chat"
	"mindful-be/pkg/events"
	"mindful-be/pkg/live"
	"mindful-be/pkg/llm"
	"mindful-be/pkg/locale"
	"mindful-be/pkg/metrics"
	"mindful-be/pkg/mode"
	"mindful-be/pkg/rolling"
	"mindful-be/pkg/sequencer"
)

type Config struct {
	TimeUnit         time.Duration
	RequestTimeout   time.Duration
	RollingCapacity  int
	FrameSize        int
	InputSampleRate  int
	OutputSampleRate int
}

type Deps struct {
	Guide    llm.Guide
	Chat     llm.ChatProvider
	Live     live.Dialer
	Store    rolling.Store
	Recorder chat.Recorder
	Emitter  events.Emitter
	Logger   logger.ILogger
	Metrics  *metrics.Metrics
	Catalog  *locale.Catalog
}

type Preferences struct {
	Language   string `json:"language"`
	TTSEnabled bool   `json:"tts_enabled"`
	Track      string `json:"track"`
}

type Snapshot struct {
	ID             string             `json:"session_id"`
	Mode           mode.Mode          `json:"mode"`
	Sequencer      sequencer.Snapshot `json:"sequencer"`
	RollingContext []string           `json:"rolling_context"`
	Transcript     []chat.Message     `json:"transcript"`
	LiveState      live.State         `json:"live_state"`
	Preferences    Preferences        `json:"preferences"`
	CreatedAt      time.Time          `json:"created_at"`
}

type Session struct {
	ID        string
	CreatedAt time.Time

	Sequencer  *sequencer.Sequencer
	Chat       *chat.Manager
	Live       *live.Manager
	Mode       *mode.Coordinator
	Microphone *live.FeedSource

	mu     sync.RWMutex
	prefs  Preferences
	closed bool
}

// Open builds a session. The rolling context is loaded from deps.Store when
// one is given; a load failure is logged and the session starts empty.
func Open(ctx context.Context, id string, cfg Config, deps Deps, prefs Preferences) *Session {
	if deps.Emitter == nil {
		deps.Emitter = events.Discard
	}
	if deps.Catalog == nil {
		deps.Catalog = locale.Default()
	}
	cfg.RollingCapacity = rolling.ClampCapacity(cfg.RollingCapacity)
	if prefs.Language == "" || !deps.Catalog.Supports(prefs.Language) {
		prefs.Language = locale.English
	}
	prefs.Language = locale.Normalize(prefs.Language)

	var rc *rolling.Context
	if deps.Store != nil {
		var err error
		rc, err = rolling.Open(ctx, deps.Store, id, cfg.RollingCapacity)
		if err != nil {
			deps.Logger.Warn("Companion", "Failed to load rolling context, starting empty", map[string]interface{}{
				"session_id": id,
				"error":      err.Error(),
			})
		}
	} else {
		rc = rolling.New(cfg.RollingCapacity)
	}

	seq := sequencer.New(sequencer.Config{
		SessionID:      id,
		TimeUnit:       cfg.TimeUnit,
		RequestTimeout: cfg.RequestTimeout,
		Catalog:        deps.Catalog,
	}, deps.Guide, rc, deps.Emitter, deps.Logger, deps.Metrics)

	transcript := chat.New(chat.Config{
		SessionID: id,
		Timeout:   cfg.RequestTimeout,
	}, deps.Chat, deps.Recorder, deps.Emitter, deps.Logger, deps.Metrics)

	mic := live.NewFeedSource()
	liveMgr := live.NewManager(live.Config{
		SessionID:        id,
		FrameSize:        cfg.FrameSize,
		InputSampleRate:  cfg.InputSampleRate,
		OutputSampleRate: cfg.OutputSampleRate,
	}, deps.Live, mic, live.NewEventPlayer(id, deps.Emitter), nil, deps.Emitter, deps.Logger, deps.Metrics)

	return &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		Sequencer:  seq,
		Chat:       transcript,
		Live:       liveMgr,
		Mode:       mode.New(id, seq, transcript, liveMgr, deps.Emitter, deps.Logger),
		Microphone: mic,
		prefs:      prefs,
	}
}

// Submit routes input through the mode coordinator, defaulting the language
// to the session preference.
func (s *Session) Submit(ctx context.Context, in mode.Input) (mode.Outcome, error) {
	if in.Language == "" {
		in.Language = s.Preferences().Language
	}
	return s.Mode.SubmitInput(ctx, in)
}

func (s *Session) SetMode(ctx context.Context, m mode.Mode) (mode.Mode, error) {
	return s.Mode.SetMode(ctx, m)
}

func (s *Session) Preferences() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// PreferencesUpdate carries optional changes; nil fields are left alone.
type PreferencesUpdate struct {
	Language   *string
	TTSEnabled *bool
	Track      *string
}

func (s *Session) UpdatePreferences(u PreferencesUpdate) Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Language != nil && *u.Language != "" {
		s.prefs.Language = locale.Normalize(*u.Language)
	}
	if u.TTSEnabled != nil {
		s.prefs.TTSEnabled = *u.TTSEnabled
	}
	if u.Track != nil {
		s.prefs.Track = *u.Track
	}
	return s.prefs
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:             s.ID,
		Mode:           s.Mode.Mode(),
		Sequencer:      s.Sequencer.Snapshot(),
		RollingContext: s.Sequencer.RollingContext(),
		Transcript:     s.Chat.Transcript(),
		LiveState:      s.Live.State(),
		Preferences:    s.Preferences(),
		CreatedAt:      s.CreatedAt,
	}
}

func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close stops the live session and the current guidance turn. It is safe to
// call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.Mode.Close()
	s.Sequencer.Close()
}
