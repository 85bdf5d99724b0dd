// Package sequencer drives the visible lifecycle of a guidance turn:
// Pending, Thinking with a rotating monologue, then Resolved or Failed.
package sequencer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"mindful-be/internal/pkg/logger"
	"mindful-be/pkg/events"
	"mindful-be/pkg/llm"
	"mindful-be/pkg/locale"
	"mindful-be/pkg/metrics"
	"mindful-be/pkg/rolling"
)

type State string

const (
	StateIdle     State = "idle"
	StatePending  State = "pending"
	StateThinking State = "thinking"
	StateResolved State = "resolved"
	StateFailed   State = "failed"
)

const (
	rotateUnits = 1.5
	settleUnits = 1.5
	revertUnits = 3
)

type Input struct {
	Text     string
	Image    *llm.Image
	Voice    bool
	Language string
}

type Config struct {
	SessionID      string
	TimeUnit       time.Duration
	RequestTimeout time.Duration
	Catalog        *locale.Catalog
}

type Snapshot struct {
	State      State              `json:"state"`
	Thought    string             `json:"thought"`
	Reply      *llm.GuidanceReply `json:"reply,omitempty"`
	Generation uint64             `json:"generation"`
}

// Sequencer is single-flight: a new submission supersedes the previous turn,
// cancelling its request and timers. Completions of superseded turns are
// discarded by generation.
type Sequencer struct {
	mu sync.Mutex

	guide   llm.Guide
	rolling *rolling.Context
	emitter events.Emitter
	logger  logger.ILogger
	metrics *metrics.Metrics
	catalog *locale.Catalog

	sessionID string
	unit      time.Duration
	timeout   time.Duration

	state      State
	thought    string
	reply      *llm.GuidanceReply
	generation uint64
	current    *turn
	closed     bool

	persistMu sync.Mutex
	rotations int32
}

type turn struct {
	gen      uint64
	language string
	cancel   context.CancelFunc
	stopRot  chan struct{}
	rotating bool
	timers   []*time.Timer
}

func New(cfg Config, guide llm.Guide, ctxStore *rolling.Context, emitter events.Emitter, log logger.ILogger, m *metrics.Metrics) *Sequencer {
	if cfg.TimeUnit <= 0 {
		cfg.TimeUnit = time.Second
	}
	if cfg.Catalog == nil {
		cfg.Catalog = locale.Default()
	}
	if ctxStore == nil {
		ctxStore = rolling.New(rolling.DefaultCapacity)
	}
	if emitter == nil {
		emitter = events.Discard
	}
	return &Sequencer{
		guide:     guide,
		rolling:   ctxStore,
		emitter:   emitter,
		logger:    log,
		metrics:   m,
		catalog:   cfg.Catalog,
		sessionID: cfg.SessionID,
		unit:      cfg.TimeUnit,
		timeout:   cfg.RequestTimeout,
		state:     StateIdle,
	}
}

func (s *Sequencer) units(n float64) time.Duration {
	return time.Duration(n * float64(s.unit))
}

// Submit starts a new guidance turn and returns its generation. It does not
// wait for the provider.
func (s *Sequencer) Submit(in Input) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.generation
	}

	s.stopTurnLocked(s.current)
	if s.state == StateFailed {
		// a failed turn only ever leaves through Idle
		s.setStateLocked(StateIdle)
	}

	s.generation++
	ctx, cancel := context.WithCancel(context.Background())
	if s.timeout > 0 {
		ctx, cancel = withTimeout(ctx, cancel, s.timeout)
	}
	t := &turn{
		gen:      s.generation,
		language: in.Language,
		cancel:   cancel,
		stopRot:  make(chan struct{}),
		rotating: true,
	}
	s.current = t
	s.reply = nil

	s.setStateLocked(StatePending)
	s.emitLocked(events.TypeTurnStarted, map[string]interface{}{
		"turn":  t.gen,
		"voice": in.Voice,
		"image": in.Image != nil,
	})
	s.setStateLocked(StateThinking)

	phrases := s.catalog.For(in.Language).Analyzing
	s.setThoughtLocked(phrases[0], t.gen)
	atomic.AddInt32(&s.rotations, 1)
	go s.rotate(t, phrases)

	req := llm.GuidanceRequest{
		Text:     in.Text,
		Language: in.Language,
		Context:  s.rolling.Snapshot(),
		Image:    in.Image,
		Voice:    in.Voice,
	}
	go s.run(ctx, t, req)

	return t.gen
}

func withTimeout(parent context.Context, parentCancel context.CancelFunc, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, d)
	return ctx, func() {
		cancel()
		parentCancel()
	}
}

func (s *Sequencer) rotate(t *turn, phrases []string) {
	defer atomic.AddInt32(&s.rotations, -1)

	ticker := time.NewTicker(s.units(rotateUnits))
	defer ticker.Stop()

	idx := 0
	for {
		select {
		case <-t.stopRot:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.current != t || !t.rotating {
				s.mu.Unlock()
				return
			}
			idx = (idx + 1) % len(phrases)
			s.setThoughtLocked(phrases[idx], t.gen)
			s.mu.Unlock()
		}
	}
}

func (s *Sequencer) run(ctx context.Context, t *turn, req llm.GuidanceRequest) {
	started := time.Now()
	reply, err := s.guide.RequestGuidance(ctx, req)
	t.cancel()
	s.metrics.ObserveProvider("guidance", time.Since(started))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != t || s.closed {
		s.logger.Debug("Sequencer", "Discarded superseded guidance completion", map[string]interface{}{
			"session_id": s.sessionID,
			"turn":       t.gen,
		})
		return
	}

	s.stopRotationLocked(t)

	if err != nil {
		s.failLocked(t, err)
		return
	}

	if reply.ThoughtTrace == "" {
		s.resolveLocked(t, reply)
		return
	}

	s.setThoughtLocked(reply.ThoughtTrace, t.gen)
	t.timers = append(t.timers, time.AfterFunc(s.units(settleUnits), func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.current != t || s.closed {
			return
		}
		s.resolveLocked(t, reply)
	}))
}

func (s *Sequencer) resolveLocked(t *turn, reply llm.GuidanceReply) {
	r := reply
	s.reply = &r
	s.setStateLocked(StateResolved)

	var snapshot []string
	if reply.Fallback {
		snapshot = s.rolling.Snapshot()
		s.metrics.RecordGuidanceTurn("fallback")
	} else {
		snapshot = s.rolling.Append(reply.Realm)
		s.metrics.RecordGuidanceTurn("resolved")
		go s.persist()
	}

	s.emitLocked(events.TypeTurnResolved, map[string]interface{}{
		"turn":          t.gen,
		"thought_trace": reply.ThoughtTrace,
		"realm":         reply.Realm,
		"advice":        reply.Advice,
		"action_intent": string(reply.ActionIntent),
		"urgency":       string(llm.Urgency(reply)),
		"fallback":      reply.Fallback,
		"context":       snapshot,
		"language":      t.language,
	})
}

func (s *Sequencer) persist() {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.rolling.Persist(ctx); err != nil {
		s.logger.Error("Sequencer", "Failed to persist rolling context", map[string]interface{}{
			"session_id": s.sessionID,
			"error":      err.Error(),
		})
	}
}

func (s *Sequencer) failLocked(t *turn, err error) {
	s.logger.Warn("Sequencer", "Guidance turn failed", map[string]interface{}{
		"session_id": s.sessionID,
		"turn":       t.gen,
		"error":      err.Error(),
	})
	s.metrics.RecordGuidanceTurn("failed")

	s.setThoughtLocked(s.catalog.For(t.language).ErrorGeneric, t.gen)
	s.setStateLocked(StateFailed)
	s.emitLocked(events.TypeTurnFailed, map[string]interface{}{
		"turn":    t.gen,
		"message": s.thought,
	})

	t.timers = append(t.timers, time.AfterFunc(s.units(revertUnits), func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.current != t || s.state != StateFailed {
			return
		}
		s.setStateLocked(StateIdle)
	}))
}

func (s *Sequencer) stopRotationLocked(t *turn) {
	if t == nil || !t.rotating {
		return
	}
	t.rotating = false
	close(t.stopRot)
}

func (s *Sequencer) stopTurnLocked(t *turn) {
	if t == nil {
		return
	}
	s.stopRotationLocked(t)
	for _, timer := range t.timers {
		timer.Stop()
	}
	t.timers = nil
	t.cancel()
}

func (s *Sequencer) setStateLocked(next State) {
	if s.state == next {
		return
	}
	prev := s.state
	s.state = next
	s.emitLocked(events.TypeSequencerStateChanged, map[string]interface{}{
		"from": string(prev),
		"to":   string(next),
	})
}

func (s *Sequencer) setThoughtLocked(thought string, gen uint64) {
	s.thought = thought
	s.emitLocked(events.TypeThoughtUpdated, map[string]interface{}{
		"turn":    gen,
		"thought": thought,
	})
}

func (s *Sequencer) emitLocked(eventType string, data map[string]interface{}) {
	s.emitter.Emit(events.New(eventType, s.sessionID, data))
}

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sequencer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{State: s.state, Thought: s.thought, Generation: s.generation}
	if s.reply != nil {
		r := *s.reply
		snap.Reply = &r
	}
	return snap
}

// RollingContext exposes the labels the next request will carry.
func (s *Sequencer) RollingContext() []string {
	return s.rolling.Snapshot()
}

// Close cancels the current turn and all of its timers. Later submissions
// are ignored.
func (s *Sequencer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.generation++
	s.stopTurnLocked(s.current)
	s.current = nil
}
