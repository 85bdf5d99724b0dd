// Package live manages the bidirectional voice channel to the realtime model:
// microphone frames go up as 16-bit PCM, model audio comes back and is
// scheduled gaplessly for playback.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mindful-be/internal/pkg/logger"
	"mindful-be/pkg/events"
	"mindful-be/pkg/metrics"
)

const (
	DefaultFrameSize        = 4096
	DefaultInputSampleRate  = 16000
	DefaultOutputSampleRate = 24000

	SystemInstruction = "You are a gentle Zen master. Speak calmly, slowly, and briefly. Help the user find peace."
)

var (
	ErrNoMicrophone = errors.New("microphone is not available")
	ErrClosed       = errors.New("live channel closed")
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateStreaming    State = "streaming"
	StateError        State = "error"
)

type AudioChunk struct {
	MIMEType string
	Data     string
}

// Channel is an open upstream connection. Receive returns the next base64
// PCM payload, or ErrClosed once the channel is gone.
type Channel interface {
	SendAudio(ctx context.Context, chunk AudioChunk) error
	Receive(ctx context.Context) (string, error)
	Close() error
}

type DialOptions struct {
	SystemInstruction string
	InputSampleRate   int
}

type Dialer interface {
	Dial(ctx context.Context, opts DialOptions) (Channel, error)
}

type Config struct {
	SessionID        string
	FrameSize        int
	InputSampleRate  int
	OutputSampleRate int
}

func (c *Config) withDefaults() {
	if c.FrameSize <= 0 {
		c.FrameSize = DefaultFrameSize
	}
	if c.InputSampleRate <= 0 {
		c.InputSampleRate = DefaultInputSampleRate
	}
	if c.OutputSampleRate <= 0 {
		c.OutputSampleRate = DefaultOutputSampleRate
	}
}

func (c Config) inputMIME() string {
	return fmt.Sprintf("audio/pcm;rate=%d", c.InputSampleRate)
}

// Manager owns at most one live session. Connect tears down any previous
// session first; Disconnect returns once every session goroutine has exited.
type Manager struct {
	mu     sync.Mutex
	state  State
	active *session

	dialer  Dialer
	source  CaptureSource
	player  Player
	clock   Clock
	emitter events.Emitter
	logger  logger.ILogger
	metrics *metrics.Metrics
	cfg     Config
}

func NewManager(cfg Config, dialer Dialer, source CaptureSource, player Player, clock Clock, emitter events.Emitter, log logger.ILogger, m *metrics.Metrics) *Manager {
	cfg.withDefaults()
	if emitter == nil {
		emitter = events.Discard
	}
	if clock == nil {
		clock = NewWallClock()
	}
	return &Manager{
		state:   StateDisconnected,
		dialer:  dialer,
		source:  source,
		player:  player,
		clock:   clock,
		emitter: emitter,
		logger:  log,
		metrics: m,
		cfg:     cfg,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Connected() bool {
	return m.State() == StateStreaming
}

// Connect opens the upstream channel and then the microphone. Either failure
// leaves the manager disconnected with nothing held open.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardownLocked()
	m.setStateLocked(StateConnecting, nil)

	ch, err := m.dialer.Dial(ctx, DialOptions{
		SystemInstruction: SystemInstruction,
		InputSampleRate:   m.cfg.InputSampleRate,
	})
	if err != nil {
		m.metrics.RecordLiveConnect("failed")
		m.setStateLocked(StateError, err)
		m.logger.Error("LiveSession", "Failed to open live channel", map[string]interface{}{
			"session_id": m.cfg.SessionID,
			"error":      err.Error(),
		})
		return fmt.Errorf("live connect: %w", err)
	}

	capture, err := m.source.Open(ctx, m.cfg.InputSampleRate)
	if err != nil {
		_ = ch.Close()
		m.metrics.RecordLiveConnect("no_microphone")
		m.setStateLocked(StateError, err)
		m.logger.Warn("LiveSession", "Microphone unavailable", map[string]interface{}{
			"session_id": m.cfg.SessionID,
			"error":      err.Error(),
		})
		return fmt.Errorf("live connect: %w", err)
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &session{
		channel:   ch,
		capture:   capture,
		cancel:    cancel,
		scheduler: NewScheduler(m.clock),
		framer:    NewFramer(m.cfg.FrameSize),
	}
	m.active = s
	m.metrics.RecordLiveConnect("connected")
	m.metrics.RecordLiveSessionStart()
	m.setStateLocked(StateStreaming, nil)
	m.logger.Info("LiveSession", "Live session opened", map[string]interface{}{
		"session_id": m.cfg.SessionID,
	})

	s.wg.Add(2)
	go m.pumpOutbound(sctx, s)
	go m.pumpInbound(sctx, s)
	return nil
}

// Disconnect is idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.teardownLocked() {
		m.setStateLocked(StateDisconnected, nil)
	}
}

func (m *Manager) teardownLocked() bool {
	s := m.active
	if s == nil {
		return false
	}
	m.active = nil
	s.close()
	s.wg.Wait()
	m.metrics.RecordLiveSessionEnd()
	m.logger.Info("LiveSession", "Live session closed", map[string]interface{}{
		"session_id": m.cfg.SessionID,
	})
	return true
}

// fail ends s from one of its own goroutines, so it must not wait on them.
func (m *Manager) fail(s *session, err error) {
	go func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.active != s {
			return
		}
		m.teardownLocked()
		m.setStateLocked(StateError, err)
	}()
}

func (m *Manager) setStateLocked(state State, err error) {
	m.state = state
	data := map[string]interface{}{"state": string(state)}
	if err != nil {
		data["error"] = err.Error()
	}
	m.emitter.Emit(events.New(events.TypeLiveStateChanged, m.cfg.SessionID, data))
}

func (m *Manager) pumpOutbound(ctx context.Context, s *session) {
	defer s.wg.Done()
	mime := m.cfg.inputMIME()
	frames := s.capture.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case samples, ok := <-frames:
			if !ok {
				if ctx.Err() == nil {
					m.logger.Warn("LiveSession", "Microphone capture ended", map[string]interface{}{
						"session_id": m.cfg.SessionID,
					})
					m.fail(s, ErrNoMicrophone)
				}
				return
			}
			for _, frame := range s.framer.Push(samples) {
				err := s.channel.SendAudio(ctx, AudioChunk{MIMEType: mime, Data: EncodeFrame(frame)})
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					m.logger.Warn("LiveSession", "Failed to send audio frame", map[string]interface{}{
						"session_id": m.cfg.SessionID,
						"error":      err.Error(),
					})
					if errors.Is(err, ErrClosed) {
						m.fail(s, err)
						return
					}
				}
			}
		}
	}
}

func (m *Manager) pumpInbound(ctx context.Context, s *session) {
	defer s.wg.Done()
	var seq uint64
	for {
		payload, err := s.channel.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Warn("LiveSession", "Live channel receive failed", map[string]interface{}{
				"session_id": m.cfg.SessionID,
				"error":      err.Error(),
			})
			m.fail(s, err)
			return
		}

		pcm, samples, err := DecodePayload(payload)
		if err != nil {
			m.logger.Warn("LiveSession", "Dropping undecodable audio", map[string]interface{}{
				"session_id": m.cfg.SessionID,
				"error":      err.Error(),
			})
			continue
		}
		if len(samples) == 0 {
			continue
		}

		duration := SampleDuration(len(samples), m.cfg.OutputSampleRate)
		start := s.scheduler.Schedule(duration)
		seq++
		if m.player != nil {
			m.player.Play(Buffer{
				Seq:        seq,
				PCM:        pcm,
				Samples:    samples,
				SampleRate: m.cfg.OutputSampleRate,
				Start:      start,
				Duration:   duration,
			})
		}
	}
}

type session struct {
	channel   Channel
	capture   Capture
	cancel    context.CancelFunc
	scheduler *Scheduler
	framer    *Framer
	wg        sync.WaitGroup
	once      sync.Once
}

func (s *session) close() {
	s.once.Do(func() {
		s.cancel()
		_ = s.capture.Close()
		_ = s.channel.Close()
	})
}
