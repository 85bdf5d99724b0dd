package live

import (
	"encoding/base64"
	"sync"
	"sync/atomic"
	"time"

	"mindful-be/pkg/events"
)

// Clock is the playback clock inbound audio is scheduled against.
type Clock interface {
	Now() time.Duration
}

type wallClock struct {
	origin time.Time
}

// NewWallClock returns a clock that starts at zero now.
func NewWallClock() Clock {
	return wallClock{origin: time.Now()}
}

func (c wallClock) Now() time.Duration {
	return time.Since(c.origin)
}

// Scheduler places buffers back to back: each starts at the later of the
// clock and the end of the previous buffer.
type Scheduler struct {
	mu      sync.Mutex
	clock   Clock
	nextEnd time.Duration
}

func NewScheduler(clock Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

func (s *Scheduler) Schedule(duration time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := s.clock.Now()
	if s.nextEnd > start {
		start = s.nextEnd
	}
	s.nextEnd = start + duration
	return start
}

func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEnd = 0
}

type Buffer struct {
	Seq        uint64
	PCM        []byte
	Samples    []float32
	SampleRate int
	Start      time.Duration
	Duration   time.Duration
}

// Player outputs scheduled buffers.
type Player interface {
	Play(buf Buffer)
}

// EventPlayer forwards scheduled buffers to the client as LIVE_AUDIO events.
type EventPlayer struct {
	sessionID string
	emitter   events.Emitter
	played    atomic.Uint64
}

func NewEventPlayer(sessionID string, emitter events.Emitter) *EventPlayer {
	return &EventPlayer{sessionID: sessionID, emitter: emitter}
}

func (p *EventPlayer) Play(buf Buffer) {
	p.played.Add(1)
	p.emitter.Emit(events.New(events.TypeLiveAudio, p.sessionID, map[string]interface{}{
		"seq":         buf.Seq,
		"audio":       base64.StdEncoding.EncodeToString(buf.PCM),
		"sample_rate": buf.SampleRate,
		"start_ms":    buf.Start.Milliseconds(),
		"duration_ms": buf.Duration.Milliseconds(),
	}))
}

func (p *EventPlayer) Played() uint64 {
	return p.played.Load()
}
