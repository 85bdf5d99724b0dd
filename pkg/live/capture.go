package live

import (
	"context"
	"sync"
)

const feedBuffer = 64

// Capture is an open microphone stream.
type Capture interface {
	Frames() <-chan []float32
	Close() error
}

// CaptureSource opens microphone streams.
type CaptureSource interface {
	Open(ctx context.Context, sampleRate int) (Capture, error)
}

// FeedSource is a microphone backed by samples pushed from the client's
// stream connection. Open fails with ErrNoMicrophone while no client is
// attached. At most one capture is open at a time.
type FeedSource struct {
	mu       sync.Mutex
	attached int
	active   *feedCapture
	dropped  uint64
}

func NewFeedSource() *FeedSource {
	return &FeedSource{}
}

// Attach marks a client microphone as available. The returned func detaches
// it and closes the open capture once no client remains.
func (f *FeedSource) Attach() func() {
	f.mu.Lock()
	f.attached++
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.attached--
			if f.attached == 0 && f.active != nil {
				f.active.closeLocked()
			}
		})
	}
}

func (f *FeedSource) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attached > 0
}

func (f *FeedSource) Open(ctx context.Context, sampleRate int) (Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.attached == 0 {
		return nil, ErrNoMicrophone
	}
	if f.active != nil {
		f.active.closeLocked()
	}
	c := &feedCapture{src: f, frames: make(chan []float32, feedBuffer)}
	f.active = c
	return c, nil
}

// Feed hands samples to the open capture. It never blocks; samples are
// dropped when no capture is open or its buffer is full.
func (f *FeedSource) Feed(samples []float32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		return false
	}
	select {
	case f.active.frames <- samples:
		return true
	default:
		f.dropped++
		return false
	}
}

func (f *FeedSource) FeedBytes(data []byte) (bool, error) {
	samples, err := DecodeFloat32LE(data)
	if err != nil {
		return false, err
	}
	return f.Feed(samples), nil
}

// Capturing reports whether a capture is currently open.
func (f *FeedSource) Capturing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active != nil
}

type feedCapture struct {
	src    *FeedSource
	frames chan []float32
	closed bool
}

func (c *feedCapture) Frames() <-chan []float32 {
	return c.frames
}

func (c *feedCapture) Close() error {
	c.src.mu.Lock()
	defer c.src.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *feedCapture) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.frames)
	if c.src.active == c {
		c.src.active = nil
	}
}
