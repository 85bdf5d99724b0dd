package mock

import (
	"context"
	"sync"

	"mindful-be/pkg/live"
)

// LiveDialer opens loopback channels that answer every sent frame with the
// same PCM payload.
type LiveDialer struct {
	mu    sync.Mutex
	Err   error
	dials int
	last  *LoopbackChannel
}

func (d *LiveDialer) Dial(ctx context.Context, opts live.DialOptions) (live.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.Err != nil {
		return nil, d.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.last = &LoopbackChannel{echo: make(chan string, 64), closed: make(chan struct{})}
	return d.last, nil
}

func (d *LiveDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Last returns the most recently opened channel.
func (d *LiveDialer) Last() *LoopbackChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

type LoopbackChannel struct {
	mu     sync.Mutex
	sent   int
	echo   chan string
	once   sync.Once
	closed chan struct{}
}

func (c *LoopbackChannel) SendAudio(ctx context.Context, chunk live.AudioChunk) error {
	select {
	case <-c.closed:
		return live.ErrClosed
	default:
	}
	c.mu.Lock()
	c.sent++
	c.mu.Unlock()
	select {
	case c.echo <- chunk.Data:
	default:
	}
	return nil
}

func (c *LoopbackChannel) Receive(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.closed:
		return "", live.ErrClosed
	case data := <-c.echo:
		return data, nil
	}
}

func (c *LoopbackChannel) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *LoopbackChannel) Sent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

func (c *LoopbackChannel) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
