// Package rolling keeps the bounded history of realm labels that is fed into
// every guidance request.
package rolling

import (
	"context"
	"fmt"
	"sync"
)

const DefaultCapacity = 5

// Store persists a rolling context between process runs.
type Store interface {
	Load(ctx context.Context, key string) ([]string, error)
	Save(ctx context.Context, key string, labels []string) error
}

// Context is an ordered FIFO of realm labels, oldest first.
type Context struct {
	mu       sync.RWMutex
	labels   []string
	capacity int
	store    Store
	key      string
}

// ClampCapacity bounds a configured capacity to (0, DefaultCapacity]. Out of
// range values fall back to DefaultCapacity.
func ClampCapacity(capacity int) int {
	if capacity <= 0 || capacity > DefaultCapacity {
		return DefaultCapacity
	}
	return capacity
}

func New(capacity int) *Context {
	return &Context{capacity: ClampCapacity(capacity)}
}

// Open loads the persisted labels under key and binds the context to store so
// that Persist writes back to it. Stored lists longer than capacity keep their
// newest entries.
func Open(ctx context.Context, store Store, key string, capacity int) (*Context, error) {
	c := New(capacity)
	c.store = store
	c.key = key
	if store == nil {
		return c, nil
	}

	labels, err := store.Load(ctx, key)
	if err != nil {
		return c, fmt.Errorf("failed to load rolling context %s: %w", key, err)
	}
	c.labels = trim(labels, c.capacity)
	return c, nil
}

func (c *Context) Capacity() int {
	return c.capacity
}

func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.labels)
}

// Snapshot returns a copy of the labels, oldest first.
func (c *Context) Snapshot() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Append adds label as the newest entry, evicting the oldest on overflow, and
// returns the resulting snapshot.
func (c *Context) Append(label string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.labels = trim(append(c.labels, label), c.capacity)
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Persist writes the current labels to the bound store, if any.
func (c *Context) Persist(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.store.Save(ctx, c.key, c.Snapshot())
}

func trim(labels []string, capacity int) []string {
	if len(labels) <= capacity {
		return append([]string(nil), labels...)
	}
	return append([]string(nil), labels[len(labels)-capacity:]...)
}
