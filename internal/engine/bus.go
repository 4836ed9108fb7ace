package engine

import (
	"slices"
	"sync"
	"time"
)

// ChangeType names what part of an engine changed
type ChangeType string

const (
	ChangeSession   ChangeType = "session_updated"
	ChangeExecution ChangeType = "execution_updated"
	ChangeControls  ChangeType = "controls_updated"
	ChangeReset     ChangeType = "instance_reset"
	ChangeCleanup   ChangeType = "instance_cleaned_up"
)

// Change is published after every successful mutation of an engine
type Change struct {
	InstanceID string     `json:"instanceId"`
	Kind       Kind       `json:"kind"`
	SessionID  string     `json:"sessionId,omitempty"`
	Type       ChangeType `json:"type"`
	Version    uint64     `json:"version"`
	At         time.Time  `json:"at"`
}

// Bus fans out changes to subscribers. Slow subscribers miss changes rather
// than block the publisher.
type Bus struct {
	mu          sync.Mutex
	subscribers []chan Change
	closed      bool
}

// NewBus creates a new change bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make([]chan Change, 0),
	}
}

// Subscribe returns a buffered channel of changes and a func that removes
// the subscription. On a closed bus the channel is already closed.
func (b *Bus) Subscribe(buffer int) (<-chan Change, func()) {
	ch := make(chan Change, max(buffer, 1))

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subscribers = append(b.subscribers, ch)

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.unsubscribe(ch) })
	}
}

func (b *Bus) unsubscribe(ch chan Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := slices.Index(b.subscribers, ch)
	if idx < 0 {
		return
	}
	b.subscribers = slices.Delete(b.subscribers, idx, idx+1)
	close(ch)
}

// Publish sends a change to all subscribers
func (b *Bus) Publish(c Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- c:
		default:
			// Subscriber is slow, skip
		}
	}
}

// Close closes every subscription. Publishing on a closed bus is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
