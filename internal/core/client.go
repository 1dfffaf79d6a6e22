package core

import (
	"sync"
	"sync/atomic"
)

const defaultClientBuffer = 32

// Client is one open connection as seen by the core layer.
type Client struct {
	ID     string
	Events chan *Event

	// mu orders deliveries so nothing is enqueued after the first miss.
	mu         sync.Mutex
	overflowed bool
	overflow   chan struct{}
	dropped    atomic.Uint64
}

// NewClient constructs a client with a buffered event channel.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = defaultClientBuffer
	}
	return &Client{
		ID:       id,
		Events:   make(chan *Event, buffer),
		overflow: make(chan struct{}),
	}
}

// Overflow is closed once the client fails to take an event. Events already
// queued are a gap-free prefix; nothing is queued after it. The owner of the
// connection must tear it down.
func (c *Client) Overflow() <-chan struct{} {
	return c.overflow
}

// Dropped returns how many events were not delivered because the client fell behind.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// ReportError queues a local error for this client only.
func (c *Client) ReportError(code, msg string) bool {
	return c.deliver(&Event{Kind: EventError, Error: &CoreError{Code: code, Message: msg}})
}

// deliver enqueues without blocking. A full buffer cuts the client off.
func (c *Client) deliver(ev *Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.overflowed {
		c.dropped.Add(1)
		return false
	}
	select {
	case c.Events <- ev:
		return true
	default:
		c.overflowed = true
		close(c.overflow)
		c.dropped.Add(1)
		return false
	}
}
