package broadcast

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrClientClosed is returned when sending to a connection that has gone away.
	ErrClientClosed = errors.New("client closed")
	// ErrQueueFull is returned when a connection is not draining its queue.
	ErrQueueFull = errors.New("client queue full")
)

// DefaultQueueSize is the per-connection outbound queue length.
const DefaultQueueSize = 32

// Sink is one subscribed push channel. Send must not block.
type Sink interface {
	ID() string
	Send(data []byte) error
	Close()
}

// Client is a Sink backed by a bounded queue. The connection worker that
// owns the network socket drains Frames and watches Done.
type Client struct {
	id     string
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewClient creates a client with the given queue size.
func NewClient(queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Client{
		id:     uuid.NewString(),
		frames: make(chan []byte, queueSize),
		done:   make(chan struct{}),
	}
}

// ID returns the connection identifier used in logs.
func (c *Client) ID() string { return c.id }

// Send enqueues a payload without blocking.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.frames <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// Frames yields queued payloads in publish order.
func (c *Client) Frames() <-chan []byte { return c.frames }

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close marks the client as gone. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}
