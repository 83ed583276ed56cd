package platform

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// DefaultDispatchQueue bounds callbacks waiting to run. OS hook procedures
// must return quickly, so they only enqueue.
const DefaultDispatchQueue = 256

// Dispatcher runs hook callbacks in order on a single goroutine and
// recovers from panics so one bad callback cannot stop delivery.
type Dispatcher struct {
	queue    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// NewDispatcher starts a dispatcher with the given queue size.
func NewDispatcher(size int) *Dispatcher {
	if size <= 0 {
		size = DefaultDispatchQueue
	}
	d := &Dispatcher{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue never blocks; the signal is dropped when the queue is full.
func (d *Dispatcher) Enqueue(fn func()) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case d.queue <- fn:
		return true
	default:
		slog.Warn("Hook dispatch queue full, dropping key signal")
		return false
	}
}

func (d *Dispatcher) run() {
	for {
		select {
		case <-d.done:
			return
		case fn := <-d.queue:
			d.call(fn)
		}
	}
}

func (d *Dispatcher) call(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Hook callback panicked", "panic", rec, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Stop ends the dispatch goroutine. Queued callbacks are discarded.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
}
