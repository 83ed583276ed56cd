package storage

import (
	"log/slog"
	"sync"

	"markestedt/hotkeyrelay/broadcast"
)

const defaultRecorderQueue = 256

// Recorder writes published fire-events to the database off the publish
// path. Events that arrive while the queue is full are dropped.
type Recorder struct {
	db    *DB
	queue chan Fire
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts a recorder writing to db.
func NewRecorder(db *DB) *Recorder {
	r := &Recorder{
		db:    db,
		queue: make(chan Fire, defaultRecorderQueue),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

// Observe matches broadcast.Observer.
func (r *Recorder) Observe(ev broadcast.Event, delivered int) {
	f := Fire{
		Timestamp: ev.At,
		Combo:     ev.Combo.String(),
		Source:    ev.Source,
		Delivered: delivered,
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- f:
	default:
		slog.Warn("History queue full, dropping fire", "combo", f.Combo)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for f := range r.queue {
		if err := r.db.SaveFire(&f); err != nil {
			slog.Warn("Failed to record fire", "combo", f.Combo, "error", err)
		}
	}
}

// Close flushes queued events and stops the writer. It does not close db.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}
