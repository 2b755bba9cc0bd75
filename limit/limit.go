// Package limit provides a FIFO connection limiter used to bound in-flight
// backend calls per model client.
package limit

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Limiter admits at most capacity concurrent holders; additional callers
// wait in arrival order. The zero value is not usable; construct with New.
type Limiter struct {
	mu       sync.Mutex
	capacity int
	inFlight int
	waiters  list.List // of *waiter
}

type waiter struct {
	ready   chan struct{}
	granted bool
}

// New creates a limiter with the given capacity. Capacity is fixed for the
// limiter's lifetime; non-positive capacity panics.
func New(capacity int) *Limiter {
	if capacity <= 0 {
		panic("limit: capacity must be positive")
	}
	return &Limiter{capacity: capacity}
}

// Acquire blocks until a slot is free and returns a Ticket for it. Callers
// are admitted in arrival order. If ctx is cancelled while waiting, the
// caller is removed from the queue without consuming a slot and the context
// error is returned.
func (l *Limiter) Acquire(ctx context.Context) (*Ticket, error) {
	l.mu.Lock()
	if l.waiters.Len() == 0 && l.inFlight < l.capacity {
		l.inFlight++
		l.mu.Unlock()
		return &Ticket{l: l}, nil
	}
	w := &waiter{ready: make(chan struct{})}
	elem := l.waiters.PushBack(w)
	l.mu.Unlock()

	select {
	case <-w.ready:
		return &Ticket{l: l}, nil
	case <-ctx.Done():
		l.mu.Lock()
		if w.granted {
			// The slot was handed over concurrently with cancellation.
			// Pass it on instead of leaking it.
			l.handOffLocked()
		} else {
			l.waiters.Remove(elem)
		}
		l.mu.Unlock()
		return nil, ctx.Err()
	}
}

// handOffLocked gives the current slot to the oldest waiter, or frees it if
// the queue is empty. Callers must hold l.mu.
func (l *Limiter) handOffLocked() {
	if elem := l.waiters.Front(); elem != nil {
		w := l.waiters.Remove(elem).(*waiter)
		w.granted = true
		close(w.ready)
		return
	}
	l.inFlight--
}

func (l *Limiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handOffLocked()
}

// Capacity returns the fixed slot count.
func (l *Limiter) Capacity() int {
	return l.capacity
}

// InFlight returns the number of currently held slots.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

// Waiting returns the number of queued callers.
func (l *Limiter) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waiters.Len()
}

// Ticket is a capacity-slot handle issued by Acquire. It must be released
// exactly once.
type Ticket struct {
	l        *Limiter
	released atomic.Bool
}

// Release returns the slot and admits the oldest queued caller, if any.
// Releasing a ticket twice is a programming error and panics rather than
// corrupting the in-flight count.
func (t *Ticket) Release() {
	if t.released.Swap(true) {
		panic("limit: ticket released twice")
	}
	t.l.release()
}
