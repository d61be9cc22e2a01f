// Package mailbox provides the unbounded, FIFO-per-sender mailbox owned by
// every actor of a running graph
package mailbox

import (
	"sync"

	"github.com/kode4food/caravan/message"
)

// Mailbox is an unbounded queue with many senders and a single owner that
// drains it. Sends never wait on the owner; sends to a closed mailbox are
// dropped
type Mailbox[T any] struct {
	lane *lane
	gen  uint64
	out  chan T
	stop chan struct{}
	fwd  sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New creates an open mailbox
func New[T any]() *Mailbox[T] {
	l := lanes.get()
	m := &Mailbox[T]{
		lane: l,
		gen:  l.gen,
		out:  make(chan T),
		stop: make(chan struct{}),
	}
	m.fwd.Go(m.forward)
	return m
}

// Send appends msg to the mailbox. It reports false when the mailbox is
// closed and the message was dropped
func (m *Mailbox[T]) Send(msg T) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false
	}
	message.Send(m.lane.prod, item{gen: m.gen, msg: msg})
	return true
}

// Receive returns the channel the owner drains. It is closed once the
// mailbox is closed
func (m *Mailbox[T]) Receive() <-chan T {
	return m.out
}

// Close stops accepting messages, drops the undelivered ones and returns
// the underlying lane to the pool
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stop)
	m.fwd.Wait()
	lanes.put(m.lane)
}

// IsClosed reports whether Close has been called
func (m *Mailbox[T]) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Mailbox[T]) forward() {
	defer close(m.out)
	for {
		select {
		case <-m.stop:
			return
		case it := <-m.lane.cons.Receive():
			if it.gen != m.gen {
				continue
			}
			msg, _ := it.msg.(T)
			select {
			case m.out <- msg:
			case <-m.stop:
				return
			}
		}
	}
}
