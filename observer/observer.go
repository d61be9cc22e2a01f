// Package observer implements the actor that receives relayed emit/done
// streams and the ordered collector that turns one stream into a single
// synchronous result
package observer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/simon020286/go-dataflow/mailbox"
)

// Observer owns a mailbox shared by any number of token streams. Messages
// for tokens other than the one being collected are kept, in arrival order,
// for later collections. Collections of different tokens may run
// concurrently: one of them drains the mailbox at a time and stashes what
// belongs to the others
type Observer struct {
	id        string
	mbox      *mailbox.Mailbox[Message]
	recv      chan struct{}
	mu        sync.Mutex
	changed   chan struct{}
	stash     []Message
	abandoned map[Token]struct{}
}

const (
	// DefaultTimeout bounds Collect
	DefaultTimeout = 5 * time.Second

	// NoTimeout makes CollectTimeout wait until done arrives
	NoTimeout time.Duration = 0
)

var (
	ErrTimeout = errors.New("collect timed out")
	ErrClosed  = errors.New("observer closed")
)

var _ Target = (*Observer)(nil)

// New creates an observer with an empty mailbox
func New() *Observer {
	return &Observer{
		id:        uuid.NewString()[:8],
		mbox:      mailbox.New[Message](),
		recv:      make(chan struct{}, 1),
		changed:   make(chan struct{}),
		abandoned: map[Token]struct{}{},
	}
}

// Send delivers msg to the observer's mailbox. Messages sent after Close
// are dropped
func (o *Observer) Send(msg Message) {
	o.mbox.Send(msg)
}

// Close releases the mailbox. Pending and future collections fail with
// ErrClosed
func (o *Observer) Close() {
	o.mbox.Close()
}

// Collect waits up to DefaultTimeout for the stream of token to finish
func (o *Observer) Collect(token Token) ([]any, error) {
	return o.CollectTimeout(token, DefaultTimeout)
}

// CollectTimeout returns the data emitted on token, in arrival order, once
// its done message arrives. If timeout elapses first, the data seen so far
// is discarded and an error matching ErrTimeout is returned. A timeout of
// NoTimeout (or less) waits without a deadline
func (o *Observer) CollectTimeout(token Token, timeout time.Duration) ([]any, error) {
	if timeout <= NoTimeout {
		return o.collect(context.Background(), token, nil)
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	return o.collect(context.Background(), token, deadline.C)
}

// CollectContext is CollectTimeout bounded by ctx instead of a duration.
// Cancellation is reported as ErrTimeout wrapping the context's error
func (o *Observer) CollectContext(ctx context.Context, token Token) ([]any, error) {
	return o.collect(ctx, token, nil)
}

// Pending returns the number of stashed messages that belong to tokens not
// collected yet
func (o *Observer) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.stash)
}

func (o *Observer) String() string {
	return "observer-" + o.id
}

func (o *Observer) collect(
	ctx context.Context, token Token, deadline <-chan time.Time,
) ([]any, error) {
	res := []any{}
	for {
		part, done, changed := o.takeStashed(token)
		res = append(res, part...)
		if done {
			return res, nil
		}

		select {
		case o.recv <- struct{}{}:
			return o.receive(ctx, token, deadline, res)
		case <-changed:
		case <-deadline:
			return nil, o.timeout(token, nil)
		case <-ctx.Done():
			return nil, o.timeout(token, ctx.Err())
		}
	}
}

// receive drains the mailbox on behalf of every collection until token's
// done arrives. The caller holds o.recv
func (o *Observer) receive(
	ctx context.Context, token Token, deadline <-chan time.Time, res []any,
) ([]any, error) {
	defer func() { <-o.recv }()

	part, done, _ := o.takeStashed(token)
	res = append(res, part...)
	if done {
		return res, nil
	}

	for {
		select {
		case msg, ok := <-o.mbox.Receive():
			if !ok {
				return nil, fmt.Errorf("%w: token %s", ErrClosed, token)
			}
			if msg.Token != token {
				o.keep(msg)
				continue
			}
			if o.dropped(msg) {
				continue
			}
			if msg.Kind == KindDone {
				return res, nil
			}
			res = append(res, msg.Data)

		case <-deadline:
			return nil, o.timeout(token, nil)

		case <-ctx.Done():
			return nil, o.timeout(token, ctx.Err())
		}
	}
}

// takeStashed removes the stashed messages of token up to and including
// its first done. The returned channel is closed when the stash changes
func (o *Observer) takeStashed(token Token) ([]any, bool, <-chan struct{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	res, done := o.drainStash(token)
	return res, done, o.changed
}

// keep stashes a message of another token and wakes waiting collections
func (o *Observer) keep(msg Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.isAbandoned(msg) {
		return
	}
	o.stash = append(o.stash, msg)
	close(o.changed)
	o.changed = make(chan struct{})
}

func (o *Observer) drainStash(token Token) ([]any, bool) {
	var res []any
	done := false
	kept := o.stash[:0]
	for _, msg := range o.stash {
		if done || msg.Token != token {
			kept = append(kept, msg)
			continue
		}
		if msg.Kind == KindDone {
			done = true
			continue
		}
		res = append(res, msg.Data)
	}
	clear(o.stash[len(kept):])
	o.stash = kept
	return res, done
}

// timeout abandons the rest of token's stream: stashed messages are
// discarded and later ones are dropped as they arrive, until its done. A
// stream whose done never arrives stays abandoned for the observer's
// lifetime, so a timed out token must not be reused
func (o *Observer) timeout(token Token, cause error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, done := o.drainStash(token); !done {
		o.abandoned[token] = struct{}{}
	}
	if cause != nil {
		return fmt.Errorf("%w: token %s: %w", ErrTimeout, token, cause)
	}
	return fmt.Errorf("%w: token %s", ErrTimeout, token)
}

// dropped reports whether msg belongs to an abandoned stream
func (o *Observer) dropped(msg Message) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.isAbandoned(msg)
}

func (o *Observer) isAbandoned(msg Message) bool {
	if _, ok := o.abandoned[msg.Token]; !ok {
		return false
	}
	if msg.Kind == KindDone {
		delete(o.abandoned, msg.Token)
	}
	return true
}
