package dataflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/simon020286/go-dataflow/builder"
	"github.com/simon020286/go-dataflow/log"
)

// Run is one execution of a Graph. Values the root forwards are recorded
// in emission order
type Run struct {
	id      string
	graph   *Graph
	ctx     context.Context
	cancel  context.CancelCauseFunc
	release func() bool
	started time.Time
	nodes   sync.WaitGroup
	done    chan struct{}
	once    sync.Once

	mutex  sync.Mutex
	values []any
	err    error
}

func newRun(parent context.Context, g *Graph) *Run {
	ctx, cancel := context.WithCancelCause(parent)
	return &Run{
		id:      builder.GenerateRunID(),
		graph:   g,
		ctx:     ctx,
		cancel:  cancel,
		release: context.AfterFunc(g.ctx, func() { cancel(ErrTerminated) }),
		started: time.Now(),
		done:    make(chan struct{}),
	}
}

// ID returns the unique identifier of the run
func (r *Run) ID() string {
	return r.id
}

// Done is closed once the root has finished or the run was cancelled
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Cancel stops the run's actors without signalling completion
func (r *Run) Cancel() {
	r.cancel(ErrRunCanceled)
}

// Wait blocks until the run finishes and returns the values the root
// forwarded. A run stopped before its root finished returns an error
// wrapping ErrRunCanceled or ErrTerminated
func (r *Run) Wait(ctx context.Context) ([]any, error) {
	select {
	case <-r.done:
	default:
		select {
		case <-r.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	res := slices.Clone(r.values)
	if res == nil {
		res = []any{}
	}
	return res, nil
}

func (r *Run) record(value any) {
	r.mutex.Lock()
	r.values = append(r.values, value)
	r.mutex.Unlock()
}

func (r *Run) finish(err error) {
	r.once.Do(func() {
		r.mutex.Lock()
		r.err = err
		count := len(r.values)
		r.mutex.Unlock()
		close(r.done)

		bus := r.graph.eventBus
		if err != nil {
			bus.EmitRunTerminated(r.id, err)
			r.graph.logger.Debug("Run stopped", log.RunID(r.id), log.Error(err))
			return
		}
		duration := time.Since(r.started)
		bus.EmitRunCompleted(r.id, duration, count)
		r.graph.logger.Debug("Run completed",
			log.RunID(r.id),
			slog.Duration("duration", duration),
			slog.Int("values", count))
	})
}

// monitor waits for every actor of the run to exit, then releases the run
func (r *Run) monitor() {
	r.nodes.Wait()
	if cause := context.Cause(r.ctx); cause != nil {
		if errors.Is(cause, ErrTerminated) || errors.Is(cause, ErrRunCanceled) {
			r.finish(cause)
		} else {
			r.finish(fmt.Errorf("%w: %w", ErrRunCanceled, cause))
		}
	}
	r.stop()
	r.graph.forget(r)
}

func (r *Run) stop() {
	r.release()
	r.cancel(nil)
}
