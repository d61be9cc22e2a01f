package dataflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/simon020286/go-dataflow/builder"
	"github.com/simon020286/go-dataflow/log"
	"github.com/simon020286/go-dataflow/mailbox"
	"github.com/simon020286/go-dataflow/models"
	"github.com/simon020286/go-dataflow/observer"
	"github.com/simon020286/go-dataflow/steps"
)

var (
	// ErrTerminated is returned by Start after Terminate, and wrapped by the
	// error of every run Terminate cancelled
	ErrTerminated = errors.New("graph terminated")

	// ErrRunCanceled is wrapped by the error of a run whose context was
	// cancelled before the root finished
	ErrRunCanceled = errors.New("run canceled")
)

// Option configures a Graph at build time
type Option func(*Graph)

// WithOptimize applies the rewrite pass before the graph is planned
func WithOptimize() Option {
	return func(g *Graph) {
		g.optimize = true
	}
}

// WithLogger sets the logger used for node lifecycle records. Variants that
// drop values report them through it, scoped to their run and node
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithJitter delays every message the engine sends by a random duration up
// to maxDelay. Each sender sleeps before its own sends, so per-sender order is
// kept while deliveries from different senders are reordered
func WithJitter(maxDelay time.Duration, seed uint64) Option {
	return func(g *Graph) {
		g.jitter = newJitter(maxDelay, seed)
	}
}

// WithListener registers a listener for run and node events
func WithListener(listener models.EventListener) Option {
	return func(g *Graph) {
		g.eventBus.addListener(listener)
	}
}

// WithObserver wraps the root in a relay reporting to target under token
func WithObserver(target observer.Target, token observer.Token) Option {
	return func(g *Graph) {
		g.target = target
		g.token = token
	}
}

// plan is the validated shape of one node
type plan struct {
	id       string
	spec     models.Spec
	label    string
	children []*plan
}

// Graph is a built step tree. Every call to Start runs it with fresh step
// instances, so several runs may be in flight at once
type Graph struct {
	spec     models.Spec
	root     *plan
	logger   *slog.Logger
	jitter   *jitter
	eventBus *eventBus
	optimize bool
	target   observer.Target
	token    observer.Token

	ctx        context.Context
	cancel     context.CancelFunc
	mutex      sync.Mutex
	runs       map[string]*Run
	wg         sync.WaitGroup
	terminated bool
}

// Build validates spec and every descendant, returning a runnable graph.
// Construction errors are wrapped with the path of the offending node
func Build(spec models.Spec, opts ...Option) (*Graph, error) {
	g := &Graph{
		logger:   slog.Default(),
		eventBus: newEventBus(),
		runs:     make(map[string]*Run),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.optimize {
		optimized, err := optimize(spec, rootID)
		if err != nil {
			return nil, err
		}
		spec = optimized
	}
	if g.target != nil {
		spec = steps.Relay(g.target, g.token, false, spec)
	}

	root, err := planNode(spec, rootID)
	if err != nil {
		return nil, err
	}

	g.spec = spec
	g.root = root
	g.ctx, g.cancel = context.WithCancel(context.Background())
	return g, nil
}

const rootID = "root"

func childID(parent string, i int) string {
	return parent + "." + strconv.Itoa(i)
}

func planNode(spec models.Spec, id string) (*plan, error) {
	step, children, err := builder.CreateStep(spec)
	if err != nil {
		return nil, fmt.Errorf("node %s (%s): %w", id, spec.Variant, err)
	}

	p := &plan{
		id:    id,
		spec:  spec,
		label: step.Describe(),
	}
	for i, child := range children {
		cp, err := planNode(child, childID(id, i))
		if err != nil {
			return nil, err
		}
		p.children = append(p.children, cp)
	}
	return p, nil
}

// Spec returns the specification the graph runs, after optimization
func (g *Graph) Spec() models.Spec {
	return g.spec
}

// AddListener adds a listener to receive events from the graph
func (g *Graph) AddListener(listener models.EventListener) {
	g.eventBus.addListener(listener)
}

// Start launches one run in the background and delivers payload to the
// root. The run stops early when ctx is cancelled
func (g *Graph) Start(ctx context.Context, payload any) (*Run, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.terminated {
		return nil, ErrTerminated
	}

	run := newRun(ctx, g)
	root, err := g.instantiate(g.root, nil, 0, run)
	if err != nil {
		run.stop()
		return nil, err
	}
	g.runs[run.id] = run

	g.spawn(root, run)
	g.wg.Go(run.monitor)

	g.eventBus.EmitRunStarted(run.id)
	g.logger.Debug("Run started", log.RunID(run.id))

	root.mbox.Send(envelope{kind: envStart, data: payload})
	return run, nil
}

// Execute starts a run and waits for its root emissions
func (g *Graph) Execute(ctx context.Context, payload any) ([]any, error) {
	run, err := g.Start(ctx, payload)
	if err != nil {
		return nil, err
	}
	return run.Wait(ctx)
}

// Terminate cancels every run in flight and waits for all node actors to
// exit. Observers receive nothing further from cancelled runs
func (g *Graph) Terminate() {
	g.mutex.Lock()
	if g.terminated {
		g.mutex.Unlock()
		return
	}
	g.terminated = true
	g.mutex.Unlock()

	g.cancel()
	g.wg.Wait()
	g.eventBus.Wait()
}

// Running returns the number of runs that have not finished yet
func (g *Graph) Running() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return len(g.runs)
}

func (g *Graph) forget(run *Run) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	delete(g.runs, run.id)
}

func (g *Graph) instantiate(
	p *plan, parent *node, index models.ChildID, run *Run,
) (*node, error) {
	step, _, err := builder.CreateStep(p.spec)
	if err != nil {
		return nil, fmt.Errorf("node %s (%s): %w", p.id, p.spec.Variant, err)
	}
	if ls, ok := step.(models.LoggerSetter); ok {
		ls.SetLogger(g.logger.With(log.RunID(run.id), log.NodeID(p.id)))
	}

	n := &node{
		id:      p.id,
		variant: p.spec.Variant,
		step:    step,
		index:   index,
		parent:  parent,
		pending: len(p.children),
		mbox:    mailbox.New[envelope](),
		run:     run,
	}
	for i, cp := range p.children {
		child, err := g.instantiate(cp, n, models.ChildID(i), run)
		if err != nil {
			n.close()
			return nil, err
		}
		n.children = append(n.children, child)
	}
	return n, nil
}

// spawn starts one actor per node of the tree
func (g *Graph) spawn(n *node, run *Run) {
	run.nodes.Add(1)
	g.wg.Go(func() {
		defer run.nodes.Done()
		n.loop()
	})
	for _, child := range n.children {
		g.spawn(child, run)
	}
}
