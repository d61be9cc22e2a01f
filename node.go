package dataflow

import (
	"github.com/simon020286/go-dataflow/log"
	"github.com/simon020286/go-dataflow/mailbox"
	"github.com/simon020286/go-dataflow/models"
)

type envelopeKind uint8

const (
	envStart envelopeKind = iota
	envEmit
	envDone
)

// envelope is a message between node actors of one run
type envelope struct {
	kind  envelopeKind
	child models.ChildID
	data  any
}

// node is the actor owning one step instance. Only its own goroutine
// touches the step
type node struct {
	id       string
	variant  string
	step     models.Step
	index    models.ChildID
	parent   *node
	children []*node
	pending  int
	mbox     *mailbox.Mailbox[envelope]
	run      *Run
}

func (n *node) loop() {
	defer n.mbox.Close()

	for {
		select {
		case <-n.run.ctx.Done():
			return
		case env, ok := <-n.mbox.Receive():
			if !ok {
				return
			}
			if n.handle(env) {
				return
			}
		}
	}
}

// handle processes one envelope and reports whether the node is done
func (n *node) handle(env envelope) bool {
	switch env.kind {
	case envStart:
		n.run.graph.eventBus.EmitNodeStarted(n.run.id, n.id, n.variant)
		n.run.graph.logger.Debug("Node started",
			log.RunID(n.run.id), log.NodeID(n.id), log.Variant(n.variant))

		if res := n.step.Start(env.data); res.Forward {
			n.forward(res.Value)
		}
		if len(n.children) == 0 {
			n.complete(models.LastChild)
			return true
		}
		for _, child := range n.children {
			n.send(child, envelope{kind: envStart, data: env.data})
		}

	case envEmit:
		if res := n.step.Emit(env.child, env.data); res.Forward {
			n.forward(res.Value)
		}

	case envDone:
		n.pending--
		if n.pending > 0 {
			return false
		}
		n.complete(env.child)
		return true
	}
	return false
}

// complete invokes Done on the step and signals done upward
func (n *node) complete(child models.ChildID) {
	n.step.Done(child)
	n.run.graph.eventBus.EmitNodeDone(n.run.id, n.id, int(child))
	n.run.graph.logger.Debug("Node done",
		log.RunID(n.run.id), log.NodeID(n.id), log.Variant(n.variant))

	if n.parent == nil {
		n.run.finish(nil)
		return
	}
	n.send(n.parent, envelope{kind: envDone, child: n.index})
}

func (n *node) forward(value any) {
	n.run.graph.eventBus.EmitNodeEmitted(n.run.id, n.id, value)
	if n.parent == nil {
		n.run.record(value)
		return
	}
	n.send(n.parent, envelope{kind: envEmit, child: n.index, data: value})
}

func (n *node) send(to *node, env envelope) {
	n.run.graph.jitter.wait(n.run.ctx)
	to.mbox.Send(env)
}

// close releases the mailboxes of a tree that was never spawned
func (n *node) close() {
	n.mbox.Close()
	for _, child := range n.children {
		child.close()
	}
}
