package mailbox

import (
	"sync"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"
)

type (
	// lane is a caravan topic with its only producer and consumer. A lane
	// is never closed: closing a topic or consumer while the producer is
	// still inside put races on the cursor's ready channel, so a closed
	// mailbox hands its lane back for the next one
	lane struct {
		prod topic.Producer[item]
		cons topic.Consumer[item]
		gen  uint64
	}

	// item tags a message with the generation of the mailbox that sent it.
	// Items of an earlier generation are dropped by the lane's next owner
	item struct {
		gen uint64
		msg any
	}

	lanePool struct {
		mu    sync.Mutex
		idle  []*lane
		total int
	}
)

// lanes is shared by every mailbox of the process. Its size is bounded by
// the peak number of mailboxes open at the same time
var lanes lanePool

func (p *lanePool) get() *lane {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.idle); n > 0 {
		l := p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		l.gen++
		return l
	}
	queue := caravan.NewTopic[item]()
	p.total++
	return &lane{
		prod: queue.NewProducer(),
		cons: queue.NewConsumer(),
		gen:  1,
	}
}

func (p *lanePool) put(l *lane) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idle = append(p.idle, l)
}

func (p *lanePool) size() (total, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total, len(p.idle)
}
