package dataflow

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// jitter randomly delays sends to shake out ordering assumptions. A nil
// jitter never waits
type jitter struct {
	max   time.Duration
	mutex sync.Mutex
	rng   *rand.Rand
}

func newJitter(maxDelay time.Duration, seed uint64) *jitter {
	if maxDelay <= 0 {
		return nil
	}
	return &jitter{
		max: maxDelay,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (j *jitter) wait(ctx context.Context) {
	if j == nil {
		return
	}

	j.mutex.Lock()
	d := time.Duration(j.rng.Int64N(int64(j.max) + 1))
	j.mutex.Unlock()
	if d == 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
