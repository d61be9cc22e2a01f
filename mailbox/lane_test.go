package mailbox

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, mb *Mailbox[T]) T {
	t.Helper()
	select {
	case got := <-mb.Receive():
		return got
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	var zero T
	return zero
}

func TestLanesAreReused(t *testing.T) {
	warm := New[int]()
	warm.Close()
	before, _ := lanes.size()

	for i := range 500 {
		mb := New[int]()
		mb.Send(i)
		if i%2 == 0 {
			assert.Equal(t, i, receive(t, mb))
		}
		mb.Close()
	}

	after, idle := lanes.size()
	assert.Equal(t, before, after)
	assert.Equal(t, after, idle)
}

func TestStaleMessagesAreDropped(t *testing.T) {
	first := New[string]()
	first.Send("stale")
	first.Send("stale again")
	stale := first.lane
	first.Close()

	second := New[string]()
	defer second.Close()
	require.Same(t, stale, second.lane)
	assert.NotEqual(t, first.gen, second.gen)

	second.Send("fresh")
	assert.Equal(t, "fresh", receive(t, second))
}

func TestCloseWhileSendersRun(t *testing.T) {
	for range 50 {
		mb := New[int]()

		var wg sync.WaitGroup
		for s := range 4 {
			wg.Go(func() {
				for i := range 20 {
					mb.Send(s*100 + i)
				}
			})
		}
		<-mb.Receive()
		mb.Close()
		wg.Wait()

		_, ok := <-mb.Receive()
		assert.False(t, ok)
	}
}

func TestNilInterfaceMessage(t *testing.T) {
	mb := New[any]()
	defer mb.Close()

	mb.Send(nil)
	mb.Send(1)
	assert.Nil(t, receive(t, mb))
	assert.Equal(t, 1, receive(t, mb))
}
