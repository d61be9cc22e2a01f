package observer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simon020286/go-dataflow/observer"
)

func TestCollectInOrder(t *testing.T) {
	obs := observer.New()
	defer obs.Close()

	token := observer.NewToken()
	obs.Send(observer.Emit(token, 1))
	obs.Send(observer.Emit(token, "two"))
	obs.Send(observer.Emit(token, 3.0))
	obs.Send(observer.Done(token))

	res, err := obs.Collect(token)
	require.NoError(t, err)
	assert.Equal(t, []any{1, "two", 3.0}, res)
}

func TestCollectEmptyStream(t *testing.T) {
	obs := observer.New()
	defer obs.Close()

	token := observer.NewToken()
	obs.Send(observer.Done(token))

	res, err := obs.Collect(token)
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)
}

func TestCollectTimeout(t *testing.T) {
	obs := observer.New()
	defer obs.Close()

	token := observer.NewToken()
	obs.Send(observer.Emit(token, "partial"))

	timeout := 50 * time.Millisecond
	start := time.Now()
	res, err := obs.CollectTimeout(token, timeout)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, observer.ErrTimeout)
	assert.Nil(t, res)
	assert.GreaterOrEqual(t, elapsed, timeout)
}

func TestTimeoutDistinctFromEmpty(t *testing.T) {
	obs := observer.New()
	defer obs.Close()

	finished := observer.NewToken()
	obs.Send(observer.Done(finished))
	res, err := obs.CollectTimeout(finished, time.Second)
	require.NoError(t, err)
	assert.Empty(t, res)

	stuck := observer.NewToken()
	res, err = obs.CollectTimeout(stuck, 10*time.Millisecond)
	assert.ErrorIs(t, err, observer.ErrTimeout)
	assert.Nil(t, res)
}

func TestAbandonedStreamIsDropped(t *testing.T) {
	obs := observer.New()
	defer obs.Close()

	late := observer.NewToken()
	_, err := obs.CollectTimeout(late, 10*time.Millisecond)
	require.ErrorIs(t, err, observer.ErrTimeout)

	other := observer.NewToken()
	obs.Send(observer.Emit(late, "late"))
	obs.Send(observer.Emit(other, "kept"))
	obs.Send(observer.Done(late))
	obs.Send(observer.Done(other))

	res, err := obs.Collect(other)
	require.NoError(t, err)
	assert.Equal(t, []any{"kept"}, res)
	assert.Zero(t, obs.Pending())
}

func TestMultiplexedTokens(t *testing.T) {
	obs := observer.New()
	defer obs.Close()

	a := observer.NewToken()
	b := observer.NewToken()
	assert.NotEqual(t, a, b)

	obs.Send(observer.Emit(a, "a1"))
	obs.Send(observer.Emit(b, "b1"))
	obs.Send(observer.Emit(a, "a2"))
	obs.Send(observer.Done(a))
	obs.Send(observer.Emit(b, "b2"))
	obs.Send(observer.Done(b))

	res, err := obs.Collect(b)
	require.NoError(t, err)
	assert.Equal(t, []any{"b1", "b2"}, res)
	assert.Equal(t, 3, obs.Pending())

	res, err = obs.Collect(a)
	require.NoError(t, err)
	assert.Equal(t, []any{"a1", "a2"}, res)
	assert.Zero(t, obs.Pending())
}

func TestSharedTokenKeepsSecondStream(t *testing.T) {
	obs := observer.New()
	defer obs.Close()

	token := observer.NewToken()
	other := observer.NewToken()
	obs.Send(observer.Emit(other, "x"))
	obs.Send(observer.Emit(token, 1))
	obs.Send(observer.Done(token))
	obs.Send(observer.Emit(token, 2))
	obs.Send(observer.Done(token))
	obs.Send(observer.Done(other))

	res, err := obs.Collect(other)
	require.NoError(t, err)
	assert.Equal(t, []any{"x"}, res)

	res, err = obs.Collect(token)
	require.NoError(t, err)
	assert.Equal(t, []any{1}, res)

	res, err = obs.Collect(token)
	require.NoError(t, err)
	assert.Equal(t, []any{2}, res)
}

func TestPerSenderOrderUnderConcurrency(t *testing.T) {
	obs := observer.New()
	defer obs.Close()

	const senders = 8
	const perSender = 25

	tokens := make([]observer.Token, senders)
	for i := range tokens {
		tokens[i] = observer.NewToken()
	}

	var wg sync.WaitGroup
	for s, token := range tokens {
		wg.Go(func() {
			for i := range perSender {
				obs.Send(observer.Emit(token, s*1000+i))
			}
			obs.Send(observer.Done(token))
		})
	}

	for s := len(tokens) - 1; s >= 0; s-- {
		res, err := obs.Collect(tokens[s])
		require.NoError(t, err)
		require.Len(t, res, perSender)
		for i, v := range res {
			assert.Equal(t, s*1000+i, v)
		}
	}
	wg.Wait()
}

func TestConcurrentCollectionsKeepTheirDeadlines(t *testing.T) {
	obs := observer.New()
	defer obs.Close()

	slow := observer.NewToken()
	slowRes := make(chan []any, 1)
	go func() {
		res, err := obs.CollectTimeout(slow, 5*time.Second)
		assert.NoError(t, err)
		slowRes <- res
	}()
	time.Sleep(20 * time.Millisecond)

	never := observer.NewToken()
	start := time.Now()
	_, err := obs.CollectTimeout(never, 100*time.Millisecond)
	assert.ErrorIs(t, err, observer.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)

	finished := observer.NewToken()
	obs.Send(observer.Emit(finished, "f"))
	obs.Send(observer.Done(finished))
	start = time.Now()
	res, err := obs.CollectTimeout(finished, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []any{"f"}, res)
	assert.Less(t, time.Since(start), time.Second)

	obs.Send(observer.Emit(slow, "s"))
	obs.Send(observer.Done(slow))
	select {
	case res := <-slowRes:
		assert.Equal(t, []any{"s"}, res)
	case <-time.After(time.Second):
		t.Fatal("slow collection did not finish")
	}
	assert.Zero(t, obs.Pending())
}

func TestTimedOutWaiterLeavesNothingStashed(t *testing.T) {
	obs := observer.New()
	defer obs.Close()

	holder := observer.NewToken()
	holderDone := make(chan struct{})
	go func() {
		defer close(holderDone)
		_, err := obs.CollectTimeout(holder, 5*time.Second)
		assert.NoError(t, err)
	}()
	time.Sleep(20 * time.Millisecond)

	waiter := observer.NewToken()
	obs.Send(observer.Emit(waiter, "partial"))
	_, err := obs.CollectTimeout(waiter, 50*time.Millisecond)
	require.ErrorIs(t, err, observer.ErrTimeout)

	obs.Send(observer.Emit(waiter, "late"))
	obs.Send(observer.Done(waiter))
	obs.Send(observer.Done(holder))
	<-holderDone
	assert.Zero(t, obs.Pending())
}

func TestCollectContextCancelled(t *testing.T) {
	obs := observer.New()
	defer obs.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := obs.CollectContext(ctx, observer.NewToken())
	assert.ErrorIs(t, err, observer.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnboundedWait(t *testing.T) {
	obs := observer.New()
	defer obs.Close()

	token := observer.NewToken()
	go func() {
		time.Sleep(20 * time.Millisecond)
		obs.Send(observer.Emit(token, "slow"))
		obs.Send(observer.Done(token))
	}()

	res, err := obs.CollectTimeout(token, observer.NoTimeout)
	require.NoError(t, err)
	assert.Equal(t, []any{"slow"}, res)
}

func TestSendAfterClose(t *testing.T) {
	obs := observer.New()
	token := observer.NewToken()
	obs.Close()
	obs.Send(observer.Done(token))

	_, err := obs.CollectTimeout(token, 20*time.Millisecond)
	assert.True(t,
		errors.Is(err, observer.ErrClosed) || errors.Is(err, observer.ErrTimeout),
	)
}

func TestMessageKinds(t *testing.T) {
	token := observer.Token("t")
	assert.Equal(t, observer.Message{
		Kind: observer.KindEmit, Token: token, Data: 7,
	}, observer.Emit(token, 7))
	assert.Equal(t, observer.Message{
		Kind: observer.KindDone, Token: token,
	}, observer.Done(token))
	assert.Equal(t, "emit", observer.KindEmit.String())
	assert.Equal(t, "done", observer.KindDone.String())
}
