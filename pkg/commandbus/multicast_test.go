package commandbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvWithin(t *testing.T, sub *Subscription[int]) (int, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return sub.Recv(ctx)
}

func TestMulticastDelivery(t *testing.T) {
	mc := NewMulticast[int](10)
	a := mc.Subscribe()
	b := mc.Subscribe()
	defer a.Close()
	defer b.Close()

	assert.Equal(t, 2, mc.Publish(1))
	assert.Equal(t, 2, mc.Publish(2))

	for _, sub := range []*Subscription[int]{a, b} {
		v, err := recvWithin(t, sub)
		require.NoError(t, err)
		assert.Equal(t, 1, v)
		v, err = recvWithin(t, sub)
		require.NoError(t, err)
		assert.Equal(t, 2, v)
	}
}

func TestMulticastLateSubscriberSeesOnlyNewValues(t *testing.T) {
	mc := NewMulticast[int](10)
	mc.Publish(1)

	sub := mc.Subscribe()
	defer sub.Close()
	mc.Publish(2)

	v, err := recvWithin(t, sub)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = sub.TryRecv()
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestMulticastLag(t *testing.T) {
	var missedTotal uint64
	mc := NewMulticast[int](100)
	mc.OnMissed = func(n uint64) { missedTotal += n }

	slow := mc.Subscribe()
	fast := mc.Subscribe()
	defer slow.Close()
	defer fast.Close()

	for i := 0; i < 150; i++ {
		mc.Publish(i)
		if i < 100 {
			v, err := fast.TryRecv()
			require.NoError(t, err)
			assert.Equal(t, i, v)
		}
	}

	_, err := recvWithin(t, slow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLagged))
	var lagged *LaggedError
	require.ErrorAs(t, err, &lagged)
	assert.Equal(t, uint64(50), lagged.Missed)
	assert.Equal(t, uint64(50), missedTotal)

	// After the lag report the oldest retained values follow in order.
	v, err := recvWithin(t, slow)
	require.NoError(t, err)
	assert.Equal(t, 50, v)
	assert.Equal(t, 99, slow.Pending())

	// The other subscriber is unaffected.
	assert.Equal(t, 50, fast.Pending())
}

func TestMulticastRecvWaits(t *testing.T) {
	mc := NewMulticast[int](4)
	sub := mc.Subscribe()
	defer sub.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		mc.Publish(42)
	}()

	v, err := recvWithin(t, sub)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestMulticastRecvHonorsContext(t *testing.T) {
	mc := NewMulticast[int](4)
	sub := mc.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := sub.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscriptionClose(t *testing.T) {
	var counts []int
	mc := NewMulticast[int](4)
	mc.OnSubscribersChanged = func(n int) { counts = append(counts, n) }

	sub := mc.Subscribe()
	other := mc.Subscribe()
	defer other.Close()
	mc.Publish(1)

	sub.Close()
	sub.Close()

	_, err := recvWithin(t, sub)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 1, mc.SubscriberCount())
	assert.Equal(t, []int{1, 2, 1}, counts)

	// Publishing after a subscriber left still reaches the others.
	assert.Equal(t, 1, mc.Publish(2))

	select {
	case _, ok := <-sub.Ready():
		assert.False(t, ok)
	default:
		t.Fatal("ready channel should be closed")
	}
}

func TestSubscriptionCloseSignalsReadyOnce(t *testing.T) {
	mc := NewMulticast[int](4)
	sub := mc.Subscribe()

	mc.Publish(1)
	mc.Publish(2)
	require.Equal(t, 2, sub.Pending())

	sub.Close()

	select {
	case _, ok := <-sub.Ready():
		assert.False(t, ok, "buffered wakeup must not survive close")
	default:
		t.Fatal("ready channel should be closed")
	}
	assert.Equal(t, 0, sub.Pending())
}

func TestMulticastClose(t *testing.T) {
	mc := NewMulticast[int](4)
	sub := mc.Subscribe()

	mc.Close()

	_, err := recvWithin(t, sub)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, mc.Publish(1))

	late := mc.Subscribe()
	_, err = late.TryRecv()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewMulticastDefaultBacklog(t *testing.T) {
	mc := NewMulticast[int](0)
	sub := mc.Subscribe()
	defer sub.Close()

	for i := 0; i < DefaultBacklog; i++ {
		mc.Publish(i)
	}
	assert.Equal(t, DefaultBacklog, sub.Pending())

	_, err := sub.TryRecv()
	assert.NoError(t, err)
}
