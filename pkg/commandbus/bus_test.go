package commandbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/observerai/companion/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) (*Bus, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics()
	bus := New(Options{Metrics: m, Logger: zerolog.Nop()})
	t.Cleanup(bus.Close)
	return bus, m
}

func TestCommandMessageJSON(t *testing.T) {
	data, err := json.Marshal(CommandMessage{Type: MessageTypeCommand, AgentID: "agentA", Action: "toggle"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"command","agentId":"agentA","action":"toggle"}`, string(data))
}

func TestBusSubmit(t *testing.T) {
	t.Run("two submits leave one pending and two stream messages", func(t *testing.T) {
		bus, _ := newTestBus(t)
		sub := bus.Subscribe()
		defer sub.Close()

		require.NoError(t, bus.Submit("agentA", ActionToggle))
		require.NoError(t, bus.Submit("agentA", ActionToggle))

		assert.Equal(t, 1, bus.PendingCount())
		action, ok := bus.TakePending("agentA")
		require.True(t, ok)
		assert.Equal(t, "toggle", action)
		_, ok = bus.TakePending("agentA")
		assert.False(t, ok)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		for i := 0; i < 2; i++ {
			msg, err := sub.Recv(ctx)
			require.NoError(t, err)
			assert.Equal(t, CommandMessage{Type: "command", AgentID: "agentA", Action: "toggle"}, msg)
		}
	})

	t.Run("mailbox keeps the latest action", func(t *testing.T) {
		bus, _ := newTestBus(t)

		require.NoError(t, bus.Submit("agentA", "start"))
		require.NoError(t, bus.Submit("agentA", "stop"))

		action, ok := bus.Pending("agentA")
		require.True(t, ok)
		assert.Equal(t, "stop", action)
		assert.Equal(t, 1, bus.PendingCount())
	})

	t.Run("invalid commands are rejected", func(t *testing.T) {
		bus, _ := newTestBus(t)

		assert.True(t, errors.Is(bus.Submit("", "toggle"), ErrInvalidCommand))
		assert.True(t, errors.Is(bus.Submit("agentA", " "), ErrInvalidCommand))
		assert.Equal(t, 0, bus.PendingCount())
	})

	t.Run("submitting without subscribers still fills the mailbox", func(t *testing.T) {
		bus, _ := newTestBus(t)

		require.NoError(t, bus.Submit("agentA", "toggle"))
		require.NoError(t, bus.Submit("agentB", "toggle"))

		assert.Equal(t, map[string]string{"agentA": "toggle", "agentB": "toggle"}, bus.TakeAllPending())
		assert.Equal(t, 0, bus.PendingCount())
	})
}

func TestBusSlowSubscriberLags(t *testing.T) {
	bus, m := newTestBus(t)
	sub := bus.Subscribe()
	defer sub.Close()

	for i := 0; i < 150; i++ {
		require.NoError(t, bus.Submit("agentA", "toggle"))
	}

	_, err := sub.TryRecv()
	var lagged *LaggedError
	require.ErrorAs(t, err, &lagged)
	assert.Equal(t, uint64(50), lagged.Missed)
	assert.Equal(t, float64(50), testutil.ToFloat64(m.StreamMissedTotal))
	assert.Equal(t, 1, bus.PendingCount())
}

func TestBusPerAgentOrder(t *testing.T) {
	bus, _ := newTestBus(t)
	sub := bus.Subscribe()
	defer sub.Close()

	var wg sync.WaitGroup
	for _, agent := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(agent string) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_ = bus.Submit(agent, "toggle")
			}
			_ = bus.Submit(agent, "final")
		}(agent)
	}
	wg.Wait()

	// The last stream message per agent matches what the mailbox holds.
	last := map[string]string{}
	for {
		msg, err := sub.TryRecv()
		if errors.Is(err, ErrNoMessage) {
			break
		}
		require.NoError(t, err)
		last[msg.AgentID] = msg.Action
	}
	assert.Equal(t, bus.TakeAllPending(), last)
}

func TestBusMetrics(t *testing.T) {
	bus, m := newTestBus(t)

	sub := bus.Subscribe()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StreamSubscribers))

	require.NoError(t, bus.From(SourceHTTP).Submit("agentA", "toggle"))
	require.NoError(t, bus.From(SourceShortcut).Submit("agentB", "toggle"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CommandsSubmittedTotal.WithLabelValues("http")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CommandsSubmittedTotal.WithLabelValues("shortcut")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CommandsPending))

	bus.TakePending("agentA")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CommandsPending))

	sub.Close()
	assert.Equal(t, float64(0), testutil.ToFloat64(m.StreamSubscribers))
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestBusWithoutMetrics(t *testing.T) {
	bus := New(Options{})
	defer bus.Close()

	sub := bus.Subscribe()
	defer sub.Close()

	require.NoError(t, bus.Submit("agentA", "toggle"))
	_, ok := bus.TakePending("agentA")
	assert.True(t, ok)
}
