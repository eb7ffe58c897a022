package commandbus

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailbox(t *testing.T) {
	t.Run("latest value wins", func(t *testing.T) {
		mb := NewMailbox[string, string]()

		assert.False(t, mb.Put("agentA", "start"))
		assert.True(t, mb.Put("agentA", "toggle"))
		assert.Equal(t, 1, mb.Len())

		v, ok := mb.Take("agentA")
		require.True(t, ok)
		assert.Equal(t, "toggle", v)

		_, ok = mb.Take("agentA")
		assert.False(t, ok)
	})

	t.Run("peek does not remove", func(t *testing.T) {
		mb := NewMailbox[string, int]()
		mb.Put("a", 1)

		v, ok := mb.Peek("a")
		require.True(t, ok)
		assert.Equal(t, 1, v)
		assert.Equal(t, 1, mb.Len())
	})

	t.Run("take all drains", func(t *testing.T) {
		mb := NewMailbox[string, string]()
		mb.Put("a", "toggle")
		mb.Put("b", "toggle")

		all := mb.TakeAll()

		assert.Equal(t, map[string]string{"a": "toggle", "b": "toggle"}, all)
		assert.Equal(t, 0, mb.Len())
		assert.Empty(t, mb.TakeAll())
	})

	t.Run("at most one entry per key under concurrency", func(t *testing.T) {
		mb := NewMailbox[string, int]()

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				mb.Put(fmt.Sprintf("agent-%d", i%5), i)
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 5, mb.Len())
	})
}
