package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultState(t *testing.T) {
	s := DefaultState()

	assert.Equal(t, Position{X: 50, Y: 50}, s.Position)
	assert.Equal(t, Size{Width: 700, Height: 700}, s.Size)
	assert.False(t, s.Visible)
	assert.True(t, s.ClickThrough)
}

func TestWindow(t *testing.T) {
	t.Run("visibility", func(t *testing.T) {
		w := NewWindow(DefaultState())

		require.NoError(t, w.Show())
		visible, err := w.IsVisible()
		require.NoError(t, err)
		assert.True(t, visible)

		require.NoError(t, w.Hide())
		visible, _ = w.IsVisible()
		assert.False(t, visible)
	})

	t.Run("geometry", func(t *testing.T) {
		w := NewWindow(DefaultState())

		require.NoError(t, w.SetPosition(Position{X: 10, Y: 20}))
		require.NoError(t, w.SetSize(Size{Width: 300, Height: 400}))

		pos, err := w.OuterPosition()
		require.NoError(t, err)
		assert.Equal(t, Position{X: 10, Y: 20}, pos)

		size, err := w.InnerSize()
		require.NoError(t, err)
		assert.Equal(t, Size{Width: 300, Height: 400}, size)
	})

	t.Run("invalid size is rejected", func(t *testing.T) {
		w := NewWindow(DefaultState())

		assert.ErrorIs(t, w.SetSize(Size{Width: 0, Height: 10}), ErrInvalidSize)
		assert.Equal(t, Size{Width: 700, Height: 700}, w.State().Size)
	})

	t.Run("observer sees changes only", func(t *testing.T) {
		w := NewWindow(DefaultState())
		var seen []State
		w.OnChange(func(s State) { seen = append(seen, s) })

		require.NoError(t, w.Show())
		require.NoError(t, w.Show())
		require.NoError(t, w.SetIgnoreCursorEvents(true))
		require.NoError(t, w.SetPosition(Position{X: 0, Y: 0}))

		require.Len(t, seen, 2)
		assert.True(t, seen[0].Visible)
		assert.Equal(t, Position{X: 0, Y: 0}, seen[1].Position)
	})
}
