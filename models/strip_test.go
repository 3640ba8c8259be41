package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newStripQuadrant(top, right, bottom, left float64) *Quadrant {
	q := NewQuadrant(nil)
	q.SetBounds(top, right, bottom, left)
	return q
}

func TestQuadrantRowBounds(t *testing.T) {
	row := NewQuadrantRow(0, 10)
	row.Append(newStripQuadrant(10, 10, 20, 0))
	row.Append(newStripQuadrant(10, 20, 20, 10))

	require.Equal(t, BoundingBox{Top: 10, Right: 20, Bottom: 20, Left: 0}, row.Bounds())
}

func TestQuadrantRowPrepend(t *testing.T) {
	row := NewQuadrantRow(0, 0)
	row.Append(newStripQuadrant(0, 10, 10, 0))

	q := newStripQuadrant(0, 0, 10, -10)
	row.Prepend(q)

	require.Equal(t, float64(-10), row.Left)
	require.Same(t, q, row.Quadrants[0])
}

func TestQuadrantRowPopFirst(t *testing.T) {
	t.Run("left edge advances to the new first quadrant", func(t *testing.T) {
		row := NewQuadrantRow(0, 0)
		first := newStripQuadrant(0, 10, 10, 0)
		second := newStripQuadrant(0, 20, 10, 10)
		row.Append(first)
		row.Append(second)

		require.Same(t, first, row.PopFirst())
		require.Equal(t, float64(10), row.Left)
		require.Len(t, row.Quadrants, 1)
	})

	t.Run("popping an empty row returns nil", func(t *testing.T) {
		row := NewQuadrantRow(0, 0)
		require.Nil(t, row.PopFirst())
	})
}

func TestQuadrantRowPopLast(t *testing.T) {
	row := NewQuadrantRow(0, 0)
	first := newStripQuadrant(0, 10, 10, 0)
	last := newStripQuadrant(0, 20, 10, 10)
	row.Append(first)
	row.Append(last)

	require.Same(t, last, row.PopLast())
	require.Equal(t, []*Quadrant{first}, row.Quadrants)

	require.Same(t, first, row.PopLast())
	require.Nil(t, row.PopLast())
}

func TestQuadrantColBounds(t *testing.T) {
	col := NewQuadrantCol(10, 0)
	col.Append(newStripQuadrant(0, 20, 10, 10))
	col.Append(newStripQuadrant(10, 20, 20, 10))

	require.Equal(t, BoundingBox{Top: 0, Right: 20, Bottom: 20, Left: 10}, col.Bounds())
}

func TestQuadrantColPrepend(t *testing.T) {
	col := NewQuadrantCol(0, 0)
	col.Append(newStripQuadrant(0, 10, 10, 0))

	q := newStripQuadrant(-10, 10, 0, 0)
	col.Prepend(q)

	require.Equal(t, float64(-10), col.Top)
	require.Same(t, q, col.Quadrants[0])
}

func TestQuadrantColPopFirst(t *testing.T) {
	col := NewQuadrantCol(0, 0)
	first := newStripQuadrant(0, 10, 10, 0)
	second := newStripQuadrant(10, 10, 20, 0)
	col.Append(first)
	col.Append(second)

	require.Same(t, first, col.PopFirst())
	require.Equal(t, float64(10), col.Top)
}
