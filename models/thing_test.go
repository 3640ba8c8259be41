package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestThingEffectiveBounds(t *testing.T) {
	thing := &Thing{
		BoundingBox: BoundingBox{Top: 0, Right: 10, Bottom: 10, Left: 0},
		OffsetX:     3,
		OffsetY:     -2,
	}

	t.Run("offsets are ignored when disabled", func(t *testing.T) {
		require.Equal(t, thing.BoundingBox, thing.EffectiveBounds(false, false))
	})

	t.Run("offsets shift the enabled axes", func(t *testing.T) {
		bounds := thing.EffectiveBounds(true, false)
		require.Equal(t, BoundingBox{Top: 0, Right: 13, Bottom: 10, Left: 3}, bounds)

		bounds = thing.EffectiveBounds(true, true)
		require.Equal(t, BoundingBox{Top: -2, Right: 13, Bottom: 8, Left: 3}, bounds)
	})

	t.Run("raw bounds are left untouched", func(t *testing.T) {
		thing.EffectiveBounds(true, true)
		require.Equal(t, BoundingBox{Top: 0, Right: 10, Bottom: 10, Left: 0}, thing.BoundingBox)
	})
}

func TestThingClearQuadrants(t *testing.T) {
	thing := &Thing{
		Quadrants:    []*Quadrant{NewQuadrant(nil), NewQuadrant(nil)},
		NumQuadrants: 2,
	}

	thing.ClearQuadrants()
	require.Zero(t, thing.NumQuadrants)
	require.Empty(t, thing.Quadrants)
	require.Equal(t, 2, cap(thing.Quadrants))
}
