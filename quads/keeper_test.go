package quads

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadspace/models"
	"github.com/stretchr/testify/require"
)

func newTestKeeper(t *testing.T, opts Options) *Keeper {
	t.Helper()

	if opts.NumRows == 0 {
		opts.NumRows = 3
	}
	if opts.NumCols == 0 {
		opts.NumCols = 3
	}
	if opts.QuadrantWidth == 0 {
		opts.QuadrantWidth = 10
	}
	if opts.QuadrantHeight == 0 {
		opts.QuadrantHeight = 10
	}
	if opts.GroupNames == nil {
		opts.GroupNames = []string{"solid", "character"}
	}

	k, err := New(opts)
	require.NoError(t, err)
	return k
}

func TestNew(t *testing.T) {
	t.Run("zero options fall back to defaults", func(t *testing.T) {
		k, err := New(Options{})
		require.NoError(t, err)
		require.Equal(t, DefaultNumRows, k.NumRows())
		require.Equal(t, DefaultNumCols, k.NumCols())
		require.Equal(t, float64(DefaultQuadrantWidth), k.QuadrantWidth())
		require.Equal(t, float64(DefaultQuadrantHeight), k.QuadrantHeight())
	})

	t.Run("negative dimensions are rejected", func(t *testing.T) {
		_, err := New(Options{NumRows: -1})
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeInvalidConfiguration))

		_, err = New(Options{QuadrantWidth: -8})
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeInvalidConfiguration))
	})
}

func TestResetQuadrants(t *testing.T) {
	t.Run("grid tiles the configured area exactly", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		bounds := k.Bounds()
		require.Equal(t, float64(0), bounds.Top)
		require.Equal(t, float64(0), bounds.Left)
		require.Equal(t, float64(30), bounds.Bottom)
		require.Equal(t, float64(30), bounds.Right)

		for r, row := range k.QuadrantRows() {
			require.Len(t, row.Quadrants, 3)
			for c, q := range row.Quadrants {
				require.Equal(t, float64(r*10), q.Top)
				require.Equal(t, float64(r*10+10), q.Bottom)
				require.Equal(t, float64(c*10), q.Left)
				require.Equal(t, float64(c*10+10), q.Right)
			}
		}
	})

	t.Run("rows and cols index the same quadrants", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		rows := k.QuadrantRows()
		cols := k.QuadrantCols()
		for r := range rows {
			for c := range cols {
				require.Same(t, rows[r].Quadrants[c], cols[c].Quadrants[r])
			}
		}
	})

	t.Run("reset discards growth and membership", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		thing := &models.Thing{GroupType: "solid"}
		thing.SetBounds(0, 10, 10, 0)
		require.NoError(t, k.DetermineThingQuadrants(thing))

		k.PushQuadrantRow(false)
		k.PushQuadrantCol(false)
		require.Equal(t, 4, k.NumRows())

		k.ResetQuadrants()
		require.Equal(t, 3, k.NumRows())
		require.Equal(t, 3, k.NumCols())
		for _, row := range k.QuadrantRows() {
			for _, q := range row.Quadrants {
				require.Empty(t, q.LiveThings("solid"))
			}
		}
	})

	t.Run("honors a custom start position", func(t *testing.T) {
		k := newTestKeeper(t, Options{StartLeft: -15, StartTop: 5})

		bounds := k.Bounds()
		require.Equal(t, float64(5), bounds.Top)
		require.Equal(t, float64(-15), bounds.Left)
		require.Equal(t, float64(35), bounds.Bottom)
		require.Equal(t, float64(15), bounds.Right)
	})
}

func TestShiftQuadrants(t *testing.T) {
	t.Run("full-cell rightward pan recycles the left col", func(t *testing.T) {
		var added []StripEvent
		var removed []StripEvent
		var order []string

		k := newTestKeeper(t, Options{
			OnAdd: func(e StripEvent) {
				added = append(added, e)
				order = append(order, "add")
			},
			OnRemove: func(e StripEvent) {
				removed = append(removed, e)
				order = append(order, "remove")
			},
		})

		k.ShiftQuadrants(10, 0)

		require.Equal(t, []string{"add", "remove"}, order)
		require.Equal(t, []StripEvent{{
			Direction: DirectionRight,
			Top:       0,
			Right:     30,
			Bottom:    30,
			Left:      20,
		}}, added)
		require.Equal(t, []StripEvent{{
			Direction: DirectionLeft,
			Top:       0,
			Right:     10,
			Bottom:    30,
			Left:      0,
		}}, removed)

		require.Equal(t, 3, k.NumRows())
		require.Equal(t, 3, k.NumCols())
		require.Equal(t, models.BoundingBox{Top: 0, Right: 30, Bottom: 30, Left: 0}, k.Bounds())
	})

	t.Run("leftward pan mirrors rightward", func(t *testing.T) {
		var added []StripEvent
		var removed []StripEvent

		k := newTestKeeper(t, Options{
			OnAdd:    func(e StripEvent) { added = append(added, e) },
			OnRemove: func(e StripEvent) { removed = append(removed, e) },
		})

		k.ShiftQuadrants(-10, 0)

		require.Equal(t, []StripEvent{{
			Direction: DirectionLeft,
			Top:       0,
			Right:     10,
			Bottom:    30,
			Left:      0,
		}}, added)
		require.Equal(t, []StripEvent{{
			Direction: DirectionRight,
			Top:       0,
			Right:     30,
			Bottom:    30,
			Left:      20,
		}}, removed)
		require.Equal(t, models.BoundingBox{Top: 0, Right: 30, Bottom: 30, Left: 0}, k.Bounds())
	})

	t.Run("vertical pan recycles rows", func(t *testing.T) {
		var added []StripEvent
		var removed []StripEvent

		k := newTestKeeper(t, Options{
			OnAdd:    func(e StripEvent) { added = append(added, e) },
			OnRemove: func(e StripEvent) { removed = append(removed, e) },
		})

		k.ShiftQuadrants(0, 10)

		require.Equal(t, []StripEvent{{
			Direction: DirectionBottom,
			Top:       20,
			Right:     30,
			Bottom:    30,
			Left:      0,
		}}, added)
		require.Equal(t, []StripEvent{{
			Direction: DirectionTop,
			Top:       0,
			Right:     30,
			Bottom:    10,
			Left:      0,
		}}, removed)
	})

	t.Run("sub-cell pans accumulate without recycling", func(t *testing.T) {
		k := newTestKeeper(t, Options{
			OnAdd:    func(e StripEvent) { t.Fatal("unexpected strip add") },
			OnRemove: func(e StripEvent) { t.Fatal("unexpected strip remove") },
		})

		k.ShiftQuadrants(4, 0)
		k.ShiftQuadrants(3, 0)

		bounds := k.Bounds()
		require.Equal(t, float64(-7), bounds.Left)
		require.Equal(t, float64(23), bounds.Right)
	})

	t.Run("split pans converge with a single pan", func(t *testing.T) {
		split := newTestKeeper(t, Options{})
		split.ShiftQuadrants(4, 0)
		split.ShiftQuadrants(3, 0)
		split.ShiftQuadrants(3, 0)

		single := newTestKeeper(t, Options{})
		single.ShiftQuadrants(10, 0)

		require.Equal(t, single.Bounds(), split.Bounds())
		require.Equal(t, single.GetDebugInfo(), split.GetDebugInfo())
	})

	t.Run("multi-cell pan recycles several strips", func(t *testing.T) {
		var adds, removes int
		k := newTestKeeper(t, Options{
			OnAdd:    func(e StripEvent) { adds++ },
			OnRemove: func(e StripEvent) { removes++ },
		})

		k.ShiftQuadrants(25, 0)

		require.Equal(t, 2, adds)
		require.Equal(t, 2, removes)
		require.Equal(t, 3, k.NumCols())

		bounds := k.Bounds()
		require.Equal(t, float64(-5), bounds.Left)
		require.Equal(t, float64(25), bounds.Right)
	})

	t.Run("fractional deltas are rounded", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		k.ShiftQuadrants(0.4, 0)
		require.Equal(t, float64(0), k.Bounds().Left)

		k.ShiftQuadrants(0.6, 0)
		require.Equal(t, float64(-1), k.Bounds().Left)
	})
}

func TestStripOperations(t *testing.T) {
	t.Run("push then pop restores the grid", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		before := k.Bounds()
		corner := k.QuadrantRows()[0].Quadrants[0]

		k.PushQuadrantRow(false)
		k.PushQuadrantCol(false)
		require.Equal(t, 4, k.NumRows())
		require.Equal(t, 4, k.NumCols())

		k.PopQuadrantRow(false)
		k.PopQuadrantCol(false)
		require.Equal(t, 3, k.NumRows())
		require.Equal(t, 3, k.NumCols())
		require.Equal(t, before, k.Bounds())
		require.Same(t, corner, k.QuadrantRows()[0].Quadrants[0])
	})

	t.Run("unshift then shift restores the grid", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		before := k.Bounds()
		corner := k.QuadrantRows()[2].Quadrants[2]

		k.UnshiftQuadrantRow(false)
		k.UnshiftQuadrantCol(false)
		require.Equal(t, models.BoundingBox{Top: -10, Right: 30, Bottom: 30, Left: -10}, k.Bounds())

		k.ShiftQuadrantRow(false)
		k.ShiftQuadrantCol(false)
		require.Equal(t, before, k.Bounds())
		require.Same(t, corner, k.QuadrantRows()[2].Quadrants[2])
	})

	t.Run("new strips keep rows and cols cross-indexed", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		k.PushQuadrantRow(false)
		k.UnshiftQuadrantCol(false)

		rows := k.QuadrantRows()
		cols := k.QuadrantCols()
		for r := range rows {
			for c := range cols {
				require.Same(t, rows[r].Quadrants[c], cols[c].Quadrants[r])
			}
		}
	})

	t.Run("direct strip calls fire observers when asked", func(t *testing.T) {
		var added []StripEvent
		k := newTestKeeper(t, Options{
			OnAdd: func(e StripEvent) { added = append(added, e) },
		})

		k.PushQuadrantRow(false)
		require.Empty(t, added)

		k.PushQuadrantRow(true)
		require.Equal(t, []StripEvent{{
			Direction: DirectionBottom,
			Top:       40,
			Right:     30,
			Bottom:    50,
			Left:      0,
		}}, added)
	})

	t.Run("removed strips leave stale back-references until redetermination", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		thing := &models.Thing{GroupType: "solid"}
		thing.SetBounds(2, 28, 8, 22)
		require.NoError(t, k.DetermineThingQuadrants(thing))
		require.Equal(t, 1, thing.NumQuadrants)

		removed := thing.Quadrants[0]
		k.PopQuadrantCol(false)

		// The destroyed quadrant is gone from the grid, but the thing
		// still points at it until its next determination pass.
		require.Equal(t, 2, k.NumCols())
		require.Equal(t, 1, thing.NumQuadrants)
		require.Same(t, removed, thing.Quadrants[0])

		require.NoError(t, k.DetermineThingQuadrants(thing))
		require.Zero(t, thing.NumQuadrants)
	})
}

func TestDetermineThingQuadrants(t *testing.T) {
	t.Run("thing spanning four cells lands in all four", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		thing := &models.Thing{GroupType: "character"}
		thing.SetBounds(5, 15, 15, 5)
		require.NoError(t, k.DetermineThingQuadrants(thing))

		require.Equal(t, 4, thing.NumQuadrants)
		rows := k.QuadrantRows()
		for _, q := range []*models.Quadrant{
			rows[0].Quadrants[0],
			rows[0].Quadrants[1],
			rows[1].Quadrants[0],
			rows[1].Quadrants[1],
		} {
			require.Contains(t, thing.Quadrants[:thing.NumQuadrants], q)
			require.Equal(t, []*models.Thing{thing}, q.LiveThings("character"))
		}
	})

	t.Run("membership matches box intersection", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		thing := &models.Thing{GroupType: "solid"}
		thing.SetBounds(3, 27, 9, 12)
		require.NoError(t, k.DetermineThingQuadrants(thing))

		for _, row := range k.QuadrantRows() {
			for _, q := range row.Quadrants {
				if thing.Intersects(q.BoundingBox) {
					require.Contains(t, q.LiveThings("solid"), thing)
				} else {
					require.Empty(t, q.LiveThings("solid"))
				}
			}
		}
	})

	t.Run("cell-aligned thing stays out of its neighbors", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		thing := &models.Thing{GroupType: "solid"}
		thing.SetBounds(0, 20, 10, 10)
		require.NoError(t, k.DetermineThingQuadrants(thing))

		require.Equal(t, 1, thing.NumQuadrants)
		require.Same(t, k.QuadrantRows()[0].Quadrants[1], thing.Quadrants[0])
	})

	t.Run("zero-area thing gets no quadrants", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		thing := &models.Thing{GroupType: "solid"}
		thing.SetBounds(10, 10, 10, 10)
		require.NoError(t, k.DetermineThingQuadrants(thing))
		require.Zero(t, thing.NumQuadrants)
	})

	t.Run("thing outside the grid gets no quadrants", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		thing := &models.Thing{GroupType: "solid"}
		thing.SetBounds(100, 120, 110, 100)
		require.NoError(t, k.DetermineThingQuadrants(thing))
		require.Zero(t, thing.NumQuadrants)
		require.Empty(t, thing.Quadrants)
	})

	t.Run("redetermination drops previous membership", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		thing := &models.Thing{GroupType: "character"}
		thing.SetBounds(2, 8, 8, 2)
		require.NoError(t, k.DetermineThingQuadrants(thing))
		require.Equal(t, 1, thing.NumQuadrants)

		thing.SetBounds(22, 28, 28, 22)
		require.NoError(t, k.DetermineThingQuadrants(thing))
		require.Equal(t, 1, thing.NumQuadrants)
		require.Same(t, k.QuadrantRows()[2].Quadrants[2], thing.Quadrants[0])
	})

	t.Run("visual offsets move membership when enabled", func(t *testing.T) {
		k := newTestKeeper(t, Options{CheckOffsetX: true})

		thing := &models.Thing{GroupType: "solid", OffsetX: 10, OffsetY: 10}
		thing.SetBounds(2, 8, 8, 2)
		require.NoError(t, k.DetermineThingQuadrants(thing))

		// OffsetY is ignored, OffsetX shifts the thing one col right.
		require.Equal(t, 1, thing.NumQuadrants)
		require.Same(t, k.QuadrantRows()[0].Quadrants[1], thing.Quadrants[0])
	})

	t.Run("changed flag propagates to touched quadrants", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		thing := &models.Thing{GroupType: "solid", BoundingBox: models.BoundingBox{
			Top: 2, Right: 8, Bottom: 8, Left: 2, Changed: true,
		}}
		require.NoError(t, k.DetermineThingQuadrants(thing))

		require.False(t, thing.Changed)
		require.True(t, k.QuadrantRows()[0].Quadrants[0].Changed)
		require.False(t, k.QuadrantRows()[2].Quadrants[2].Changed)
	})

	t.Run("unregistered group fails fast", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		thing := &models.Thing{GroupType: "scenery"}
		thing.SetBounds(2, 8, 8, 2)

		err := k.DetermineThingQuadrants(thing)
		require.Error(t, err)
		require.True(t, errors.IsType(err, models.ErrTypeGroupNotRegistered))
		for _, row := range k.QuadrantRows() {
			for _, q := range row.Quadrants {
				require.NotContains(t, q.Things, "scenery")
			}
		}
	})
}

func TestDetermineAllQuadrants(t *testing.T) {
	t.Run("resynchronizes the whole group", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		a := &models.Thing{GroupType: "solid"}
		a.SetBounds(2, 8, 8, 2)
		b := &models.Thing{GroupType: "solid"}
		b.SetBounds(12, 18, 18, 12)
		require.NoError(t, k.DetermineAllQuadrants("solid", []*models.Thing{a, b}))

		// Swap positions; a full pass must leave no stale membership.
		a.SetBounds(12, 18, 18, 12)
		b.SetBounds(2, 8, 8, 2)
		require.NoError(t, k.DetermineAllQuadrants("solid", []*models.Thing{a, b}))

		require.Equal(t, []*models.Thing{b}, k.QuadrantRows()[0].Quadrants[0].LiveThings("solid"))
		require.Equal(t, []*models.Thing{a}, k.QuadrantRows()[1].Quadrants[1].LiveThings("solid"))
	})

	t.Run("does not touch other groups", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		c := &models.Thing{GroupType: "character"}
		c.SetBounds(2, 8, 8, 2)
		require.NoError(t, k.DetermineThingQuadrants(c))

		require.NoError(t, k.DetermineAllQuadrants("solid", nil))
		require.Equal(t, []*models.Thing{c}, k.QuadrantRows()[0].Quadrants[0].LiveThings("character"))
	})

	t.Run("unregistered group fails fast", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		err := k.DetermineAllQuadrants("scenery", nil)
		require.Error(t, err)
		require.True(t, errors.IsType(err, models.ErrTypeGroupNotRegistered))
	})
}

func TestKeeperAfterPan(t *testing.T) {
	t.Run("membership follows the translated grid", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		// The viewed region pans right; grid content slides left, so a
		// world-static thing lands one col further right.
		k.ShiftQuadrants(10, 0)

		thing := &models.Thing{GroupType: "solid"}
		thing.SetBounds(2, 8, 8, 2)
		require.NoError(t, k.DetermineThingQuadrants(thing))

		require.Equal(t, 1, thing.NumQuadrants)
		q := thing.Quadrants[0]
		require.Equal(t, float64(0), q.Left)
		require.Equal(t, float64(10), q.Right)
		require.Same(t, k.QuadrantRows()[0].Quadrants[0], q)
	})
}

func TestGetDebugInfo(t *testing.T) {
	t.Run("snapshot reflects occupancy in row-major order", func(t *testing.T) {
		k := newTestKeeper(t, Options{})

		thing := &models.Thing{GroupType: "solid"}
		thing.SetBounds(12, 18, 18, 12)
		require.NoError(t, k.DetermineThingQuadrants(thing))

		info := k.GetDebugInfo()
		require.Equal(t, 3, info.NumRows)
		require.Equal(t, 3, info.NumCols)
		require.Equal(t, float64(10), info.QuadrantWidth)

		want := make([]int, 9)
		want[1*3+1] = 1
		require.Equal(t, want, info.Occupancy["solid"])
		require.Equal(t, make([]int, 9), info.Occupancy["character"])
	})
}
