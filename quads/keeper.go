package quads

// Shiftable Grid Spatial Partition
//
// A contiguous grid of fixed-size cells ("quadrants") indexed twice, by rows
// and by cols, used to answer "which things are near this one" in a scrolling
// scene. The particularities are:
//   - the grid is anchored to the viewed region, not the world. Panning
//     translates cell content the opposite way and recycles whole edge rows
//     and cols once the accumulated drift reaches a full cell, so the cost of
//     a pan is proportional to the strips entering and leaving view.
//   - membership is recomputed, not maintained: each determination pass fully
//     rebuilds a thing's quadrant set from its current bounds.

import (
	"math"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadspace/models"
)

// ErrTypeInvalidConfiguration tags construction errors for non-positive grid
// dimensions.
const ErrTypeInvalidConfiguration = "invalid_configuration"

// Default grid geometry, used for options left at their zero value.
const (
	DefaultNumRows        = 4
	DefaultNumCols        = 4
	DefaultQuadrantWidth  = 128
	DefaultQuadrantHeight = 128
)

// Options configures a Keeper. Every field is optional; zero values fall
// back to the defaults above.
type Options struct {
	// QuadrantFactory produces a fresh empty quadrant. The default builds
	// one with storage preallocated for GroupNames.
	QuadrantFactory func() *models.Quadrant

	// Grid dimensions applied on reset. Negative values are rejected.
	NumRows int
	NumCols int

	// Cell size, constant for the grid's lifetime. Must be positive when
	// set.
	QuadrantWidth  float64
	QuadrantHeight float64

	// The fixed set of group names quadrants preallocate storage for.
	GroupNames []string

	// Whether a thing's visual offset affects its membership.
	CheckOffsetX bool
	CheckOffsetY bool

	// Strip observers, invoked synchronously when coverage grows or
	// shrinks at an edge.
	OnAdd    StripHandler
	OnRemove StripHandler

	// Initial grid origin.
	StartLeft float64
	StartTop  float64
}

// Keeper owns the quadrant grid and is its sole writer. It is not safe for
// concurrent use; callers sequence a pan before re-determining membership
// each tick.
type Keeper struct {
	groups  *models.GroupStore
	factory func() *models.Quadrant

	startRows int
	startCols int
	startLeft float64
	startTop  float64

	quadrantWidth  float64
	quadrantHeight float64

	checkOffsetX bool
	checkOffsetY bool

	onAdd    StripHandler
	onRemove StripHandler

	// Outer bounds, the union of the current rows and cols.
	top    float64
	right  float64
	bottom float64
	left   float64

	// Sub-cell pan drift, in the range (-cell size, +cell size) after
	// every shift.
	offsetX float64
	offsetY float64

	rows []*models.QuadrantRow
	cols []*models.QuadrantCol
}

// New returns a keeper with a freshly built grid. It fails fast on
// non-positive cell sizes or row/col counts below one; no partial grid is
// built.
func New(opts Options) (*Keeper, error) {
	if opts.NumRows == 0 {
		opts.NumRows = DefaultNumRows
	}
	if opts.NumCols == 0 {
		opts.NumCols = DefaultNumCols
	}
	if opts.QuadrantWidth == 0 {
		opts.QuadrantWidth = DefaultQuadrantWidth
	}
	if opts.QuadrantHeight == 0 {
		opts.QuadrantHeight = DefaultQuadrantHeight
	}

	if opts.NumRows < 1 || opts.NumCols < 1 {
		return nil, errors.New("grid requires at least one row and one col").
			WithType(ErrTypeInvalidConfiguration).
			WithTag("num_rows", opts.NumRows).
			WithTag("num_cols", opts.NumCols)
	}
	if opts.QuadrantWidth < 0 || opts.QuadrantHeight < 0 {
		return nil, errors.New("quadrant size must be positive").
			WithType(ErrTypeInvalidConfiguration).
			WithTag("quadrant_width", opts.QuadrantWidth).
			WithTag("quadrant_height", opts.QuadrantHeight)
	}

	k := &Keeper{
		groups:         models.NewGroupStore(opts.GroupNames...),
		factory:        opts.QuadrantFactory,
		startRows:      opts.NumRows,
		startCols:      opts.NumCols,
		startLeft:      opts.StartLeft,
		startTop:       opts.StartTop,
		quadrantWidth:  opts.QuadrantWidth,
		quadrantHeight: opts.QuadrantHeight,
		checkOffsetX:   opts.CheckOffsetX,
		checkOffsetY:   opts.CheckOffsetY,
		onAdd:          opts.OnAdd,
		onRemove:       opts.OnRemove,
	}
	if k.factory == nil {
		k.factory = func() *models.Quadrant {
			return models.NewQuadrant(opts.GroupNames)
		}
	}

	k.ResetQuadrants()
	return k, nil
}

func (k *Keeper) QuadrantRows() []*models.QuadrantRow {
	return k.rows
}

func (k *Keeper) QuadrantCols() []*models.QuadrantCol {
	return k.cols
}

func (k *Keeper) NumRows() int {
	return len(k.rows)
}

func (k *Keeper) NumCols() int {
	return len(k.cols)
}

func (k *Keeper) QuadrantWidth() float64 {
	return k.quadrantWidth
}

func (k *Keeper) QuadrantHeight() float64 {
	return k.quadrantHeight
}

// Bounds returns the grid's outer rectangle.
func (k *Keeper) Bounds() models.BoundingBox {
	return models.BoundingBox{
		Top:    k.top,
		Right:  k.right,
		Bottom: k.bottom,
		Left:   k.left,
	}
}

// GroupNames returns the registered group names.
func (k *Keeper) GroupNames() []string {
	return k.groups.Names()
}

// ResetQuadrants rebuilds the whole grid from the configured origin and
// dimensions, discarding all membership data. Safe to call at any time.
func (k *Keeper) ResetQuadrants() {
	k.rows = make([]*models.QuadrantRow, 0, k.startRows)
	k.cols = make([]*models.QuadrantCol, 0, k.startCols)

	for r := 0; r < k.startRows; r++ {
		top := k.startTop + float64(r)*k.quadrantHeight
		k.rows = append(k.rows, models.NewQuadrantRow(k.startLeft, top))
	}
	for c := 0; c < k.startCols; c++ {
		left := k.startLeft + float64(c)*k.quadrantWidth
		k.cols = append(k.cols, models.NewQuadrantCol(left, k.startTop))
	}

	for _, row := range k.rows {
		for _, col := range k.cols {
			q := k.createQuadrant(col.Left, row.Top)
			row.Append(q)
			col.Append(q)
		}
	}

	k.top = k.startTop
	k.left = k.startLeft
	k.bottom = k.startTop + float64(k.startRows)*k.quadrantHeight
	k.right = k.startLeft + float64(k.startCols)*k.quadrantWidth
	k.offsetX = 0
	k.offsetY = 0

	instrumentReset()
	instrumentGridSize(len(k.rows), len(k.cols))
}

// ShiftQuadrants pans the viewed region by (dx, dy), rounded to integers.
// Cell content translates the opposite way; once the accumulated drift on an
// axis reaches a full cell, the trailing edge strip is dropped and a fresh
// one is appended on the leading edge, firing the strip observers.
func (k *Keeper) ShiftQuadrants(dx, dy float64) {
	dxr := math.Round(dx)
	dyr := math.Round(dy)

	k.offsetX += dxr
	k.offsetY += dyr

	k.translate(-dxr, -dyr)
	k.adjustOffsets()
}

func (k *Keeper) translate(dx, dy float64) {
	k.top += dy
	k.bottom += dy
	k.left += dx
	k.right += dx

	// Vertical coordinates move through the rows, horizontal through the
	// cols, so each quadrant is touched once per axis.
	for _, row := range k.rows {
		row.Top += dy
		for _, q := range row.Quadrants {
			q.Top += dy
			q.Bottom += dy
		}
	}
	for _, col := range k.cols {
		col.Left += dx
		for _, q := range col.Quadrants {
			q.Left += dx
			q.Right += dx
		}
	}
	for _, row := range k.rows {
		row.Left += dx
	}
	for _, col := range k.cols {
		col.Top += dy
	}
}

func (k *Keeper) adjustOffsets() {
	for k.offsetX >= k.quadrantWidth {
		k.PushQuadrantCol(true)
		k.ShiftQuadrantCol(true)
		k.offsetX -= k.quadrantWidth
	}
	for k.offsetX <= -k.quadrantWidth {
		k.UnshiftQuadrantCol(true)
		k.PopQuadrantCol(true)
		k.offsetX += k.quadrantWidth
	}
	for k.offsetY >= k.quadrantHeight {
		k.PushQuadrantRow(true)
		k.ShiftQuadrantRow(true)
		k.offsetY -= k.quadrantHeight
	}
	for k.offsetY <= -k.quadrantHeight {
		k.UnshiftQuadrantRow(true)
		k.PopQuadrantRow(true)
		k.offsetY += k.quadrantHeight
	}
}

// PushQuadrantRow appends a row of fresh quadrants below the grid, splicing
// one quadrant onto the end of every col. Returns the new row.
func (k *Keeper) PushQuadrantRow(callUpdate bool) *models.QuadrantRow {
	row := models.NewQuadrantRow(k.left, k.bottom)
	for _, col := range k.cols {
		q := k.createQuadrant(col.Left, k.bottom)
		row.Append(q)
		col.Append(q)
	}
	k.rows = append(k.rows, row)
	k.bottom += k.quadrantHeight

	instrumentGridSize(len(k.rows), len(k.cols))
	if callUpdate && k.onAdd != nil {
		k.emitAdd(StripEvent{
			Direction: DirectionBottom,
			Top:       k.bottom - k.quadrantHeight,
			Right:     k.right,
			Bottom:    k.bottom,
			Left:      k.left,
		})
	}
	return row
}

// PushQuadrantCol appends a col of fresh quadrants to the right of the grid,
// splicing one quadrant onto the end of every row. Returns the new col.
func (k *Keeper) PushQuadrantCol(callUpdate bool) *models.QuadrantCol {
	col := models.NewQuadrantCol(k.right, k.top)
	for _, row := range k.rows {
		q := k.createQuadrant(k.right, row.Top)
		col.Append(q)
		row.Append(q)
	}
	k.cols = append(k.cols, col)
	k.right += k.quadrantWidth

	instrumentGridSize(len(k.rows), len(k.cols))
	if callUpdate && k.onAdd != nil {
		k.emitAdd(StripEvent{
			Direction: DirectionRight,
			Top:       k.top,
			Right:     k.right,
			Bottom:    k.bottom,
			Left:      k.right - k.quadrantWidth,
		})
	}
	return col
}

// UnshiftQuadrantRow prepends a row of fresh quadrants above the grid,
// splicing one quadrant onto the front of every col. Returns the new row.
func (k *Keeper) UnshiftQuadrantRow(callUpdate bool) *models.QuadrantRow {
	k.top -= k.quadrantHeight
	row := models.NewQuadrantRow(k.left, k.top)
	for _, col := range k.cols {
		q := k.createQuadrant(col.Left, k.top)
		row.Append(q)
		col.Prepend(q)
	}
	k.rows = append([]*models.QuadrantRow{row}, k.rows...)

	instrumentGridSize(len(k.rows), len(k.cols))
	if callUpdate && k.onAdd != nil {
		k.emitAdd(StripEvent{
			Direction: DirectionTop,
			Top:       k.top,
			Right:     k.right,
			Bottom:    k.top + k.quadrantHeight,
			Left:      k.left,
		})
	}
	return row
}

// UnshiftQuadrantCol prepends a col of fresh quadrants to the left of the
// grid, splicing one quadrant onto the front of every row. Returns the new
// col.
func (k *Keeper) UnshiftQuadrantCol(callUpdate bool) *models.QuadrantCol {
	k.left -= k.quadrantWidth
	col := models.NewQuadrantCol(k.left, k.top)
	for _, row := range k.rows {
		q := k.createQuadrant(k.left, row.Top)
		col.Append(q)
		row.Prepend(q)
	}
	k.cols = append([]*models.QuadrantCol{col}, k.cols...)

	instrumentGridSize(len(k.rows), len(k.cols))
	if callUpdate && k.onAdd != nil {
		k.emitAdd(StripEvent{
			Direction: DirectionLeft,
			Top:       k.top,
			Right:     k.left + k.quadrantWidth,
			Bottom:    k.bottom,
			Left:      k.left,
		})
	}
	return col
}

// PopQuadrantRow removes the bottom row, excising its quadrants from every
// col. Membership held by the removed quadrants is discarded; things keep
// their stale back-references until their next determination.
func (k *Keeper) PopQuadrantRow(callUpdate bool) {
	if len(k.rows) == 0 {
		return
	}
	k.rows = k.rows[:len(k.rows)-1]
	for _, col := range k.cols {
		col.PopLast()
	}
	k.bottom -= k.quadrantHeight

	instrumentGridSize(len(k.rows), len(k.cols))
	if callUpdate && k.onRemove != nil {
		k.emitRemove(StripEvent{
			Direction: DirectionBottom,
			Top:       k.bottom - k.quadrantHeight,
			Right:     k.right,
			Bottom:    k.bottom,
			Left:      k.left,
		})
	}
}

// PopQuadrantCol removes the rightmost col, excising its quadrants from
// every row.
func (k *Keeper) PopQuadrantCol(callUpdate bool) {
	if len(k.cols) == 0 {
		return
	}
	k.cols = k.cols[:len(k.cols)-1]
	for _, row := range k.rows {
		row.PopLast()
	}
	k.right -= k.quadrantWidth

	instrumentGridSize(len(k.rows), len(k.cols))
	if callUpdate && k.onRemove != nil {
		k.emitRemove(StripEvent{
			Direction: DirectionRight,
			Top:       k.top,
			Right:     k.right,
			Bottom:    k.bottom,
			Left:      k.right - k.quadrantWidth,
		})
	}
}

// ShiftQuadrantRow removes the top row, excising its quadrants from every
// col.
func (k *Keeper) ShiftQuadrantRow(callUpdate bool) {
	if len(k.rows) == 0 {
		return
	}
	k.rows = k.rows[1:]
	for _, col := range k.cols {
		col.PopFirst()
	}
	k.top += k.quadrantHeight

	instrumentGridSize(len(k.rows), len(k.cols))
	if callUpdate && k.onRemove != nil {
		k.emitRemove(StripEvent{
			Direction: DirectionTop,
			Top:       k.top,
			Right:     k.right,
			Bottom:    k.top + k.quadrantHeight,
			Left:      k.left,
		})
	}
}

// ShiftQuadrantCol removes the leftmost col, excising its quadrants from
// every row.
func (k *Keeper) ShiftQuadrantCol(callUpdate bool) {
	if len(k.cols) == 0 {
		return
	}
	k.cols = k.cols[1:]
	for _, row := range k.rows {
		row.PopFirst()
	}
	k.left += k.quadrantWidth

	instrumentGridSize(len(k.rows), len(k.cols))
	if callUpdate && k.onRemove != nil {
		k.emitRemove(StripEvent{
			Direction: DirectionLeft,
			Top:       k.top,
			Right:     k.left + k.quadrantWidth,
			Bottom:    k.bottom,
			Left:      k.left,
		})
	}
}

// DetermineAllQuadrants fully resynchronizes one group: clears the group's
// live count on every quadrant, then re-determines every supplied thing.
func (k *Keeper) DetermineAllQuadrants(group string, things []*models.Thing) error {
	if !k.groups.Registered(group) {
		return errors.New("cannot determine quadrants for group").
			WithType(models.ErrTypeGroupNotRegistered).
			WithTag("group", group)
	}

	start := time.Now()

	for _, row := range k.rows {
		for _, q := range row.Quadrants {
			q.Clear(group)
		}
	}
	for _, t := range things {
		if err := k.DetermineThingQuadrants(t); err != nil {
			return err
		}
	}

	instrumentDetermineAll(group, time.Since(start))
	return nil
}

// DetermineThingQuadrants recomputes the set of quadrants a thing overlaps
// and rewrites the bidirectional references in row-major order. A thing
// entirely outside the grid ends up in zero quadrants.
func (k *Keeper) DetermineThingQuadrants(t *models.Thing) error {
	if !k.groups.Registered(t.GroupType) {
		return errors.New("cannot determine quadrants for thing").
			WithType(models.ErrTypeGroupNotRegistered).
			WithTag("group", t.GroupType)
	}

	bounds := t.EffectiveBounds(k.checkOffsetX, k.checkOffsetY)

	rowStart := max(int(math.Floor((bounds.Top-k.top)/k.quadrantHeight)), 0)
	rowEnd := min(int(math.Ceil((bounds.Bottom-k.top)/k.quadrantHeight))-1, len(k.rows)-1)
	colStart := max(int(math.Floor((bounds.Left-k.left)/k.quadrantWidth)), 0)
	colEnd := min(int(math.Ceil((bounds.Right-k.left)/k.quadrantWidth))-1, len(k.cols)-1)

	t.ClearQuadrants()

	for r := rowStart; r <= rowEnd; r++ {
		for c := colStart; c <= colEnd; c++ {
			k.SetThingInQuadrant(t, k.rows[r].Quadrants[c], t.GroupType)
		}
	}

	if t.Changed {
		for _, q := range t.Quadrants {
			q.Changed = true
		}
		t.Changed = false
	}

	instrumentDetermination(t.GroupType)
	return nil
}

// SetThingInQuadrant establishes the bidirectional thing/quadrant relation.
// Callers must not invoke it twice for the same pair within one
// determination pass; it performs no existence check.
func (k *Keeper) SetThingInQuadrant(t *models.Thing, q *models.Quadrant, group string) {
	q.Add(t, group)
	t.Quadrants = append(t.Quadrants, q)
	t.NumQuadrants++
}

func (k *Keeper) createQuadrant(left, top float64) *models.Quadrant {
	q := k.factory()
	for _, name := range k.groups.Names() {
		q.EnsureGroup(name)
	}
	q.SetBounds(top, left+k.quadrantWidth, top+k.quadrantHeight, left)
	return q
}

func (k *Keeper) emitAdd(e StripEvent) {
	instrumentStripAdd(string(e.Direction))
	k.onAdd(e)
}

func (k *Keeper) emitRemove(e StripEvent) {
	instrumentStripRemove(string(e.Direction))
	k.onRemove(e)
}
