package models

// A QuadrantRow is a border-to-border strip of quadrants sharing a common
// top, ordered left to right. A QuadrantCol is the vertical counterpart,
// sharing a common left and ordered top to bottom. Rows and cols are index
// structures over the same quadrant objects: a quadrant belongs to exactly
// one row and one col, and rows[r].Quadrants[c] == cols[c].Quadrants[r].

type QuadrantRow struct {
	Top       float64
	Left      float64
	Quadrants []*Quadrant
}

func NewQuadrantRow(left, top float64) *QuadrantRow {
	return &QuadrantRow{
		Top:  top,
		Left: left,
	}
}

// Bounds returns the union rectangle of the row's quadrants.
func (r *QuadrantRow) Bounds() BoundingBox {
	bounds := BoundingBox{Top: r.Top, Left: r.Left, Bottom: r.Top, Right: r.Left}
	for _, q := range r.Quadrants {
		bounds = bounds.Union(q.BoundingBox)
	}
	return bounds
}

// Append adds a quadrant at the row's right end.
func (r *QuadrantRow) Append(q *Quadrant) {
	r.Quadrants = append(r.Quadrants, q)
}

// Prepend adds a quadrant at the row's left end and pulls the row's left
// edge back to match.
func (r *QuadrantRow) Prepend(q *Quadrant) {
	r.Quadrants = append([]*Quadrant{q}, r.Quadrants...)
	r.Left = q.Left
}

// PopLast removes and returns the rightmost quadrant, or nil when empty.
func (r *QuadrantRow) PopLast() *Quadrant {
	if len(r.Quadrants) == 0 {
		return nil
	}
	q := r.Quadrants[len(r.Quadrants)-1]
	r.Quadrants = r.Quadrants[:len(r.Quadrants)-1]
	return q
}

// PopFirst removes and returns the leftmost quadrant, moving the row's left
// edge forward, or nil when empty.
func (r *QuadrantRow) PopFirst() *Quadrant {
	if len(r.Quadrants) == 0 {
		return nil
	}
	q := r.Quadrants[0]
	r.Quadrants = r.Quadrants[1:]
	if len(r.Quadrants) != 0 {
		r.Left = r.Quadrants[0].Left
	}
	return q
}

type QuadrantCol struct {
	Top       float64
	Left      float64
	Quadrants []*Quadrant
}

func NewQuadrantCol(left, top float64) *QuadrantCol {
	return &QuadrantCol{
		Top:  top,
		Left: left,
	}
}

func (c *QuadrantCol) Bounds() BoundingBox {
	bounds := BoundingBox{Top: c.Top, Left: c.Left, Bottom: c.Top, Right: c.Left}
	for _, q := range c.Quadrants {
		bounds = bounds.Union(q.BoundingBox)
	}
	return bounds
}

// Append adds a quadrant at the col's bottom end.
func (c *QuadrantCol) Append(q *Quadrant) {
	c.Quadrants = append(c.Quadrants, q)
}

// Prepend adds a quadrant at the col's top end and pulls the col's top edge
// back to match.
func (c *QuadrantCol) Prepend(q *Quadrant) {
	c.Quadrants = append([]*Quadrant{q}, c.Quadrants...)
	c.Top = q.Top
}

func (c *QuadrantCol) PopLast() *Quadrant {
	if len(c.Quadrants) == 0 {
		return nil
	}
	q := c.Quadrants[len(c.Quadrants)-1]
	c.Quadrants = c.Quadrants[:len(c.Quadrants)-1]
	return q
}

func (c *QuadrantCol) PopFirst() *Quadrant {
	if len(c.Quadrants) == 0 {
		return nil
	}
	q := c.Quadrants[0]
	c.Quadrants = c.Quadrants[1:]
	if len(c.Quadrants) != 0 {
		c.Top = c.Quadrants[0].Top
	}
	return q
}
