package models

// BoundingBox is an axis-aligned rectangle in screen space. Top is the
// smallest vertical coordinate and Left the smallest horizontal one, so
// Top <= Bottom and Left <= Right. Degenerate boxes with zero area are
// allowed. Geometric well-formedness is trusted, not validated.
type BoundingBox struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`

	// Changed marks the box as dirty since the last tick. It is set by
	// whoever mutates the box and reset by its consumer.
	Changed bool `json:"changed,omitempty"`
}

func (b *BoundingBox) SetBounds(top, right, bottom, left float64) {
	b.Top = top
	b.Right = right
	b.Bottom = bottom
	b.Left = left
}

func (b *BoundingBox) Translate(dx, dy float64) {
	b.Top += dy
	b.Bottom += dy
	b.Left += dx
	b.Right += dx
}

func (b BoundingBox) Width() float64 {
	return b.Right - b.Left
}

func (b BoundingBox) Height() float64 {
	return b.Bottom - b.Top
}

// Intersects reports whether the two boxes share a non-zero area. Boxes
// that only touch on an edge or a corner do not intersect.
func (b BoundingBox) Intersects(o BoundingBox) bool {
	if b.Left >= o.Right || o.Left >= b.Right {
		return false
	}
	if b.Top >= o.Bottom || o.Top >= b.Bottom {
		return false
	}
	return true
}

// Union returns the smallest box containing both b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	u := b
	if o.Top < u.Top {
		u.Top = o.Top
	}
	if o.Left < u.Left {
		u.Left = o.Left
	}
	if o.Bottom > u.Bottom {
		u.Bottom = o.Bottom
	}
	if o.Right > u.Right {
		u.Right = o.Right
	}
	return u
}
