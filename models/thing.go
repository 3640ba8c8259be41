package models

// A Thing is a bounding box tracked for spatial membership. Things are owned
// by their producer; the grid keeper only writes Quadrants and NumQuadrants
// and reads then clears the Changed flag.
type Thing struct {
	BoundingBox

	// Session-scoped identifier, zero for things outside a session.
	ID uint32 `json:"id,omitempty"`

	// The group bucket the thing is filed under.
	GroupType string `json:"group_type"`

	// Optional visual displacement. It affects membership only when the
	// keeper is configured to check it.
	OffsetX float64 `json:"offset_x,omitempty"`
	OffsetY float64 `json:"offset_y,omitempty"`

	// Back-references to every quadrant currently containing the thing,
	// recomputed from scratch on each determination pass.
	Quadrants    []*Quadrant `json:"-"`
	NumQuadrants int         `json:"num_quadrants"`
}

// EffectiveBounds returns the box used for membership: the raw box, shifted
// by the visual offsets that are enabled.
func (t *Thing) EffectiveBounds(checkOffsetX, checkOffsetY bool) BoundingBox {
	bounds := t.BoundingBox
	if checkOffsetX {
		bounds.Left += t.OffsetX
		bounds.Right += t.OffsetX
	}
	if checkOffsetY {
		bounds.Top += t.OffsetY
		bounds.Bottom += t.OffsetY
	}
	return bounds
}

// ClearQuadrants empties the back-reference list, keeping its capacity.
func (t *Thing) ClearQuadrants() {
	t.Quadrants = t.Quadrants[:0]
	t.NumQuadrants = 0
}
