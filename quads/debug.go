package quads

import "github.com/aukilabs/quadspace/models"

// DebugInfo is a point-in-time snapshot of the grid's geometry and
// occupancy, for visualization and smoke testing.
type DebugInfo struct {
	NumRows        int                `json:"num_rows"`
	NumCols        int                `json:"num_cols"`
	QuadrantWidth  float64            `json:"quadrant_width"`
	QuadrantHeight float64            `json:"quadrant_height"`
	Bounds         models.BoundingBox `json:"bounds"`
	OffsetX        float64            `json:"offset_x"`
	OffsetY        float64            `json:"offset_y"`

	// Live thing counts per group, in row-major order.
	Occupancy map[string][]int `json:"occupancy"`
}

// GetDebugInfo snapshots the grid. The snapshot shares nothing with the
// keeper and stays valid across later shifts and determinations.
func (k *Keeper) GetDebugInfo() DebugInfo {
	info := DebugInfo{
		NumRows:        len(k.rows),
		NumCols:        len(k.cols),
		QuadrantWidth:  k.quadrantWidth,
		QuadrantHeight: k.quadrantHeight,
		Bounds:         k.Bounds(),
		OffsetX:        k.offsetX,
		OffsetY:        k.offsetY,
		Occupancy:      make(map[string][]int),
	}

	for _, group := range k.groups.Names() {
		counts := make([]int, 0, len(k.rows)*len(k.cols))
		for _, row := range k.rows {
			for _, q := range row.Quadrants {
				counts = append(counts, q.NumThings[group])
			}
		}
		info.Occupancy[group] = counts
	}
	return info
}
