package models

// A Quadrant is one fixed-size grid cell. It keeps a per-group buffer of the
// things believed to overlap it, paired with a live count. Removal never
// shrinks a buffer in place: Clear resets the count and stale trailing slots
// are overwritten by the next determination pass. Slots at or past the live
// count must never be read.
type Quadrant struct {
	BoundingBox

	Things    map[string][]*Thing `json:"-"`
	NumThings map[string]int      `json:"num_things"`
}

// NewQuadrant returns an empty quadrant with storage preallocated for the
// given group names.
func NewQuadrant(groupNames []string) *Quadrant {
	q := &Quadrant{
		Things:    make(map[string][]*Thing, len(groupNames)),
		NumThings: make(map[string]int, len(groupNames)),
	}
	for _, name := range groupNames {
		q.Things[name] = nil
		q.NumThings[name] = 0
	}
	return q
}

// EnsureGroup makes sure storage exists for a group. Quadrants built by a
// custom factory go through here before first use.
func (q *Quadrant) EnsureGroup(group string) {
	if q.Things == nil {
		q.Things = make(map[string][]*Thing)
		q.NumThings = make(map[string]int)
	}
	if _, ok := q.Things[group]; !ok {
		q.Things[group] = nil
		q.NumThings[group] = 0
	}
}

// Clear resets the group's live count without releasing its buffer.
func (q *Quadrant) Clear(group string) {
	q.NumThings[group] = 0
}

// Add files a thing under the group, overwriting the first stale slot when
// one is available so steady-state insertion does not allocate.
func (q *Quadrant) Add(t *Thing, group string) {
	n := q.NumThings[group]
	if buffer := q.Things[group]; n < len(buffer) {
		buffer[n] = t
	} else {
		q.Things[group] = append(buffer, t)
	}
	q.NumThings[group] = n + 1
}

// LiveThings returns the live portion of the group's buffer. The returned
// slice aliases the buffer and is invalidated by the next determination.
func (q *Quadrant) LiveThings(group string) []*Thing {
	return q.Things[group][:q.NumThings[group]]
}
