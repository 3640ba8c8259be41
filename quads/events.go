package quads

// Direction names the grid edge a strip event happened on.
type Direction string

const (
	DirectionTop    Direction = "top"
	DirectionRight  Direction = "right"
	DirectionBottom Direction = "bottom"
	DirectionLeft   Direction = "left"
)

// StripEvent describes one row or col of world area entering or leaving the
// grid's coverage during a pan or an edge operation.
type StripEvent struct {
	Direction Direction `json:"direction"`
	Top       float64   `json:"top"`
	Right     float64   `json:"right"`
	Bottom    float64   `json:"bottom"`
	Left      float64   `json:"left"`
}

// StripHandler observes strip events. Handlers are invoked synchronously,
// exactly once per event, in the order events happen.
type StripHandler func(StripEvent)
