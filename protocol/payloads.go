package protocol

import "time"

// Bounds is the wire form of an axis-aligned rectangle.
type Bounds struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// ThingState is the wire form of a tracked thing.
type ThingState struct {
	ID        uint32  `json:"id,omitempty"`
	GroupType string  `json:"group_type"`
	Top       float64 `json:"top"`
	Right     float64 `json:"right"`
	Bottom    float64 `json:"bottom"`
	Left      float64 `json:"left"`
	OffsetX   float64 `json:"offset_x,omitempty"`
	OffsetY   float64 `json:"offset_y,omitempty"`
	Changed   bool    `json:"changed,omitempty"`
}

type ErrorResponse struct {
	RequestID uint32 `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Reason    string `json:"reason,omitempty"`
}

type PingRequest struct {
	RequestID uint32 `json:"request_id"`
}

type PingResponse struct {
	RequestID uint32 `json:"request_id"`
}

type SyncClock struct {
	Timestamp time.Time `json:"timestamp"`
}

type SessionJoinRequest struct {
	RequestID uint32 `json:"request_id"`

	// The global id of the session to join. Empty to create a new session.
	SessionID string `json:"session_id,omitempty"`
}

type SessionJoinResponse struct {
	RequestID     uint32   `json:"request_id"`
	SessionID     string   `json:"session_id"`
	SessionUUID   string   `json:"session_uuid"`
	ParticipantID uint32   `json:"participant_id"`
	GroupNames    []string `json:"group_names"`
	GridBounds    Bounds   `json:"grid_bounds"`
}

type SessionLeaveRequest struct {
	RequestID uint32 `json:"request_id"`
}

type SessionLeaveResponse struct {
	RequestID uint32 `json:"request_id"`
}

type ParticipantJoined struct {
	ParticipantID uint32 `json:"participant_id"`
}

type ParticipantLeft struct {
	ParticipantID uint32 `json:"participant_id"`
}

type ThingUpsertRequest struct {
	RequestID uint32     `json:"request_id"`
	Thing     ThingState `json:"thing"`
}

type ThingUpsertResponse struct {
	RequestID    uint32 `json:"request_id"`
	ThingID      uint32 `json:"thing_id"`
	NumQuadrants int    `json:"num_quadrants"`
}

type ThingRemoveRequest struct {
	RequestID uint32 `json:"request_id"`
	ThingID   uint32 `json:"thing_id"`
}

type ThingRemoveResponse struct {
	RequestID uint32 `json:"request_id"`
}

type GridShiftRequest struct {
	RequestID uint32  `json:"request_id"`
	DX        float64 `json:"dx"`
	DY        float64 `json:"dy"`
}

type GridShiftResponse struct {
	RequestID  uint32 `json:"request_id"`
	GridBounds Bounds `json:"grid_bounds"`
}

type GridResetRequest struct {
	RequestID uint32 `json:"request_id"`
}

type GridResetResponse struct {
	RequestID  uint32 `json:"request_id"`
	GridBounds Bounds `json:"grid_bounds"`
}

// StripUpdate notifies session participants that a row or col of coverage
// entered or left the grid.
type StripUpdate struct {
	// "add" or "remove".
	Kind string `json:"kind"`

	// "top", "right", "bottom" or "left".
	Direction string `json:"direction"`

	Bounds Bounds `json:"bounds"`
}

type MembershipGetRequest struct {
	RequestID uint32 `json:"request_id"`
	ThingID   uint32 `json:"thing_id"`
}

type MembershipGetResponse struct {
	RequestID uint32   `json:"request_id"`
	ThingID   uint32   `json:"thing_id"`
	Quadrants []Bounds `json:"quadrants"`
}

type DebugInfoRequest struct {
	RequestID uint32 `json:"request_id"`
}

type DebugInfoResponse struct {
	RequestID      uint32           `json:"request_id"`
	NumRows        int              `json:"num_rows"`
	NumCols        int              `json:"num_cols"`
	QuadrantWidth  float64          `json:"quadrant_width"`
	QuadrantHeight float64          `json:"quadrant_height"`
	GridBounds     Bounds           `json:"grid_bounds"`
	Occupancy      map[string][]int `json:"occupancy"`
}
