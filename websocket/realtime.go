package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadspace/featureflag"
	"github.com/aukilabs/quadspace/models"
	"github.com/aukilabs/quadspace/protocol"
	"github.com/aukilabs/quadspace/quads"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

const (
	gridModuleName = "grid"

	// HeaderClientID carries an optional client-chosen id used to correlate
	// logs across reconnections.
	HeaderClientID = "X-Client-Id"

	defaultSyncClockInterval = time.Second * 10
	defaultIdleTimeout       = time.Minute
)

// gridState is the per-session grid, attached to the session as module
// state. The mutex serializes keeper access between connection handlers and
// the session frame loop.
type gridState struct {
	mutex  sync.Mutex
	keeper *quads.Keeper
}

func newGridState(opts quads.Options, session *models.Session, flags featureflag.FeatureFlag) (*gridState, error) {
	broadcast := func(kind string, e quads.StripEvent) {
		flags.IfNotSet(featureflag.FlagDisableStripUpdateBroadcast, func() {
			msg, err := protocol.MsgFrom(protocol.MsgTypeStripUpdate, protocol.StripUpdate{
				Kind:      kind,
				Direction: string(e.Direction),
				Bounds: protocol.Bounds{
					Top:    e.Top,
					Right:  e.Right,
					Bottom: e.Bottom,
					Left:   e.Left,
				},
			})
			if err != nil {
				return
			}
			session.Broadcast(nil, msg)
		})
	}

	opts.OnAdd = func(e quads.StripEvent) { broadcast("add", e) }
	opts.OnRemove = func(e quads.StripEvent) { broadcast("remove", e) }

	keeper, err := quads.New(opts)
	if err != nil {
		return nil, err
	}
	return &gridState{keeper: keeper}, nil
}

// determineAll resynchronizes every group against the session's current
// things. It runs once per session frame.
func (s *gridState) determineAll(session *models.Session) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, group := range s.keeper.GroupNames() {
		if err := s.keeper.DetermineAllQuadrants(group, session.ThingsByGroup(group)); err != nil {
			logs.WithTag("group", group).
				WithTag("session_uuid", session.SessionUUID).
				Error(errors.New("determining quadrants failed").Wrap(err))
		}
	}
}

func boundsToProtocol(b models.BoundingBox) protocol.Bounds {
	return protocol.Bounds{
		Top:    b.Top,
		Right:  b.Right,
		Bottom: b.Bottom,
		Left:   b.Left,
	}
}

// RealtimeHandler manages one client connection and relays grid changes to
// the other participants of the joined session in realtime.
type RealtimeHandler struct {
	// The interval between each sync clock message sent to the connected
	// client.
	ClientSyncClockInterval time.Duration

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The duration of a session frame.
	FrameDuration time.Duration

	// The store that contains all the server sessions.
	Sessions *models.SessionStore

	// The geometry and groups applied to newly created session grids.
	Grid quads.Options

	FeatureFlags featureflag.FeatureFlag

	conn               *websocket.Conn
	currentSession     *models.Session
	currentParticipant *models.Participant

	clientID string
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn

	h.clientID = conn.Request().Header.Get(HeaderClientID)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.PingRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	respond.Send(protocol.MsgTypePingResponse, protocol.PingResponse{
		RequestID: req.RequestID,
	})
	return nil
}

func (h *RealtimeHandler) HandleSessionJoin(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.SessionJoinRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if h.currentSession != nil && h.Sessions.GlobalSessionID(h.currentSession.ID) == req.SessionID {
		h.sendError(respond, req.RequestID, protocol.ErrTypeSessionAlreadyJoined, "")
		return nil
	}

	if h.currentParticipant != nil {
		h.leaveSession()
	}

	session, ok := h.Sessions.GetByGlobalID(req.SessionID)
	if !ok && req.SessionID != "" {
		h.sendError(respond, req.RequestID, protocol.ErrTypeSessionNotFound, "")
		return nil
	}

	if !ok {
		session = models.NewSession(h.Sessions.NewID(), h.frameDuration())

		state, err := newGridState(h.Grid, session, h.FeatureFlags)
		if err != nil {
			return errors.New("creating session grid failed").Wrap(err)
		}
		session.SetModuleState(gridModuleName, state)
		session.HandleFrame(func() { state.determineAll(session) })

		h.Sessions.Add(ctx, session)
		go session.StartDispatchFrames()
	}

	participant := &models.Participant{
		ID:        session.NewParticipantID(),
		Responder: respond,
	}
	session.AddParticipant(participant)

	h.currentSession = session
	h.currentParticipant = participant

	state := h.gridState()
	state.mutex.Lock()
	bounds := state.keeper.Bounds()
	groupNames := state.keeper.GroupNames()
	state.mutex.Unlock()

	respond.Send(protocol.MsgTypeSessionJoinResponse, protocol.SessionJoinResponse{
		RequestID:     req.RequestID,
		SessionID:     h.Sessions.GlobalSessionID(session.ID),
		SessionUUID:   session.SessionUUID,
		ParticipantID: participant.ID,
		GroupNames:    groupNames,
		GridBounds:    boundsToProtocol(bounds),
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableParticipantJoinBroadcast, func() {
		msg, err := protocol.MsgFrom(protocol.MsgTypeParticipantJoined, protocol.ParticipantJoined{
			ParticipantID: participant.ID,
		})
		if err != nil {
			return
		}
		session.Broadcast(participant, msg)
	})
	return nil
}

func (h *RealtimeHandler) HandleSessionLeave(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.SessionLeaveRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if h.currentSession == nil {
		h.sendError(respond, req.RequestID, protocol.ErrTypeSessionNotJoined, "")
		return nil
	}

	h.leaveSession()
	respond.Send(protocol.MsgTypeSessionLeaveResponse, protocol.SessionLeaveResponse{
		RequestID: req.RequestID,
	})
	return nil
}

func (h *RealtimeHandler) HandleThingUpsert(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.ThingUpsertRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	session := h.currentSession
	if session == nil {
		h.sendError(respond, req.RequestID, protocol.ErrTypeSessionNotJoined, "")
		return nil
	}

	var thing *models.Thing
	created := false

	if req.Thing.ID == 0 {
		thing = &models.Thing{ID: session.NewThingID()}
		created = true
	} else {
		var ok bool
		thing, ok = session.ThingByID(req.Thing.ID)
		if !ok {
			h.sendError(respond, req.RequestID, protocol.ErrTypeThingNotFound, "")
			return nil
		}
	}

	// The frame loop reads thing state under the grid mutex, so field
	// writes happen under it too.
	state := h.gridState()
	state.mutex.Lock()
	thing.GroupType = req.Thing.GroupType
	thing.SetBounds(req.Thing.Top, req.Thing.Right, req.Thing.Bottom, req.Thing.Left)
	thing.OffsetX = req.Thing.OffsetX
	thing.OffsetY = req.Thing.OffsetY
	thing.Changed = true

	err := state.keeper.DetermineThingQuadrants(thing)
	numQuadrants := thing.NumQuadrants
	state.mutex.Unlock()
	if err != nil {
		h.sendError(respond, req.RequestID, errors.Type(err), err.Error())
		return nil
	}

	if created {
		session.AddThing(thing)
		h.currentParticipant.AddThing(thing)
	}

	respond.Send(protocol.MsgTypeThingUpsertResponse, protocol.ThingUpsertResponse{
		RequestID:    req.RequestID,
		ThingID:      thing.ID,
		NumQuadrants: numQuadrants,
	})
	return nil
}

func (h *RealtimeHandler) HandleThingRemove(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.ThingRemoveRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	session := h.currentSession
	if session == nil {
		h.sendError(respond, req.RequestID, protocol.ErrTypeSessionNotJoined, "")
		return nil
	}

	thing, ok := session.ThingByID(req.ThingID)
	if !ok {
		h.sendError(respond, req.RequestID, protocol.ErrTypeThingNotFound, "")
		return nil
	}

	// Quadrants keep their stale reference until the next frame pass.
	session.RemoveThing(thing)
	h.currentParticipant.RemoveThing(thing)

	respond.Send(protocol.MsgTypeThingRemoveResponse, protocol.ThingRemoveResponse{
		RequestID: req.RequestID,
	})
	return nil
}

func (h *RealtimeHandler) HandleGridShift(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.GridShiftRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if h.currentSession == nil {
		h.sendError(respond, req.RequestID, protocol.ErrTypeSessionNotJoined, "")
		return nil
	}

	state := h.gridState()
	state.mutex.Lock()
	state.keeper.ShiftQuadrants(req.DX, req.DY)
	bounds := state.keeper.Bounds()
	state.mutex.Unlock()

	respond.Send(protocol.MsgTypeGridShiftResponse, protocol.GridShiftResponse{
		RequestID:  req.RequestID,
		GridBounds: boundsToProtocol(bounds),
	})
	return nil
}

func (h *RealtimeHandler) HandleGridReset(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.GridResetRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if h.currentSession == nil {
		h.sendError(respond, req.RequestID, protocol.ErrTypeSessionNotJoined, "")
		return nil
	}

	state := h.gridState()
	state.mutex.Lock()
	state.keeper.ResetQuadrants()
	bounds := state.keeper.Bounds()
	state.mutex.Unlock()

	respond.Send(protocol.MsgTypeGridResetResponse, protocol.GridResetResponse{
		RequestID:  req.RequestID,
		GridBounds: boundsToProtocol(bounds),
	})
	return nil
}

func (h *RealtimeHandler) HandleMembershipGet(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.MembershipGetRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	session := h.currentSession
	if session == nil {
		h.sendError(respond, req.RequestID, protocol.ErrTypeSessionNotJoined, "")
		return nil
	}

	thing, ok := session.ThingByID(req.ThingID)
	if !ok {
		h.sendError(respond, req.RequestID, protocol.ErrTypeThingNotFound, "")
		return nil
	}

	state := h.gridState()
	state.mutex.Lock()
	quadrants := make([]protocol.Bounds, 0, thing.NumQuadrants)
	for _, q := range thing.Quadrants[:thing.NumQuadrants] {
		quadrants = append(quadrants, boundsToProtocol(q.BoundingBox))
	}
	state.mutex.Unlock()

	respond.Send(protocol.MsgTypeMembershipGetResponse, protocol.MembershipGetResponse{
		RequestID: req.RequestID,
		ThingID:   thing.ID,
		Quadrants: quadrants,
	})
	return nil
}

func (h *RealtimeHandler) HandleDebugInfo(ctx context.Context, respond protocol.ResponseSender, msg protocol.Msg) error {
	var req protocol.DebugInfoRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if h.currentSession == nil {
		h.sendError(respond, req.RequestID, protocol.ErrTypeSessionNotJoined, "")
		return nil
	}

	state := h.gridState()
	state.mutex.Lock()
	info := state.keeper.GetDebugInfo()
	state.mutex.Unlock()

	respond.Send(protocol.MsgTypeDebugInfoResponse, protocol.DebugInfoResponse{
		RequestID:      req.RequestID,
		NumRows:        info.NumRows,
		NumCols:        info.NumCols,
		QuadrantWidth:  info.QuadrantWidth,
		QuadrantHeight: info.QuadrantHeight,
		GridBounds:     boundsToProtocol(info.Bounds),
		Occupancy:      info.Occupancy,
	})
	return nil
}

func (h *RealtimeHandler) HandleDisconnect(err error) {
	h.leaveSession()
}

func (h *RealtimeHandler) SendSyncClock(ctx context.Context, send protocol.ResponseSender) error {
	send.Send(protocol.MsgTypeSyncClock, protocol.SyncClock{
		Timestamp: time.Now().UTC(),
	})
	return nil
}

func (h *RealtimeHandler) Receiver() protocol.Receiver {
	return protocol.NewReceiver(h.conn)
}

func (h *RealtimeHandler) Sender() protocol.Sender {
	return protocol.NewSender(h.conn)
}

func (h *RealtimeHandler) Close() {
	h.leaveSession()
}

func (h *RealtimeHandler) SyncClockInterval() time.Duration {
	if h.ClientSyncClockInterval <= 0 {
		return defaultSyncClockInterval
	}
	return h.ClientSyncClockInterval
}

func (h *RealtimeHandler) IdleTimeout() time.Duration {
	if h.ClientIdleTimeout <= 0 {
		return defaultIdleTimeout
	}
	return h.ClientIdleTimeout
}

func (h *RealtimeHandler) GetSessions() *models.SessionStore {
	return h.Sessions
}

func (h *RealtimeHandler) CurrentSession() *models.Session {
	return h.currentSession
}

func (h *RealtimeHandler) CurrentParticipant() *models.Participant {
	return h.currentParticipant
}

func (h *RealtimeHandler) GetClientID() string {
	return h.clientID
}

func (h *RealtimeHandler) frameDuration() time.Duration {
	if h.FrameDuration <= 0 {
		return time.Second / 20
	}
	return h.FrameDuration
}

func (h *RealtimeHandler) gridState() *gridState {
	if h.currentSession == nil {
		return nil
	}
	state, _ := h.currentSession.ModuleState(gridModuleName)
	s, _ := state.(*gridState)
	return s
}

func (h *RealtimeHandler) sendError(respond protocol.ResponseSender, requestID uint32, code, reason string) {
	respond.Send(protocol.MsgTypeError, protocol.ErrorResponse{
		RequestID: requestID,
		Code:      code,
		Reason:    reason,
	})
}

func (h *RealtimeHandler) leaveSession() {
	session := h.currentSession
	participant := h.currentParticipant
	if session == nil || participant == nil {
		h.currentSession = nil
		h.currentParticipant = nil
		return
	}

	for id := range participant.ThingIDs() {
		if t, ok := session.ThingByID(id); ok {
			session.RemoveThing(t)
		}
	}
	session.RemoveParticipant(participant)

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableParticipantLeaveBroadcast, func() {
		msg, err := protocol.MsgFrom(protocol.MsgTypeParticipantLeft, protocol.ParticipantLeft{
			ParticipantID: participant.ID,
		})
		if err != nil {
			return
		}
		session.Broadcast(participant, msg)
	})

	if session.ParticipantCount() == 0 {
		h.Sessions.Remove(context.Background(), session)
	}

	h.currentSession = nil
	h.currentParticipant = nil
}
