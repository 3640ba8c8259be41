package models

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadspace/protocol"
	"github.com/google/uuid"
)

// Session groups the participants tracking one shared grid. Things and
// participants are session-scoped; the grid itself is attached as module
// state by the handler that owns it.
type Session struct {
	ID          uint32
	SessionUUID string

	participantIDs   SequentialIDGenerator
	participantMutex sync.RWMutex
	participants     map[uint32]*Participant

	thingIDs   SequentialIDGenerator
	thingMutex sync.RWMutex
	things     map[uint32]*Thing

	moduleStates map[string]any
	moduleMutex  sync.RWMutex

	startFrameOnce  sync.Once
	closeFrameChan  chan struct{}
	frameTicker     *time.Ticker
	frameHandlerIDs SequentialIDGenerator
	frameHandlers   map[uint32]func()
	frameMutex      sync.RWMutex

	closeOnce sync.Once
}

func NewSession(id uint32, frameDuration time.Duration) *Session {
	return &Session{
		ID:             id,
		SessionUUID:    uuid.New().String(),
		closeFrameChan: make(chan struct{}, 1),
		frameTicker:    time.NewTicker(frameDuration),
		participants:   make(map[uint32]*Participant),
		things:         make(map[uint32]*Thing),
		moduleStates:   make(map[string]any),
		frameHandlers:  make(map[uint32]func()),
	}
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.frameTicker.Stop()
		s.closeFrameChan <- struct{}{}
	})
}

func (s *Session) NewParticipantID() uint32 {
	return s.participantIDs.New()
}

func (s *Session) AddParticipant(p *Participant) {
	s.participantMutex.Lock()
	defer s.participantMutex.Unlock()

	s.participants[p.ID] = p
}

func (s *Session) RemoveParticipant(p *Participant) {
	s.participantMutex.Lock()
	defer s.participantMutex.Unlock()

	delete(s.participants, p.ID)
}

func (s *Session) GetParticipants() []*Participant {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	participants := make([]*Participant, 0, len(s.participants))
	for _, p := range s.participants {
		participants = append(participants, p)
	}
	return participants
}

func (s *Session) ParticipantCount() int {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	return len(s.participants)
}

func (s *Session) NewThingID() uint32 {
	return s.thingIDs.New()
}

func (s *Session) AddThing(t *Thing) {
	s.thingMutex.Lock()
	defer s.thingMutex.Unlock()

	s.things[t.ID] = t
}

func (s *Session) RemoveThing(t *Thing) {
	s.thingMutex.Lock()
	defer s.thingMutex.Unlock()

	delete(s.things, t.ID)
	s.thingIDs.Reuse(t.ID)
}

func (s *Session) ThingByID(id uint32) (*Thing, bool) {
	s.thingMutex.RLock()
	defer s.thingMutex.RUnlock()

	t, ok := s.things[id]
	return t, ok
}

func (s *Session) Things() []*Thing {
	s.thingMutex.RLock()
	defer s.thingMutex.RUnlock()

	things := make([]*Thing, 0, len(s.things))
	for _, t := range s.things {
		things = append(things, t)
	}
	return things
}

// ThingsByGroup returns the session's things filed under the given group.
func (s *Session) ThingsByGroup(group string) []*Thing {
	s.thingMutex.RLock()
	defer s.thingMutex.RUnlock()

	things := make([]*Thing, 0, len(s.things))
	for _, t := range s.things {
		if t.GroupType == group {
			things = append(things, t)
		}
	}
	return things
}

// Broadcast sends the message to every participant but the sender.
func (s *Session) Broadcast(sender *Participant, msg protocol.Msg) {
	s.participantMutex.RLock()
	defer s.participantMutex.RUnlock()

	for _, p := range s.participants {
		if p == sender {
			continue
		}
		p.Responder.SendMsg(msg)
	}
}

func (s *Session) SetModuleState(moduleName string, state any) {
	s.moduleMutex.Lock()
	defer s.moduleMutex.Unlock()

	s.moduleStates[moduleName] = state
}

func (s *Session) ModuleState(moduleName string) (any, bool) {
	s.moduleMutex.RLock()
	defer s.moduleMutex.RUnlock()

	state, ok := s.moduleStates[moduleName]
	return state, ok
}

// HandleFrame registers a handler called on every session frame. The
// returned cancel function unregisters it.
func (s *Session) HandleFrame(h func()) (cancel func()) {
	s.frameMutex.Lock()
	defer s.frameMutex.Unlock()

	id := s.frameHandlerIDs.New()
	s.frameHandlers[id] = h

	return func() {
		s.frameMutex.Lock()
		defer s.frameMutex.Unlock()

		delete(s.frameHandlers, id)
		s.frameHandlerIDs.Reuse(id)
	}
}

// StartDispatchFrames runs the frame loop until the session is closed. It
// blocks and is meant to be launched on its own goroutine.
func (s *Session) StartDispatchFrames() {
	s.startFrameOnce.Do(func() {
		for {
			select {
			case <-s.closeFrameChan:
				return

			case <-s.frameTicker.C:
				s.frameMutex.RLock()
				for _, h := range s.frameHandlers {
					h()
				}
				s.frameMutex.RUnlock()
			}
		}
	})
}

// SessionStore indexes the sessions served by this server.
type SessionStore struct {
	// Prefixes global session ids. Defaults to a random id per store.
	ServerID string

	initOnce sync.Once
	mutex    sync.RWMutex
	sessions map[string]*Session
	ids      SequentialIDGenerator
}

func (s *SessionStore) init() {
	s.sessions = map[string]*Session{}

	if s.ServerID == "" {
		s.ServerID = uuid.New().String()
	}
}

func (s *SessionStore) NewID() uint32 {
	return s.ids.New()
}

func (s *SessionStore) Add(ctx context.Context, session *Session) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.sessions[s.globalSessionID(session.ID)] = session

	instrumentIncreaseSessionGauge()
	instrumentCountSession()
	logs.WithTag("session_id", s.globalSessionID(session.ID)).
		WithTag("session_uuid", session.SessionUUID).
		Debug("session added")
}

func (s *SessionStore) Remove(ctx context.Context, session *Session) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.sessions, s.globalSessionID(session.ID))
	session.Close()

	s.ids.Reuse(session.ID)

	instrumentDecreaseSessionGauge()
}

func (s *SessionStore) GetByGlobalID(v string) (*Session, bool) {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, ok := s.sessions[v]
	return session, ok
}

func (s *SessionStore) Len() int {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.sessions)
}

func (s *SessionStore) GlobalSessionID(sessionID uint32) string {
	s.initOnce.Do(s.init)
	return s.globalSessionID(sessionID)
}

func (s *SessionStore) globalSessionID(sessionID uint32) string {
	return fmt.Sprintf("%sx%x", s.ServerID, sessionID)
}
