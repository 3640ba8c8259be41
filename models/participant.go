package models

import "github.com/aukilabs/quadspace/protocol"

// A session participant.
type Participant struct {
	ID        uint32
	Responder protocol.ResponseSender

	thingIDs map[uint32]struct{}
}

// AddThing records that the participant owns the thing.
func (p *Participant) AddThing(t *Thing) {
	if p.thingIDs == nil {
		p.thingIDs = make(map[uint32]struct{})
	}
	p.thingIDs[t.ID] = struct{}{}
}

func (p *Participant) RemoveThing(t *Thing) {
	delete(p.thingIDs, t.ID)
}

func (p *Participant) ThingIDs() map[uint32]struct{} {
	return p.thingIDs
}

func (p *Participant) OwnsThing(id uint32) bool {
	_, ok := p.thingIDs[id]
	return ok
}
