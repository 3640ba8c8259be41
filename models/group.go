package models

import (
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// ErrTypeGroupNotRegistered tags errors returned when a thing refers to a
// group name the grid was not configured with.
const ErrTypeGroupNotRegistered = "group_not_registered"

// GroupStore holds the fixed set of group names a grid partitions things
// by, with a numeric id per name.
type GroupStore struct {
	mutex     sync.RWMutex
	ids       SequentialIDGenerator
	nameIndex map[uint32]string
	idIndex   map[string]uint32
}

func NewGroupStore(names ...string) *GroupStore {
	s := &GroupStore{
		nameIndex: make(map[uint32]string, len(names)),
		idIndex:   make(map[string]uint32, len(names)),
	}
	for _, name := range names {
		s.Add(name)
	}
	return s
}

// Add registers a group name and returns its id. Adding an existing name
// returns the id it already has.
func (s *GroupStore) Add(name string) uint32 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if id, ok := s.idIndex[name]; ok {
		return id
	}

	id := s.ids.New()
	s.nameIndex[id] = name
	s.idIndex[name] = id
	return id
}

func (s *GroupStore) GetID(name string) (uint32, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	id, ok := s.idIndex[name]
	if !ok {
		return 0, errors.New("group is not registered").
			WithType(ErrTypeGroupNotRegistered).
			WithTag("group", name)
	}
	return id, nil
}

func (s *GroupStore) GetName(id uint32) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	name, ok := s.nameIndex[id]
	if !ok {
		return "", errors.New("group is not registered").
			WithType(ErrTypeGroupNotRegistered).
			WithTag("group_id", id)
	}
	return name, nil
}

func (s *GroupStore) Registered(name string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	_, ok := s.idIndex[name]
	return ok
}

// Names returns the registered group names in registration order.
func (s *GroupStore) Names() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	names := make([]string, 0, len(s.nameIndex))
	for id := uint32(1); id <= uint32(len(s.nameIndex)); id++ {
		if name, ok := s.nameIndex[id]; ok {
			names = append(names, name)
		}
	}
	return names
}

func (s *GroupStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.idIndex)
}
