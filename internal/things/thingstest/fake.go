// Package thingstest provides an in-memory things.Service for tests.
package thingstest

import (
	"context"
	"errors"
	"sync"

	"smarthub/internal/things"
)

// SetCall records one SetThingProperty invocation
type SetCall struct {
	Thing    string
	Property string
	Value    any
}

// ActionCall records one PerformAction invocation
type ActionCall struct {
	Thing  string
	Action string
	Input  map[string]any
}

// Service keeps thing state in memory and reports changes on Bus
type Service struct {
	Bus *things.Bus

	mu       sync.Mutex
	state    map[string]map[string]any
	sets     []SetCall
	actions  []ActionCall
	failSets int
	failGets int
}

func New(bus *things.Bus) *Service {
	return &Service{Bus: bus, state: make(map[string]map[string]any)}
}

// AddThing registers a thing with initial property values without
// publishing anything.
func (s *Service) AddThing(thingID string, props map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := make(map[string]any, len(props))
	for k, v := range props {
		m[k] = v
	}
	s.state[thingID] = m
}

// Report stores a property value the way a device would report it. A new
// thing is only announced; for known things the change is published.
func (s *Service) Report(thingID, propertyID string, value any) {
	s.mu.Lock()
	props, known := s.state[thingID]
	if !known {
		props = make(map[string]any)
		s.state[thingID] = props
	}
	props[propertyID] = value
	s.mu.Unlock()

	if s.Bus == nil {
		return
	}
	if !known {
		s.Bus.PublishThingAdded(thingID)
		return
	}
	s.Bus.PublishPropertyChanged(things.PropertyEvent{Thing: thingID, Property: propertyID, Value: value})
}

// FailNextSets makes the next n writes return an error
func (s *Service) FailNextSets(n int) {
	s.mu.Lock()
	s.failSets = n
	s.mu.Unlock()
}

// FailNextGets makes the next n reads return an error
func (s *Service) FailNextGets(n int) {
	s.mu.Lock()
	s.failGets = n
	s.mu.Unlock()
}

func (s *Service) GetThingProperty(_ context.Context, thingID, propertyID string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGets > 0 {
		s.failGets--
		return nil, errors.New("read failed")
	}
	props, ok := s.state[thingID]
	if !ok {
		return nil, things.ErrThingNotFound
	}
	v, ok := props[propertyID]
	if !ok {
		return nil, things.ErrPropertyNotFound
	}
	return v, nil
}

func (s *Service) SetThingProperty(_ context.Context, thingID, propertyID string, value any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSets > 0 {
		s.failSets--
		return nil, errors.New("write failed")
	}
	props, ok := s.state[thingID]
	if !ok {
		return nil, things.ErrThingNotFound
	}
	props[propertyID] = value
	s.sets = append(s.sets, SetCall{Thing: thingID, Property: propertyID, Value: value})
	return value, nil
}

func (s *Service) PerformAction(_ context.Context, thingID, action string, input map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state[thingID]; !ok {
		return things.ErrThingNotFound
	}
	s.actions = append(s.actions, ActionCall{Thing: thingID, Action: action, Input: input})
	return nil
}

// Sets returns the successful writes so far
func (s *Service) Sets() []SetCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SetCall(nil), s.sets...)
}

// Actions returns the actions performed so far
func (s *Service) Actions() []ActionCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ActionCall(nil), s.actions...)
}

// Value returns the stored value of a property
func (s *Service) Value(thingID, propertyID string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[thingID][propertyID]
}
