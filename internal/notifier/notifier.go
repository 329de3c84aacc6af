// Package notifier holds the outlets rule effects can send notifications to.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrNotifierNotFound = errors.New("notifier not found")
	ErrOutletNotFound   = errors.New("outlet not found")
)

// Level is the urgency of a notification
type Level int

const (
	Low Level = iota
	Normal
	High
)

func (l Level) String() string {
	switch l {
	case Low:
		return "low"
	case Normal:
		return "normal"
	case High:
		return "high"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Outlet is a single destination of a notifier (a topic, a log, a phone)
type Outlet interface {
	ID() string
	Notify(ctx context.Context, title, message string, level Level) error
}

// Ref names an outlet within its notifier
type Ref struct {
	Notifier string
	Outlet   string
}

// Registry resolves (notifier, outlet) pairs
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]map[string]Outlet
	def       Ref
}

func NewRegistry() *Registry {
	return &Registry{notifiers: make(map[string]map[string]Outlet)}
}

// Register adds outlets under notifierID, replacing outlets with the same id
func (r *Registry) Register(notifierID string, outlets ...Outlet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.notifiers[notifierID]
	if !ok {
		m = make(map[string]Outlet)
		r.notifiers[notifierID] = m
	}
	for _, o := range outlets {
		m[o.ID()] = o
	}
}

func (r *Registry) Outlet(notifierID, outletID string) (Outlet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.notifiers[notifierID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotifierNotFound, notifierID)
	}
	o, ok := m[outletID]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrOutletNotFound, notifierID, outletID)
	}
	return o, nil
}

// SetDefault selects the outlet used for untargeted notifications
func (r *Registry) SetDefault(notifierID, outletID string) {
	r.mu.Lock()
	r.def = Ref{Notifier: notifierID, Outlet: outletID}
	r.mu.Unlock()
}

// DefaultRef returns the configured default outlet reference
func (r *Registry) DefaultRef() Ref {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def
}

func (r *Registry) Default() (Outlet, error) {
	def := r.DefaultRef()
	return r.Outlet(def.Notifier, def.Outlet)
}

// Refs lists every registered outlet in a stable order
func (r *Registry) Refs() []Ref {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var refs []Ref
	for n, outlets := range r.notifiers {
		for o := range outlets {
			refs = append(refs, Ref{Notifier: n, Outlet: o})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Notifier != refs[j].Notifier {
			return refs[i].Notifier < refs[j].Notifier
		}
		return refs[i].Outlet < refs[j].Outlet
	})
	return refs
}
