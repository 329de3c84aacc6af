// Package things is the rules engine's view of the device layer: property
// reads and writes, action invocation, and the notification bus that reports
// property changes, newly added things and device events.
package things

import (
	"context"
	"errors"
)

var (
	ErrThingNotFound    = errors.New("thing not found")
	ErrPropertyNotFound = errors.New("property not found")
)

// Service is the property/action RPC surface of the device layer
type Service interface {
	// GetThingProperty returns ErrThingNotFound or ErrPropertyNotFound when
	// the device layer does not know the target yet.
	GetThingProperty(ctx context.Context, thingID, propertyID string) (any, error)
	// SetThingProperty returns the value the device layer accepted.
	SetThingProperty(ctx context.Context, thingID, propertyID string, value any) (any, error)
	PerformAction(ctx context.Context, thingID, action string, input map[string]any) error
}

// PropertyEvent reports a new value for one property of a thing
type PropertyEvent struct {
	Thing    string
	Property string
	Value    any
}

// DeviceEvent is a momentary event emitted by a thing
type DeviceEvent struct {
	Thing string
	Name  string
	Data  any
}
