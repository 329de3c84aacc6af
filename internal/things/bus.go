package things

import (
	"sync"

	"smarthub/internal/events"
)

// Bus fans device notifications out to rule components. One Bus is created
// when the hub starts and closed at shutdown; it is passed explicitly to
// every component that listens.
type Bus struct {
	propertyChanged events.Emitter[PropertyEvent]
	thingAdded      events.Emitter[string]

	mu           sync.Mutex
	deviceEvents map[string]*events.Emitter[DeviceEvent]
}

func NewBus() *Bus {
	return &Bus{deviceEvents: make(map[string]*events.Emitter[DeviceEvent])}
}

// OnPropertyChanged registers fn for every property change of every thing
func (b *Bus) OnPropertyChanged(fn func(PropertyEvent)) func() {
	return b.propertyChanged.On(fn)
}

// OnThingAdded registers fn for things appearing on the device layer
func (b *Bus) OnThingAdded(fn func(thingID string)) func() {
	return b.thingAdded.On(fn)
}

// OnEvent adds an event subscription for one thing. The returned function
// removes it.
func (b *Bus) OnEvent(thingID string, fn func(DeviceEvent)) func() {
	b.mu.Lock()
	em, ok := b.deviceEvents[thingID]
	if !ok {
		em = &events.Emitter[DeviceEvent]{}
		b.deviceEvents[thingID] = em
	}
	b.mu.Unlock()
	return em.On(fn)
}

func (b *Bus) PublishPropertyChanged(ev PropertyEvent) {
	b.propertyChanged.Emit(ev)
}

func (b *Bus) PublishThingAdded(thingID string) {
	b.thingAdded.Emit(thingID)
}

func (b *Bus) PublishEvent(ev DeviceEvent) {
	b.mu.Lock()
	em := b.deviceEvents[ev.Thing]
	b.mu.Unlock()
	if em != nil {
		em.Emit(ev)
	}
}

// Subscribers reports how many listeners are attached, for diagnostics
func (b *Bus) Subscribers() int {
	n := b.propertyChanged.Len() + b.thingAdded.Len()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, em := range b.deviceEvents {
		n += em.Len()
	}
	return n
}

// Close detaches every listener. Called once at shutdown.
func (b *Bus) Close() {
	b.propertyChanged.Clear()
	b.thingAdded.Clear()
	b.mu.Lock()
	b.deviceEvents = make(map[string]*events.Emitter[DeviceEvent])
	b.mu.Unlock()
}
