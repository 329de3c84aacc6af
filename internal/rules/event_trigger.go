package rules

import (
	"context"
	"sync"

	"smarthub/internal/models"
	"smarthub/internal/things"
)

// EventTrigger pulses on and immediately off for every matching device event
type EventTrigger struct {
	baseTrigger
	thing string
	event string
	bus   *things.Bus

	mu       sync.Mutex
	cancelFn func()
}

func newEventTrigger(desc models.TriggerDescription, env *Env) (Trigger, error) {
	if desc.Thing == "" || desc.Event == "" {
		return nil, invalidf("EventTrigger requires thing and event")
	}
	return &EventTrigger{
		baseTrigger: baseTrigger{label: desc.Label},
		thing:       desc.Thing,
		event:       desc.Event,
		bus:         env.Bus,
	}, nil
}

func (t *EventTrigger) Start(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelFn == nil {
		t.cancelFn = t.bus.OnEvent(t.thing, t.onEvent)
	}
	return nil
}

func (t *EventTrigger) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelFn != nil {
		t.cancelFn()
		t.cancelFn = nil
	}
}

func (t *EventTrigger) onEvent(ev things.DeviceEvent) {
	if ev.Name != t.event {
		return
	}
	t.mu.Lock()
	active := t.cancelFn != nil
	t.mu.Unlock()
	if !active {
		return
	}
	t.emit(models.State{On: true, Value: ev.Data})
	t.emit(models.State{On: false, Value: ev.Data})
}

func (t *EventTrigger) Description() models.TriggerDescription {
	return models.TriggerDescription{
		Type:  models.EventTriggerType,
		Label: t.label,
		Thing: t.thing,
		Event: t.event,
	}
}
