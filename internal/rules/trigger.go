package rules

import (
	"context"
	"fmt"
	"sync"

	"smarthub/internal/events"
	"smarthub/internal/models"
)

// Trigger emits a State each time it evaluates whether it is active
type Trigger interface {
	Start(ctx context.Context) error
	Stop()
	OnStateChanged(fn func(models.State)) func()
	Description() models.TriggerDescription
}

type triggerConstructor func(desc models.TriggerDescription, env *Env) (Trigger, error)

var triggerConstructors map[string]triggerConstructor

// TriggerTypes lists every trigger variant a description may name
var TriggerTypes = []string{
	models.BooleanTriggerType,
	models.LevelTriggerType,
	models.EqualityTriggerType,
	models.EventTriggerType,
	models.MultiTriggerType,
	models.TimeTriggerType,
}

func init() {
	triggerConstructors = map[string]triggerConstructor{
		models.BooleanTriggerType:  newBooleanTrigger,
		models.LevelTriggerType:    newLevelTrigger,
		models.EqualityTriggerType: newEqualityTrigger,
		models.EventTriggerType:    newEventTrigger,
		models.MultiTriggerType:    newMultiTrigger,
		models.TimeTriggerType:     newTimeTrigger,
	}
	for _, typ := range TriggerTypes {
		if _, ok := triggerConstructors[typ]; !ok {
			panic(fmt.Sprintf("rules: trigger type %q has no constructor", typ))
		}
	}
}

// TriggerFromDescription builds the concrete trigger named by desc.Type
func TriggerFromDescription(desc models.TriggerDescription, env *Env) (Trigger, error) {
	ctor, ok := triggerConstructors[desc.Type]
	if !ok {
		return nil, invalidf("unknown trigger type %q", desc.Type)
	}
	return ctor(desc, env)
}

type baseTrigger struct {
	label        string
	stateChanged events.Emitter[models.State]
}

func (t *baseTrigger) OnStateChanged(fn func(models.State)) func() {
	return t.stateChanged.On(fn)
}

func (t *baseTrigger) emit(s models.State) {
	t.stateChanged.Emit(s)
}

// propertyTrigger evaluates every value of one property
type propertyTrigger struct {
	baseTrigger
	property *Property
	evaluate func(value any) bool

	mu       sync.Mutex
	cancelFn func()
}

func triggerProperty(desc models.TriggerDescription, env *Env) (*Property, error) {
	prop, err := NewProperty(desc.Property, env)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", desc.Type, err)
	}
	return prop, nil
}

func (t *propertyTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.cancelFn == nil {
		t.cancelFn = t.property.OnValueChanged(t.onValueChanged)
	}
	t.mu.Unlock()
	t.property.Start(ctx)
	return nil
}

func (t *propertyTrigger) Stop() {
	t.mu.Lock()
	if t.cancelFn != nil {
		t.cancelFn()
		t.cancelFn = nil
	}
	t.mu.Unlock()
	t.property.Stop()
}

func (t *propertyTrigger) onValueChanged(value any) {
	t.emit(models.State{On: t.evaluate(value), Value: value})
}

func (t *propertyTrigger) describe(typ string) models.TriggerDescription {
	return models.TriggerDescription{
		Type:     typ,
		Label:    t.label,
		Property: t.property.Description(),
	}
}
