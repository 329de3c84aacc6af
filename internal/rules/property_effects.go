package rules

import (
	"context"
	"sync"

	"smarthub/internal/metrics"
	"smarthub/internal/models"
)

// SetEffect writes Value once each time the state turns on. Turning off
// does not revert the property.
type SetEffect struct {
	label    string
	property *Property
	value    any

	mu sync.Mutex
	on bool
}

func newSetEffect(desc models.EffectDescription, env *Env) (Effect, error) {
	prop, err := effectProperty(desc, env)
	if err != nil {
		return nil, err
	}
	return &SetEffect{label: desc.Label, property: prop, value: desc.Value}, nil
}

func (e *SetEffect) SetState(ctx context.Context, state models.State) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !state.On {
		e.on = false
		return
	}
	if e.on {
		return
	}
	e.on = true
	if _, ok := e.property.Set(ctx, e.value); ok {
		metrics.EffectsApplied.WithLabelValues(models.SetEffectType).Inc()
	}
}

func (e *SetEffect) Description() models.EffectDescription {
	return models.EffectDescription{
		Type:     models.SetEffectType,
		Label:    e.label,
		Property: e.property.Description(),
		Value:    e.value,
	}
}

// PulseEffect writes Value while the state is on and restores the previous
// value when it turns off. For boolean properties the restored value is the
// negation of the value read at activation.
type PulseEffect struct {
	label    string
	property *Property
	value    any

	mu          sync.Mutex
	on          bool
	oldValue    any
	hasOldValue bool
}

func newPulseEffect(desc models.EffectDescription, env *Env) (Effect, error) {
	prop, err := effectProperty(desc, env)
	if err != nil {
		return nil, err
	}
	return &PulseEffect{label: desc.Label, property: prop, value: desc.Value}, nil
}

func (e *PulseEffect) SetState(ctx context.Context, state models.State) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if state.On {
		if !e.on {
			e.hasOldValue = false
			if current, ok := e.property.Get(ctx); ok {
				e.oldValue = current
				if b, isBool := current.(bool); isBool {
					e.oldValue = !b
				}
				e.hasOldValue = true
			}
			e.on = true
		}
		e.write(ctx, e.value)
		return
	}

	if !e.on {
		return
	}
	e.on = false
	if e.hasOldValue {
		e.write(ctx, e.oldValue)
	}
}

func (e *PulseEffect) write(ctx context.Context, value any) {
	if _, ok := e.property.Set(ctx, value); ok {
		metrics.EffectsApplied.WithLabelValues(models.PulseEffectType).Inc()
	}
}

func (e *PulseEffect) Description() models.EffectDescription {
	return models.EffectDescription{
		Type:     models.PulseEffectType,
		Label:    e.label,
		Property: e.property.Description(),
		Value:    e.value,
	}
}
