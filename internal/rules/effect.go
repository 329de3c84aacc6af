package rules

import (
	"context"
	"fmt"

	"smarthub/internal/models"
)

// Effect reacts to trigger states. SetState never fails: remote errors are
// handled inside the effect.
type Effect interface {
	SetState(ctx context.Context, state models.State)
	Description() models.EffectDescription
}

type effectConstructor func(desc models.EffectDescription, env *Env) (Effect, error)

var effectConstructors map[string]effectConstructor

// EffectTypes lists every effect variant a description may name
var EffectTypes = []string{
	models.SetEffectType,
	models.PulseEffectType,
	models.ActionEffectType,
	models.NotificationEffectType,
	models.NotifierOutletEffectType,
	models.MultiEffectType,
}

func init() {
	effectConstructors = map[string]effectConstructor{
		models.SetEffectType:            newSetEffect,
		models.PulseEffectType:          newPulseEffect,
		models.ActionEffectType:         newActionEffect,
		models.NotificationEffectType:   newNotificationEffect,
		models.NotifierOutletEffectType: newNotifierOutletEffect,
		models.MultiEffectType:          newMultiEffect,
	}
	for _, typ := range EffectTypes {
		if _, ok := effectConstructors[typ]; !ok {
			panic(fmt.Sprintf("rules: effect type %q has no constructor", typ))
		}
	}
}

// EffectFromDescription builds the concrete effect named by desc.Type
func EffectFromDescription(desc models.EffectDescription, env *Env) (Effect, error) {
	ctor, ok := effectConstructors[desc.Type]
	if !ok {
		return nil, invalidf("unknown effect type %q", desc.Type)
	}
	return ctor(desc, env)
}

// effectProperty builds the target property of a Set or Pulse effect and
// checks that value can be written to it.
func effectProperty(desc models.EffectDescription, env *Env) (*Property, error) {
	prop, err := NewProperty(desc.Property, env)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", desc.Type, err)
	}
	if !valueMatchesType(desc.Value, prop.Type()) {
		return nil, invalidf("%s value %v (%T) does not match property type %q", desc.Type, desc.Value, desc.Value, prop.Type())
	}
	return prop, nil
}
