package rules

import (
	"smarthub/internal/models"
)

// BooleanTrigger is on while the property equals OnValue
type BooleanTrigger struct {
	propertyTrigger
	onValue bool
}

func newBooleanTrigger(desc models.TriggerDescription, env *Env) (Trigger, error) {
	prop, err := triggerProperty(desc, env)
	if err != nil {
		return nil, err
	}
	if desc.OnValue == nil {
		return nil, invalidf("BooleanTrigger requires onValue")
	}
	t := &BooleanTrigger{
		propertyTrigger: propertyTrigger{baseTrigger: baseTrigger{label: desc.Label}, property: prop},
		onValue:         *desc.OnValue,
	}
	t.evaluate = func(value any) bool {
		b, ok := value.(bool)
		return ok && b == t.onValue
	}
	return t, nil
}

func (t *BooleanTrigger) Description() models.TriggerDescription {
	d := t.describe(models.BooleanTriggerType)
	onValue := t.onValue
	d.OnValue = &onValue
	return d
}

// LevelTrigger compares a numeric property against a threshold
type LevelTrigger struct {
	propertyTrigger
	value     any
	level     float64
	levelType string
}

func newLevelTrigger(desc models.TriggerDescription, env *Env) (Trigger, error) {
	prop, err := triggerProperty(desc, env)
	if err != nil {
		return nil, err
	}
	propType := prop.Type()
	if !isNumericType(propType) {
		return nil, invalidf("LevelTrigger requires a numeric property, got %q", propType)
	}
	level, ok := toFloat(desc.Value)
	if !ok {
		return nil, invalidf("LevelTrigger value must be a number, got %T", desc.Value)
	}
	switch desc.LevelType {
	case models.LevelLess, models.LevelGreater:
	case models.LevelEqual:
		if propType != models.TypeInteger {
			return nil, invalidf("LevelTrigger EQUAL requires an integer property, got %q", propType)
		}
	default:
		return nil, invalidf("unknown levelType %q", desc.LevelType)
	}

	t := &LevelTrigger{
		propertyTrigger: propertyTrigger{baseTrigger: baseTrigger{label: desc.Label}, property: prop},
		value:           desc.Value,
		level:           level,
		levelType:       desc.LevelType,
	}
	t.evaluate = func(value any) bool {
		v, ok := toFloat(value)
		if !ok {
			return false
		}
		switch t.levelType {
		case models.LevelLess:
			return v < t.level
		case models.LevelEqual:
			return v == t.level
		default:
			return v > t.level
		}
	}
	return t, nil
}

func (t *LevelTrigger) Description() models.TriggerDescription {
	d := t.describe(models.LevelTriggerType)
	d.Value = t.value
	d.LevelType = t.levelType
	return d
}

// EqualityTrigger is on while the property equals Value
type EqualityTrigger struct {
	propertyTrigger
	value any
}

func newEqualityTrigger(desc models.TriggerDescription, env *Env) (Trigger, error) {
	prop, err := triggerProperty(desc, env)
	if err != nil {
		return nil, err
	}
	if !valueMatchesType(desc.Value, prop.Type()) {
		return nil, invalidf("EqualityTrigger value %v does not match property type %q", desc.Value, prop.Type())
	}
	t := &EqualityTrigger{
		propertyTrigger: propertyTrigger{baseTrigger: baseTrigger{label: desc.Label}, property: prop},
		value:           desc.Value,
	}
	t.evaluate = func(value any) bool {
		return valuesEqual(value, t.value)
	}
	return t, nil
}

func (t *EqualityTrigger) Description() models.TriggerDescription {
	d := t.describe(models.EqualityTriggerType)
	d.Value = t.value
	return d
}
