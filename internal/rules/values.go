package rules

import (
	"encoding/json"
	"reflect"

	"smarthub/internal/models"
)

// toFloat converts any numeric value, including JSON numbers, to float64
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func isNumericType(propType string) bool {
	return propType == models.TypeNumber || propType == models.TypeInteger
}

// valueMatchesType reports whether v can be written to a property of
// propType. number and integer accept each other's values.
func valueMatchesType(v any, propType string) bool {
	switch propType {
	case models.TypeBoolean:
		_, ok := v.(bool)
		return ok
	case models.TypeNumber, models.TypeInteger:
		_, ok := toFloat(v)
		return ok
	case models.TypeString:
		_, ok := v.(string)
		return ok
	}
	return false
}

// valuesEqual compares numbers by value regardless of their Go type
func valuesEqual(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}
