package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProperty_Validation(t *testing.T) {
	env, _ := newTestEnv(t)

	_, err := NewProperty(nil, env)
	assert.ErrorIs(t, err, ErrInvalidDescription)

	_, err = NewProperty(boolProp("", "on"), env)
	assert.ErrorIs(t, err, ErrInvalidDescription)

	desc := boolProp("lamp", "on")
	desc.Type = "color"
	_, err = NewProperty(desc, env)
	assert.ErrorIs(t, err, ErrInvalidDescription)
}

func TestProperty_GetUnknownThing(t *testing.T) {
	env, svc := newTestEnv(t)
	prop, err := NewProperty(boolProp("lamp", "on"), env)
	require.NoError(t, err)

	_, ok := prop.Get(context.Background())
	assert.False(t, ok)

	svc.AddThing("lamp", map[string]any{"on": true})
	v, ok := prop.Get(context.Background())
	assert.True(t, ok)
	assert.Equal(t, true, v)
}

func TestProperty_SetRetriesOnce(t *testing.T) {
	env, svc := newTestEnv(t)
	svc.AddThing("fan", map[string]any{"on": false})
	prop, err := NewProperty(boolProp("fan", "on"), env)
	require.NoError(t, err)

	svc.FailNextSets(1)
	v, ok := prop.Set(context.Background(), true)
	assert.True(t, ok)
	assert.Equal(t, true, v)
	assert.Len(t, svc.Sets(), 1)

	svc.FailNextSets(2)
	_, ok = prop.Set(context.Background(), false)
	assert.False(t, ok)
	assert.Len(t, svc.Sets(), 1)
	assert.Equal(t, true, svc.Value("fan", "on"))
}

func TestProperty_StartEmitsInitialValue(t *testing.T) {
	env, svc := newTestEnv(t)
	svc.AddThing("lamp", map[string]any{"on": true})
	prop, err := NewProperty(boolProp("lamp", "on"), env)
	require.NoError(t, err)

	var values []any
	prop.OnValueChanged(func(v any) { values = append(values, v) })
	prop.Start(context.Background())
	defer prop.Stop()

	svc.Report("lamp", "on", false)
	svc.Report("lamp", "brightness", 40.0)
	svc.Report("fan", "on", true)

	assert.Equal(t, []any{true, false}, values)
}

func TestProperty_WaitsForThingAdded(t *testing.T) {
	env, svc := newTestEnv(t)
	prop, err := NewProperty(boolProp("lamp", "on"), env)
	require.NoError(t, err)

	var values []any
	prop.OnValueChanged(func(v any) { values = append(values, v) })
	prop.Start(context.Background())
	defer prop.Stop()

	assert.Empty(t, values)
	assert.Equal(t, 2, env.Bus.Subscribers())

	svc.Report("lamp", "on", true)
	assert.Equal(t, []any{true}, values)
	assert.Equal(t, 1, env.Bus.Subscribers())

	svc.Report("lamp", "on", false)
	assert.Equal(t, []any{true, false}, values)
}

func TestProperty_InitialValueEmittedOnce(t *testing.T) {
	env, svc := newTestEnv(t)
	prop, err := NewProperty(boolProp("lamp", "on"), env)
	require.NoError(t, err)

	var values []any
	prop.OnValueChanged(func(v any) { values = append(values, v) })
	prop.Start(context.Background())
	defer prop.Stop()

	svc.AddThing("lamp", map[string]any{"on": true})
	env.Bus.PublishThingAdded("lamp")
	env.Bus.PublishThingAdded("lamp")

	assert.Equal(t, []any{true}, values)
}

func TestProperty_KnownThingDropsThingAddedListener(t *testing.T) {
	env, svc := newTestEnv(t)
	svc.AddThing("lamp", map[string]any{"on": false})
	prop, err := NewProperty(boolProp("lamp", "on"), env)
	require.NoError(t, err)

	prop.Start(context.Background())
	defer prop.Stop()
	assert.Equal(t, 1, env.Bus.Subscribers())
}

func TestProperty_StopIsIdempotent(t *testing.T) {
	env, svc := newTestEnv(t)
	prop, err := NewProperty(boolProp("lamp", "on"), env)
	require.NoError(t, err)

	var values []any
	prop.OnValueChanged(func(v any) { values = append(values, v) })
	prop.Start(context.Background())

	prop.Stop()
	prop.Stop()
	assert.Equal(t, 0, env.Bus.Subscribers())

	svc.Report("lamp", "on", true)
	assert.Empty(t, values)
}

func TestProperty_StopLeavesOtherListeners(t *testing.T) {
	env, svc := newTestEnv(t)
	svc.AddThing("lamp", map[string]any{})
	a, err := NewProperty(boolProp("lamp", "on"), env)
	require.NoError(t, err)
	b, err := NewProperty(boolProp("lamp", "on"), env)
	require.NoError(t, err)

	var fromB []any
	b.OnValueChanged(func(v any) { fromB = append(fromB, v) })
	a.Start(context.Background())
	b.Start(context.Background())
	defer b.Stop()

	a.Stop()
	svc.Report("lamp", "on", true)
	assert.Equal(t, []any{true}, fromB)
}
