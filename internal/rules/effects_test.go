package rules

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smarthub/internal/models"
	"smarthub/internal/notifier"
	"smarthub/internal/things/thingstest"
)

var (
	stateOn  = models.State{On: true}
	stateOff = models.State{On: false}
)

func setValues(calls []thingstest.SetCall) []any {
	out := make([]any, len(calls))
	for i, c := range calls {
		out[i] = c.Value
	}
	return out
}

func TestSetEffect_WritesOncePerActivation(t *testing.T) {
	env, svc := newTestEnv(t)
	svc.AddThing("fan", map[string]any{"on": false})

	effect, err := EffectFromDescription(models.EffectDescription{
		Type:     models.SetEffectType,
		Property: boolProp("fan", "on"),
		Value:    true,
	}, env)
	require.NoError(t, err)

	ctx := context.Background()
	effect.SetState(ctx, stateOn)
	effect.SetState(ctx, stateOn)
	assert.Len(t, svc.Sets(), 1)

	effect.SetState(ctx, stateOff)
	assert.Len(t, svc.Sets(), 1)
	assert.Equal(t, true, svc.Value("fan", "on"))

	effect.SetState(ctx, stateOn)
	assert.Len(t, svc.Sets(), 2)
}

func TestSetEffect_ValueMustMatchProperty(t *testing.T) {
	env, _ := newTestEnv(t)

	_, err := EffectFromDescription(models.EffectDescription{
		Type:     models.SetEffectType,
		Property: boolProp("fan", "on"),
		Value:    "yes",
	}, env)
	assert.ErrorIs(t, err, ErrInvalidDescription)

	_, err = EffectFromDescription(models.EffectDescription{
		Type:     models.SetEffectType,
		Property: &models.PropertyDescription{Type: models.TypeInteger, Thing: "dimmer", ID: "level"},
		Value:    42.0,
	}, env)
	assert.NoError(t, err)
}

func TestPulseEffect_BooleanForcedToggle(t *testing.T) {
	env, svc := newTestEnv(t)
	svc.AddThing("siren", map[string]any{"on": false})

	effect, err := EffectFromDescription(models.EffectDescription{
		Type:     models.PulseEffectType,
		Property: boolProp("siren", "on"),
		Value:    true,
	}, env)
	require.NoError(t, err)

	ctx := context.Background()
	effect.SetState(ctx, stateOn)
	effect.SetState(ctx, stateOff)

	assert.Equal(t, []any{true, true}, setValues(svc.Sets()))
	assert.Equal(t, true, svc.Value("siren", "on"))
}

func TestPulseEffect_RestoresPreviousValue(t *testing.T) {
	env, svc := newTestEnv(t)
	svc.AddThing("dimmer", map[string]any{"level": 20.0})

	effect, err := EffectFromDescription(models.EffectDescription{
		Type:     models.PulseEffectType,
		Property: &models.PropertyDescription{Type: models.TypeNumber, Thing: "dimmer", ID: "level"},
		Value:    100.0,
	}, env)
	require.NoError(t, err)

	ctx := context.Background()
	effect.SetState(ctx, stateOff)
	effect.SetState(ctx, stateOn)
	effect.SetState(ctx, stateOn)
	effect.SetState(ctx, stateOff)
	effect.SetState(ctx, stateOff)

	assert.Equal(t, []any{100.0, 100.0, 20.0}, setValues(svc.Sets()))
}

func TestPulseEffect_NoRestoreWithoutCapturedValue(t *testing.T) {
	env, svc := newTestEnv(t)
	svc.AddThing("dimmer", map[string]any{"level": 20.0})

	effect, err := EffectFromDescription(models.EffectDescription{
		Type:     models.PulseEffectType,
		Property: &models.PropertyDescription{Type: models.TypeNumber, Thing: "dimmer", ID: "level"},
		Value:    100.0,
	}, env)
	require.NoError(t, err)

	svc.FailNextGets(1)
	effect.SetState(context.Background(), stateOn)
	effect.SetState(context.Background(), stateOff)

	assert.Equal(t, []any{100.0}, setValues(svc.Sets()))
}

func TestActionEffect(t *testing.T) {
	env, svc := newTestEnv(t)
	svc.AddThing("camera", map[string]any{})

	effect, err := EffectFromDescription(models.EffectDescription{
		Type:       models.ActionEffectType,
		Thing:      "camera",
		Action:     "snapshot",
		Parameters: map[string]any{"resolution": "hd"},
	}, env)
	require.NoError(t, err)

	effect.SetState(context.Background(), stateOff)
	effect.SetState(context.Background(), stateOn)

	actions := svc.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, thingstest.ActionCall{Thing: "camera", Action: "snapshot", Input: map[string]any{"resolution": "hd"}}, actions[0])

	_, err = EffectFromDescription(models.EffectDescription{Type: models.ActionEffectType, Thing: "camera"}, env)
	assert.ErrorIs(t, err, ErrInvalidDescription)
}

func TestActionEffect_UnknownThingIsNotFatal(t *testing.T) {
	env, svc := newTestEnv(t)
	effect, err := EffectFromDescription(models.EffectDescription{
		Type:   models.ActionEffectType,
		Thing:  "garage",
		Action: "open",
	}, env)
	require.NoError(t, err)

	assert.NotPanics(t, func() { effect.SetState(context.Background(), stateOn) })
	assert.Empty(t, svc.Actions())
}

func TestNotificationEffect_UsesDefaultOutlet(t *testing.T) {
	env, _ := newTestEnv(t)
	outlet := &recordingOutlet{id: "phone"}
	env.Notifiers.Register("hub", outlet)

	effect, err := EffectFromDescription(models.EffectDescription{
		Type:    models.NotificationEffectType,
		Message: "Front door opened",
	}, env)
	require.NoError(t, err)

	effect.SetState(context.Background(), stateOn)
	assert.Empty(t, outlet.notifications())

	env.Notifiers.SetDefault("hub", "phone")
	effect.SetState(context.Background(), stateOff)
	effect.SetState(context.Background(), stateOn)

	sent := outlet.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, "Front door opened", sent[0].message)
	assert.Equal(t, notifier.Normal, sent[0].level)
}

func TestNotifierOutletEffect(t *testing.T) {
	env, _ := newTestEnv(t)
	outlet := &recordingOutlet{id: "phone"}
	env.Notifiers.Register("hub", outlet)

	effect, err := EffectFromDescription(models.EffectDescription{
		Type:     models.NotifierOutletEffectType,
		Notifier: "hub",
		Outlet:   "phone",
		Title:    "Leak",
		Message:  "Water detected in basement",
		Level:    2,
	}, env)
	require.NoError(t, err)

	effect.SetState(context.Background(), stateOn)
	assert.Equal(t, []notification{{title: "Leak", message: "Water detected in basement", level: notifier.High}}, outlet.notifications())

	missing, err := EffectFromDescription(models.EffectDescription{
		Type:     models.NotifierOutletEffectType,
		Notifier: "hub",
		Outlet:   "pager",
		Message:  "unused",
	}, env)
	require.NoError(t, err)
	assert.NotPanics(t, func() { missing.SetState(context.Background(), stateOn) })
}

func TestNotifierOutletEffect_InvalidDescriptions(t *testing.T) {
	env, _ := newTestEnv(t)

	_, err := EffectFromDescription(models.EffectDescription{Type: models.NotifierOutletEffectType, Notifier: "hub"}, env)
	assert.ErrorIs(t, err, ErrInvalidDescription)

	_, err = EffectFromDescription(models.EffectDescription{
		Type:     models.NotifierOutletEffectType,
		Notifier: "hub",
		Outlet:   "phone",
		Level:    7,
	}, env)
	assert.ErrorIs(t, err, ErrInvalidDescription)
}

func TestMultiEffect_ForwardsToEveryChild(t *testing.T) {
	env, svc := newTestEnv(t)
	svc.AddThing("fan", map[string]any{"on": false})
	svc.AddThing("camera", map[string]any{})

	effect, err := EffectFromDescription(models.EffectDescription{
		Type: models.MultiEffectType,
		Effects: []models.EffectDescription{
			{Type: models.ActionEffectType, Thing: "garage", Action: "open"},
			{Type: models.SetEffectType, Property: boolProp("fan", "on"), Value: true},
			{Type: models.ActionEffectType, Thing: "camera", Action: "snapshot"},
		},
	}, env)
	require.NoError(t, err)

	effect.SetState(context.Background(), stateOn)

	assert.Eventually(t, func() bool {
		return len(svc.Sets()) == 1 && len(svc.Actions()) == 1
	}, time.Second, 5*time.Millisecond)
}

// gatedEffect records states and blocks in SetState until released
type gatedEffect struct {
	release chan struct{}

	mu     sync.Mutex
	states []bool
}

func (g *gatedEffect) SetState(_ context.Context, state models.State) {
	<-g.release
	g.mu.Lock()
	g.states = append(g.states, state.On)
	g.mu.Unlock()
}

func (g *gatedEffect) Description() models.EffectDescription {
	return models.EffectDescription{Type: "gated"}
}

func (g *gatedEffect) received() []bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]bool(nil), g.states...)
}

func TestMultiEffect_SlowChildDoesNotBlockSiblings(t *testing.T) {
	env, svc := newTestEnv(t)
	svc.AddThing("camera", map[string]any{})
	camera, err := EffectFromDescription(models.EffectDescription{
		Type: models.ActionEffectType, Thing: "camera", Action: "snapshot",
	}, env)
	require.NoError(t, err)

	slow := &gatedEffect{release: make(chan struct{})}
	effect := &MultiEffect{children: []*effectQueue{{effect: slow}, {effect: camera}}}

	returned := make(chan struct{})
	go func() {
		effect.SetState(context.Background(), stateOn)
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("SetState waited for a blocked child")
	}

	assert.Eventually(t, func() bool { return len(svc.Actions()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, slow.received())

	close(slow.release)
	assert.Eventually(t, func() bool { return len(slow.received()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestMultiEffect_ChildSeesStatesInOrder(t *testing.T) {
	child := &gatedEffect{release: make(chan struct{})}
	effect := &MultiEffect{children: []*effectQueue{{effect: child}}}

	effect.SetState(context.Background(), stateOn)
	effect.SetState(context.Background(), stateOff)
	effect.SetState(context.Background(), stateOn)
	close(child.release)

	assert.Eventually(t, func() bool { return len(child.received()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []bool{true, false, true}, child.received())
}

func TestEffectFromDescription_UnknownType(t *testing.T) {
	env, _ := newTestEnv(t)
	_, err := EffectFromDescription(models.EffectDescription{Type: "EmailEffect"}, env)
	assert.ErrorIs(t, err, ErrInvalidDescription)
	assert.ErrorContains(t, err, `"EmailEffect"`)

	_, err = EffectFromDescription(models.EffectDescription{
		Type:    models.MultiEffectType,
		Effects: []models.EffectDescription{{Type: "EmailEffect"}},
	}, env)
	assert.ErrorIs(t, err, ErrInvalidDescription)
}
