package rules

import (
	"context"

	"go.uber.org/zap"

	"smarthub/internal/metrics"
	"smarthub/internal/models"
	"smarthub/internal/things"
)

// ActionEffect invokes an action of a thing each time the state is on
type ActionEffect struct {
	label      string
	thing      string
	action     string
	parameters map[string]any
	things     things.Service
	logger     *zap.Logger
}

func newActionEffect(desc models.EffectDescription, env *Env) (Effect, error) {
	if desc.Thing == "" || desc.Action == "" {
		return nil, invalidf("ActionEffect requires thing and action")
	}
	return &ActionEffect{
		label:      desc.Label,
		thing:      desc.Thing,
		action:     desc.Action,
		parameters: desc.Parameters,
		things:     env.Things,
		logger:     env.logger().With(zap.String("thing", desc.Thing), zap.String("action", desc.Action)),
	}, nil
}

func (e *ActionEffect) SetState(ctx context.Context, state models.State) {
	if !state.On {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()
	if err := e.things.PerformAction(ctx, e.thing, e.action, e.parameters); err != nil {
		e.logger.Error("Action failed", zap.Error(err))
		return
	}
	metrics.EffectsApplied.WithLabelValues(models.ActionEffectType).Inc()
}

func (e *ActionEffect) Description() models.EffectDescription {
	return models.EffectDescription{
		Type:       models.ActionEffectType,
		Label:      e.label,
		Thing:      e.thing,
		Action:     e.action,
		Parameters: e.parameters,
	}
}
