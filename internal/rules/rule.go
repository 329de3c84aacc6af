package rules

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"smarthub/internal/metrics"
	"smarthub/internal/models"
)

// Rule forwards the states of its trigger to its effect while enabled
type Rule struct {
	id      int64
	name    string
	enabled bool
	trigger Trigger
	effect  Effect
	base    *zap.Logger
	logger  *zap.Logger

	mu       sync.Mutex
	cancelFn func()
}

func NewRule(name string, enabled bool, trigger Trigger, effect Effect, logger *zap.Logger) *Rule {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rule{
		name:    name,
		enabled: enabled,
		trigger: trigger,
		effect:  effect,
		base:    logger,
		logger:  logger,
	}
}

// FromDescription builds the trigger and effect graphs of desc
func FromDescription(desc models.RuleDescription, env *Env) (*Rule, error) {
	trigger, err := TriggerFromDescription(desc.Trigger, env)
	if err != nil {
		return nil, fmt.Errorf("trigger: %w", err)
	}
	effect, err := EffectFromDescription(desc.Effect, env)
	if err != nil {
		return nil, fmt.Errorf("effect: %w", err)
	}
	r := NewRule(desc.Name, desc.Enabled, trigger, effect, env.logger().Named("rules"))
	r.SetID(desc.ID)
	return r, nil
}

func (r *Rule) ID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

// SetID records the id assigned by the database
func (r *Rule) SetID(id int64) {
	r.mu.Lock()
	r.id = id
	r.logger = r.base.With(zap.Int64("rule", id))
	r.mu.Unlock()
}

func (r *Rule) Name() string { return r.name }

func (r *Rule) Enabled() bool { return r.enabled }

// Start subscribes to the trigger, then starts it
func (r *Rule) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cancelFn == nil {
		r.cancelFn = r.trigger.OnStateChanged(r.onStateChanged)
	}
	r.mu.Unlock()

	if err := r.trigger.Start(ctx); err != nil {
		r.Stop()
		return fmt.Errorf("start rule %d: %w", r.ID(), err)
	}
	return nil
}

// Stop removes the listener, then stops the trigger. It is idempotent.
func (r *Rule) Stop() {
	r.mu.Lock()
	if r.cancelFn != nil {
		r.cancelFn()
		r.cancelFn = nil
	}
	r.mu.Unlock()
	r.trigger.Stop()
}

func (r *Rule) onStateChanged(state models.State) {
	metrics.StateDeliveries.WithLabelValues(strconv.FormatBool(r.enabled)).Inc()
	if !r.enabled {
		return
	}
	r.logger.Debug("Trigger state changed", zap.Bool("on", state.On))
	r.effect.SetState(context.Background(), state)
}

func (r *Rule) Description() models.RuleDescription {
	return models.RuleDescription{
		ID:      r.ID(),
		Name:    r.name,
		Enabled: r.enabled,
		Trigger: r.trigger.Description(),
		Effect:  r.effect.Description(),
	}
}
