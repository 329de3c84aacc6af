package rules

import (
	"context"

	"go.uber.org/zap"

	"smarthub/internal/metrics"
	"smarthub/internal/models"
	"smarthub/internal/notifier"
)

const notificationTitle = "Smart home"

// NotificationEffect sends Message to the registry's default outlet
type NotificationEffect struct {
	label     string
	message   string
	notifiers *notifier.Registry
	logger    *zap.Logger
}

func newNotificationEffect(desc models.EffectDescription, env *Env) (Effect, error) {
	if desc.Message == "" {
		return nil, invalidf("NotificationEffect requires a message")
	}
	if env.Notifiers == nil {
		return nil, invalidf("NotificationEffect requires a notifier registry")
	}
	return &NotificationEffect{
		label:     desc.Label,
		message:   desc.Message,
		notifiers: env.Notifiers,
		logger:    env.logger(),
	}, nil
}

func (e *NotificationEffect) SetState(ctx context.Context, state models.State) {
	if !state.On {
		return
	}
	outlet, err := e.notifiers.Default()
	if err != nil {
		e.logger.Warn("No default notification outlet", zap.Error(err))
		return
	}
	notify(ctx, e.logger, outlet, models.NotificationEffectType, notificationTitle, e.message, notifier.Normal)
}

func (e *NotificationEffect) Description() models.EffectDescription {
	return models.EffectDescription{
		Type:    models.NotificationEffectType,
		Label:   e.label,
		Message: e.message,
	}
}

// NotifierOutletEffect sends a notification to a named outlet
type NotifierOutletEffect struct {
	label     string
	notifier  string
	outlet    string
	title     string
	message   string
	level     notifier.Level
	notifiers *notifier.Registry
	logger    *zap.Logger
}

func newNotifierOutletEffect(desc models.EffectDescription, env *Env) (Effect, error) {
	if desc.Notifier == "" || desc.Outlet == "" {
		return nil, invalidf("NotifierOutletEffect requires notifier and outlet")
	}
	level := notifier.Level(desc.Level)
	if level < notifier.Low || level > notifier.High {
		return nil, invalidf("NotifierOutletEffect level %d out of range", desc.Level)
	}
	if env.Notifiers == nil {
		return nil, invalidf("NotifierOutletEffect requires a notifier registry")
	}
	return &NotifierOutletEffect{
		label:     desc.Label,
		notifier:  desc.Notifier,
		outlet:    desc.Outlet,
		title:     desc.Title,
		message:   desc.Message,
		level:     level,
		notifiers: env.Notifiers,
		logger:    env.logger().With(zap.String("notifier", desc.Notifier), zap.String("outlet", desc.Outlet)),
	}, nil
}

func (e *NotifierOutletEffect) SetState(ctx context.Context, state models.State) {
	if !state.On {
		return
	}
	outlet, err := e.notifiers.Outlet(e.notifier, e.outlet)
	if err != nil {
		e.logger.Warn("Notification outlet unavailable", zap.Error(err))
		return
	}
	notify(ctx, e.logger, outlet, models.NotifierOutletEffectType, e.title, e.message, e.level)
}

func (e *NotifierOutletEffect) Description() models.EffectDescription {
	return models.EffectDescription{
		Type:     models.NotifierOutletEffectType,
		Label:    e.label,
		Notifier: e.notifier,
		Outlet:   e.outlet,
		Title:    e.title,
		Message:  e.message,
		Level:    int(e.level),
	}
}

func notify(ctx context.Context, logger *zap.Logger, outlet notifier.Outlet, effectType, title, message string, level notifier.Level) {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()
	if err := outlet.Notify(ctx, title, message, level); err != nil {
		logger.Error("Notification failed", zap.String("outlet", outlet.ID()), zap.Error(err))
		return
	}
	metrics.EffectsApplied.WithLabelValues(effectType).Inc()
}
