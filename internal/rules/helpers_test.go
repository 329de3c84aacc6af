package rules

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"smarthub/internal/models"
	"smarthub/internal/notifier"
	"smarthub/internal/scheduler"
	"smarthub/internal/things"
	"smarthub/internal/things/thingstest"
)

func newTestEnv(t *testing.T) (*Env, *thingstest.Service) {
	t.Helper()
	bus := things.NewBus()
	t.Cleanup(bus.Close)
	svc := thingstest.New(bus)
	env := &Env{
		Things:    svc,
		Bus:       bus,
		Notifiers: notifier.NewRegistry(),
		Scheduler: scheduler.NewScheduler(time.UTC, zap.NewNop()),
		Logger:    zap.NewNop(),
	}
	return env, svc
}

func boolProp(thing, id string) *models.PropertyDescription {
	return &models.PropertyDescription{Type: models.TypeBoolean, Thing: thing, ID: id}
}

func ptr[T any](v T) *T { return &v }

type stateRecorder struct {
	mu     sync.Mutex
	states []models.State
}

func recordStates(trigger Trigger) *stateRecorder {
	rec := &stateRecorder{}
	trigger.OnStateChanged(func(s models.State) {
		rec.mu.Lock()
		rec.states = append(rec.states, s)
		rec.mu.Unlock()
	})
	return rec
}

func (r *stateRecorder) ons() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.states))
	for i, s := range r.states {
		out[i] = s.On
	}
	return out
}

func (r *stateRecorder) all() []models.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.State(nil), r.states...)
}

type notification struct {
	title   string
	message string
	level   notifier.Level
}

type recordingOutlet struct {
	id string

	mu   sync.Mutex
	sent []notification
}

func (o *recordingOutlet) ID() string { return o.id }

func (o *recordingOutlet) Notify(_ context.Context, title, message string, level notifier.Level) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, notification{title: title, message: message, level: level})
	return nil
}

func (o *recordingOutlet) notifications() []notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]notification(nil), o.sent...)
}
