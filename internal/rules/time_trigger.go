package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"smarthub/internal/models"
	"smarthub/internal/scheduler"
)

// timeTriggerActive is how long a TimeTrigger stays on after firing
const timeTriggerActive = time.Minute

// TimeTrigger turns on every day at a time of day and off a minute later.
// Times are local unless the description predates localization, in which
// case they are UTC.
type TimeTrigger struct {
	baseTrigger
	time      string
	localized bool
	spec      string
	scheduler *scheduler.Scheduler
	logger    *zap.Logger

	mu       sync.Mutex
	entryID  cron.EntryID
	running  bool
	offTimer *time.Timer
}

func newTimeTrigger(desc models.TriggerDescription, env *Env) (Trigger, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(desc.Time, "%d:%d", &hour, &minute); err != nil {
		return nil, invalidf("TimeTrigger time %q is not HH:MM", desc.Time)
	}
	spec, err := scheduler.DailySpec(hour, minute)
	if err != nil {
		return nil, invalidf("TimeTrigger: %v", err)
	}
	localized := desc.Localized != nil && *desc.Localized
	if !localized {
		spec = "CRON_TZ=UTC " + spec
	}
	if env.Scheduler == nil {
		return nil, invalidf("TimeTrigger requires a scheduler")
	}
	return &TimeTrigger{
		baseTrigger: baseTrigger{label: desc.Label},
		time:        desc.Time,
		localized:   localized,
		spec:        spec,
		scheduler:   env.Scheduler,
		logger:      env.logger().With(zap.String("time", desc.Time)),
	}, nil
}

func (t *TimeTrigger) Start(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return nil
	}
	entryID, err := t.scheduler.AddJob(t.spec, "TimeTrigger "+t.time, t.fire)
	if err != nil {
		t.logger.Error("Failed to schedule time trigger", zap.Error(err))
		return nil
	}
	t.entryID = entryID
	t.running = true
	if next := t.scheduler.Next(entryID); !next.IsZero() {
		t.logger.Info("Time trigger scheduled", zap.Time("next", next))
	}
	return nil
}

func (t *TimeTrigger) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.scheduler.RemoveJob(t.entryID)
	if t.offTimer != nil {
		t.offTimer.Stop()
		t.offTimer = nil
	}
	t.running = false
}

func (t *TimeTrigger) fire() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	if t.offTimer != nil {
		t.offTimer.Stop()
	}
	t.offTimer = time.AfterFunc(timeTriggerActive, t.turnOff)
	t.mu.Unlock()

	t.emit(models.State{On: true, Value: time.Now()})
}

func (t *TimeTrigger) turnOff() {
	t.mu.Lock()
	active := t.running
	t.offTimer = nil
	t.mu.Unlock()
	if active {
		t.emit(models.State{On: false, Value: time.Now()})
	}
}

func (t *TimeTrigger) Description() models.TriggerDescription {
	localized := t.localized
	return models.TriggerDescription{
		Type:      models.TimeTriggerType,
		Label:     t.label,
		Time:      t.time,
		Localized: &localized,
	}
}
