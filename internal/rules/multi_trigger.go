package rules

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"smarthub/internal/models"
)

// MultiTrigger combines child triggers with AND or OR. It emits only when
// the combined value changes.
type MultiTrigger struct {
	baseTrigger
	op       string
	triggers []Trigger

	mu      sync.Mutex
	states  []bool
	on      bool
	cancels []func()
}

func newMultiTrigger(desc models.TriggerDescription, env *Env) (Trigger, error) {
	if desc.Op != models.OpAnd && desc.Op != models.OpOr {
		return nil, invalidf("unknown MultiTrigger op %q", desc.Op)
	}
	if len(desc.Triggers) == 0 {
		return nil, invalidf("MultiTrigger requires at least one trigger")
	}
	children := make([]Trigger, 0, len(desc.Triggers))
	for i, childDesc := range desc.Triggers {
		child, err := TriggerFromDescription(childDesc, env)
		if err != nil {
			return nil, fmt.Errorf("MultiTrigger trigger %d: %w", i, err)
		}
		children = append(children, child)
	}
	return &MultiTrigger{
		baseTrigger: baseTrigger{label: desc.Label},
		op:          desc.Op,
		triggers:    children,
		states:      make([]bool, len(children)),
	}, nil
}

// Start starts every child concurrently and waits for all of them
func (t *MultiTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.cancels == nil {
		for i, child := range t.triggers {
			i := i
			t.cancels = append(t.cancels, child.OnStateChanged(func(s models.State) {
				t.onChildStateChanged(i, s)
			}))
		}
	}
	t.mu.Unlock()

	var g errgroup.Group
	for _, child := range t.triggers {
		child := child
		g.Go(func() error { return child.Start(ctx) })
	}
	return g.Wait()
}

func (t *MultiTrigger) Stop() {
	t.mu.Lock()
	for _, cancel := range t.cancels {
		cancel()
	}
	t.cancels = nil
	t.mu.Unlock()

	for _, child := range t.triggers {
		child.Stop()
	}
}

func (t *MultiTrigger) onChildStateChanged(index int, s models.State) {
	t.mu.Lock()
	t.states[index] = s.On
	combined := t.fold()
	changed := combined != t.on
	t.on = combined
	t.mu.Unlock()

	if changed {
		t.emit(models.State{On: combined})
	}
}

func (t *MultiTrigger) fold() bool {
	if t.op == models.OpAnd {
		for _, on := range t.states {
			if !on {
				return false
			}
		}
		return true
	}
	for _, on := range t.states {
		if on {
			return true
		}
	}
	return false
}

func (t *MultiTrigger) Description() models.TriggerDescription {
	children := make([]models.TriggerDescription, len(t.triggers))
	for i, child := range t.triggers {
		children[i] = child.Description()
	}
	return models.TriggerDescription{
		Type:     models.MultiTriggerType,
		Label:    t.label,
		Op:       t.op,
		Triggers: children,
	}
}
