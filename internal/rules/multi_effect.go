package rules

import (
	"context"
	"fmt"
	"sync"

	"smarthub/internal/models"
)

// MultiEffect hands every state to each child in list order without
// waiting for a child to finish. Each child has its own queue, so a child
// sees states in the order they were forwarded while a slow child never
// holds up its siblings or the caller.
type MultiEffect struct {
	label    string
	children []*effectQueue
}

func newMultiEffect(desc models.EffectDescription, env *Env) (Effect, error) {
	children := make([]*effectQueue, 0, len(desc.Effects))
	for i, childDesc := range desc.Effects {
		child, err := EffectFromDescription(childDesc, env)
		if err != nil {
			return nil, fmt.Errorf("MultiEffect effect %d: %w", i, err)
		}
		children = append(children, &effectQueue{effect: child})
	}
	return &MultiEffect{label: desc.Label, children: children}, nil
}

func (e *MultiEffect) SetState(ctx context.Context, state models.State) {
	for _, child := range e.children {
		child.push(ctx, state)
	}
}

func (e *MultiEffect) Description() models.EffectDescription {
	children := make([]models.EffectDescription, len(e.children))
	for i, child := range e.children {
		children[i] = child.effect.Description()
	}
	return models.EffectDescription{
		Type:    models.MultiEffectType,
		Label:   e.label,
		Effects: children,
	}
}

type queuedState struct {
	ctx   context.Context
	state models.State
}

// effectQueue delivers states to one effect in FIFO order. A drain
// goroutine runs only while states are pending.
type effectQueue struct {
	effect Effect

	mu       sync.Mutex
	pending  []queuedState
	draining bool
}

func (q *effectQueue) push(ctx context.Context, state models.State) {
	q.mu.Lock()
	q.pending = append(q.pending, queuedState{ctx: ctx, state: state})
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()

	go q.drain()
}

func (q *effectQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.effect.SetState(next.ctx, next.state)
	}
}
