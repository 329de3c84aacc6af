package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"smarthub/internal/metrics"
	"smarthub/internal/models"
	"smarthub/internal/rules"
)

// ErrRuleNotFound is returned for ids the engine does not know
var ErrRuleNotFound = errors.New("rule not found")

// Store persists rule descriptions
type Store interface {
	GetRules(ctx context.Context) ([]models.RuleDescription, error)
	CreateRule(ctx context.Context, desc models.RuleDescription) (int64, error)
	UpdateRule(ctx context.Context, id int64, desc models.RuleDescription) error
	DeleteRule(ctx context.Context, id int64) error
}

// Engine owns the running rules. Stored rules are loaded on first use.
type Engine struct {
	store  Store
	env    *rules.Env
	logger *zap.Logger

	load singleflight.Group

	mu     sync.RWMutex
	loaded bool
	rules  map[int64]*rules.Rule
	locks  map[int64]*idLock
}

// idLock is held by at most one mutation of an id. It stays in Engine.locks
// while any caller holds or waits for it.
type idLock struct {
	mu   sync.Mutex
	refs int
}

// NewEngine creates an engine building rules against env
func NewEngine(store Store, env *rules.Env, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		env:    env,
		logger: logger.Named("engine"),
		rules:  make(map[int64]*rules.Rule),
		locks:  make(map[int64]*idLock),
	}
}

// NewRule builds a rule from desc without registering it
func (e *Engine) NewRule(desc models.RuleDescription) (*rules.Rule, error) {
	return rules.FromDescription(desc, e.env)
}

// GetRules returns every rule ordered by id
func (e *Engine) GetRules(ctx context.Context) ([]*rules.Rule, error) {
	if err := e.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	e.mu.RLock()
	out := make([]*rules.Rule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r)
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (e *Engine) GetRule(ctx context.Context, id int64) (*rules.Rule, error) {
	if err := e.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.rules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrRuleNotFound, id)
	}
	return r, nil
}

// AddRule persists rule, registers it under its new id and starts it
func (e *Engine) AddRule(ctx context.Context, rule *rules.Rule) (int64, error) {
	if err := e.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	id, err := e.store.CreateRule(ctx, rule.Description())
	if err != nil {
		return 0, fmt.Errorf("persist rule: %w", err)
	}
	rule.SetID(id)

	unlock := e.lockID(id)
	defer unlock()

	e.register(id, rule)
	e.logger.Info("Rule added", zap.Int64("rule", id), zap.String("name", rule.Name()))
	if err := rule.Start(ctx); err != nil {
		return id, err
	}
	return id, nil
}

// UpdateRule replaces the rule stored under id. The old rule is stopped
// before the new one starts.
func (e *Engine) UpdateRule(ctx context.Context, id int64, rule *rules.Rule) error {
	if err := e.ensureLoaded(ctx); err != nil {
		return err
	}
	unlock := e.lockID(id)
	defer unlock()

	old, err := e.lookup(id)
	if err != nil {
		return err
	}
	rule.SetID(id)
	if err := e.store.UpdateRule(ctx, id, rule.Description()); err != nil {
		return fmt.Errorf("persist rule %d: %w", id, err)
	}

	old.Stop()
	e.register(id, rule)
	e.logger.Info("Rule updated", zap.Int64("rule", id))
	return rule.Start(ctx)
}

// DeleteRule removes the rule from storage, then stops it
func (e *Engine) DeleteRule(ctx context.Context, id int64) error {
	if err := e.ensureLoaded(ctx); err != nil {
		return err
	}
	unlock := e.lockID(id)
	defer unlock()

	old, err := e.lookup(id)
	if err != nil {
		return err
	}
	if err := e.store.DeleteRule(ctx, id); err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}

	old.Stop()
	e.mu.Lock()
	delete(e.rules, id)
	metrics.ActiveRules.Set(float64(len(e.rules)))
	e.mu.Unlock()
	e.logger.Info("Rule deleted", zap.Int64("rule", id))
	return nil
}

// Stop stops every running rule. The engine loads again on next use.
func (e *Engine) Stop() {
	e.mu.Lock()
	running := e.rules
	e.rules = make(map[int64]*rules.Rule)
	e.loaded = false
	metrics.ActiveRules.Set(0)
	e.mu.Unlock()

	for _, r := range running {
		r.Stop()
	}
	e.logger.Info("Engine stopped", zap.Int("rules", len(running)))
}

// ensureLoaded loads stored rules once. Concurrent first callers share a
// single load; a failed load is retried by the next caller.
func (e *Engine) ensureLoaded(ctx context.Context) error {
	e.mu.RLock()
	loaded := e.loaded
	e.mu.RUnlock()
	if loaded {
		return nil
	}

	_, err, _ := e.load.Do("rules", func() (any, error) {
		e.mu.RLock()
		loaded := e.loaded
		e.mu.RUnlock()
		if loaded {
			return nil, nil
		}
		return nil, e.loadRules(ctx)
	})
	return err
}

func (e *Engine) loadRules(ctx context.Context) error {
	descs, err := e.store.GetRules(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	loaded := make(map[int64]*rules.Rule, len(descs))
	for _, desc := range descs {
		rule, err := rules.FromDescription(desc, e.env)
		if err != nil {
			e.logger.Error("Skipping invalid stored rule", zap.Int64("rule", desc.ID), zap.Error(err))
			continue
		}
		loaded[desc.ID] = rule
	}

	e.mu.Lock()
	for id, rule := range loaded {
		e.rules[id] = rule
	}
	e.loaded = true
	metrics.ActiveRules.Set(float64(len(e.rules)))
	e.mu.Unlock()

	for id, rule := range loaded {
		if err := rule.Start(ctx); err != nil {
			e.logger.Error("Failed to start stored rule", zap.Int64("rule", id), zap.Error(err))
		}
	}
	e.logger.Info("Rules loaded", zap.Int("count", len(loaded)))
	return nil
}

func (e *Engine) lookup(id int64) (*rules.Rule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.rules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrRuleNotFound, id)
	}
	return r, nil
}

func (e *Engine) register(id int64, rule *rules.Rule) {
	e.mu.Lock()
	e.rules[id] = rule
	metrics.ActiveRules.Set(float64(len(e.rules)))
	e.mu.Unlock()
}

// lockID serializes mutations of one rule id. The returned function
// unlocks and forgets the lock once no other caller needs it.
func (e *Engine) lockID(id int64) func() {
	e.mu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &idLock{}
		e.locks[id] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, id)
		}
		e.mu.Unlock()
	}
}
