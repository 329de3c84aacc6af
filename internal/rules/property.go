package rules

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"smarthub/internal/events"
	"smarthub/internal/metrics"
	"smarthub/internal/models"
	"smarthub/internal/things"
)

// Property proxies one property of a remote thing. Value changes reported
// on the bus are re-emitted to OnValueChanged listeners.
type Property struct {
	desc   models.PropertyDescription
	things things.Service
	bus    *things.Bus
	logger *zap.Logger

	valueChanged events.Emitter[any]

	mu            sync.Mutex
	started       bool
	initialized   bool
	cancelChanged func()
	cancelAdded   func()
}

// NewProperty validates desc and binds it to the device layer in env
func NewProperty(desc *models.PropertyDescription, env *Env) (*Property, error) {
	if desc == nil {
		return nil, invalidf("missing property")
	}
	if desc.Thing == "" || desc.ID == "" {
		return nil, invalidf("property must name a thing and an id")
	}
	switch desc.Type {
	case models.TypeBoolean, models.TypeNumber, models.TypeInteger, models.TypeString:
	default:
		return nil, invalidf("unsupported property type %q", desc.Type)
	}
	return &Property{
		desc:   *desc,
		things: env.Things,
		bus:    env.Bus,
		logger: env.logger().With(zap.String("thing", desc.Thing), zap.String("property", desc.ID)),
	}, nil
}

func (p *Property) Description() *models.PropertyDescription {
	d := p.desc
	return &d
}

func (p *Property) Type() string {
	return p.desc.Type
}

// OnValueChanged registers fn for new values of this property
func (p *Property) OnValueChanged(fn func(value any)) func() {
	return p.valueChanged.On(fn)
}

// Get reads the current value. ok is false when the thing or property is
// not known yet or the read failed.
func (p *Property) Get(ctx context.Context) (value any, ok bool) {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	value, err := p.things.GetThingProperty(ctx, p.desc.Thing, p.desc.ID)
	if err != nil {
		if !errors.Is(err, things.ErrThingNotFound) && !errors.Is(err, things.ErrPropertyNotFound) {
			p.logger.Warn("Property read failed", zap.Error(err))
		}
		return nil, false
	}
	return value, true
}

// Set writes value, retrying once. A second failure is logged and dropped.
func (p *Property) Set(ctx context.Context, value any) (any, bool) {
	accepted, err := p.set(ctx, value)
	if err != nil {
		p.logger.Warn("Property write failed, retrying", zap.Any("value", value), zap.Error(err))
		accepted, err = p.set(ctx, value)
	}
	if err != nil {
		p.logger.Error("Property write dropped", zap.Any("value", value), zap.Error(err))
		metrics.PropertyWriteFailures.Inc()
		return nil, false
	}
	return accepted, true
}

func (p *Property) set(ctx context.Context, value any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()
	return p.things.SetThingProperty(ctx, p.desc.Thing, p.desc.ID, value)
}

// Start listens for changes and emits the current value once it can be
// read. When the thing is not known yet the value is read when it is
// added; it is emitted at most once per start.
func (p *Property) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.cancelChanged = p.bus.OnPropertyChanged(p.onPropertyChanged)
	p.cancelAdded = p.bus.OnThingAdded(p.onThingAdded)
	p.mu.Unlock()

	p.emitInitialValue(ctx)
}

// Stop removes this property's bus subscriptions. It is idempotent.
func (p *Property) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	p.initialized = false
	if p.cancelChanged != nil {
		p.cancelChanged()
		p.cancelChanged = nil
	}
	p.dropThingAdded()
}

func (p *Property) running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// dropThingAdded removes the thing-added subscription. Callers hold mu.
func (p *Property) dropThingAdded() {
	if p.cancelAdded != nil {
		p.cancelAdded()
		p.cancelAdded = nil
	}
}

func (p *Property) emitInitialValue(ctx context.Context) {
	value, ok := p.Get(ctx)
	if !ok || value == nil {
		return
	}
	p.mu.Lock()
	if !p.started || p.initialized {
		p.mu.Unlock()
		return
	}
	p.initialized = true
	p.dropThingAdded()
	p.mu.Unlock()

	p.valueChanged.Emit(value)
}

func (p *Property) onPropertyChanged(ev things.PropertyEvent) {
	if ev.Thing != p.desc.Thing || ev.Property != p.desc.ID {
		return
	}
	if !p.running() {
		return
	}
	p.valueChanged.Emit(ev.Value)
}

func (p *Property) onThingAdded(thingID string) {
	if thingID != p.desc.Thing {
		return
	}
	p.emitInitialValue(context.Background())
}
