package things

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	stateTopic  = "devices/+/state"
	eventsTopic = "devices/+/events/+"

	publishTimeout = 5 * time.Second
	queueSize      = 256
)

// Subscriptions lists the device topic filters the bridge routes. Pass it
// to the MQTT client so they are renewed on every connect.
var Subscriptions = map[string]byte{stateTopic: 1, eventsTopic: 1}

// DeviceState is the last known property map of a thing
type DeviceState map[string]any

// StateCache keeps the last known state of every thing. Load returns
// ErrThingNotFound for things never seen.
type StateCache interface {
	Load(ctx context.Context, thingID string) (DeviceState, error)
	Store(ctx context.Context, thingID string, state DeviceState) error
}

type inbound struct {
	topic   string
	payload []byte
}

// Bridge implements Service on top of MQTT and a Redis state cache and
// feeds the Bus from device topics. MQTT callbacks only enqueue; Run
// delivers every notification on a single goroutine, so listeners see
// notifications in arrival order.
type Bridge struct {
	mqttClient mqtt.Client
	cache      StateCache
	bus        *Bus
	logger     *zap.Logger
	inbox      chan inbound
}

func NewBridge(mqttClient mqtt.Client, cache StateCache, bus *Bus, logger *zap.Logger) *Bridge {
	return &Bridge{
		mqttClient: mqttClient,
		cache:      cache,
		bus:        bus,
		logger:     logger.Named("things"),
		inbox:      make(chan inbound, queueSize),
	}
}

// Run routes device topics into the inbox and dispatches notifications
// until ctx is cancelled. The subscriptions themselves are owned by the
// client's connect handler, see Subscriptions.
func (b *Bridge) Run(ctx context.Context) error {
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case b.inbox <- inbound{topic: msg.Topic(), payload: msg.Payload()}:
		case <-ctx.Done():
		}
	}
	for topic := range Subscriptions {
		b.mqttClient.AddRoute(topic, handler)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-b.inbox:
			b.dispatch(ctx, msg)
		}
	}
}

func (b *Bridge) dispatch(ctx context.Context, msg inbound) {
	thingID, kind, name := parseTopic(msg.topic)
	if thingID == "" {
		b.logger.Warn("Ignoring message on unexpected topic", zap.String("topic", msg.topic))
		return
	}

	switch kind {
	case "state":
		var state DeviceState
		if err := json.Unmarshal(msg.payload, &state); err != nil {
			b.logger.Warn("Error unmarshaling state", zap.String("thing", thingID), zap.Error(err))
			return
		}
		b.processStateUpdate(ctx, thingID, state)
	case "events":
		var data any
		if len(msg.payload) > 0 {
			if err := json.Unmarshal(msg.payload, &data); err != nil {
				data = string(msg.payload)
			}
		}
		b.bus.PublishEvent(DeviceEvent{Thing: thingID, Name: name, Data: data})
	}
}

// processStateUpdate merges a reported state into the cache. A new thing
// is announced with thing-added only; listeners read its values from the
// cache. For known things one property change is published per key whose
// value differs from the cached one.
func (b *Bridge) processStateUpdate(ctx context.Context, thingID string, newState DeviceState) {
	lastState, err := b.cache.Load(ctx, thingID)
	known := err == nil
	if err != nil && !errors.Is(err, ErrThingNotFound) {
		b.logger.Error("Error reading cached state", zap.String("thing", thingID), zap.Error(err))
		return
	}

	merged := make(DeviceState, len(lastState)+len(newState))
	for k, v := range lastState {
		merged[k] = v
	}
	for k, v := range newState {
		merged[k] = v
	}
	if err := b.cache.Store(ctx, thingID, merged); err != nil {
		b.logger.Error("Error caching state", zap.String("thing", thingID), zap.Error(err))
		return
	}

	if !known {
		b.logger.Info("Thing added", zap.String("thing", thingID))
		b.bus.PublishThingAdded(thingID)
		return
	}
	for _, key := range changedKeys(lastState, newState) {
		b.bus.PublishPropertyChanged(PropertyEvent{Thing: thingID, Property: key, Value: newState[key]})
	}
}

// RedisStateCache stores each thing's state as JSON under device:<id>
type RedisStateCache struct {
	client *redis.Client
}

func NewRedisStateCache(client *redis.Client) *RedisStateCache {
	return &RedisStateCache{client: client}
}

func (c *RedisStateCache) Load(ctx context.Context, thingID string) (DeviceState, error) {
	raw, err := c.client.Get(ctx, stateKey(thingID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrThingNotFound
	}
	if err != nil {
		return nil, err
	}
	var state DeviceState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decode state of %s: %w", thingID, err)
	}
	return state, nil
}

func (c *RedisStateCache) Store(ctx context.Context, thingID string, state DeviceState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, stateKey(thingID), raw, 0).Err()
}

func (b *Bridge) GetThingProperty(ctx context.Context, thingID, propertyID string) (any, error) {
	state, err := b.cache.Load(ctx, thingID)
	if err != nil {
		return nil, err
	}
	value, ok := state[propertyID]
	if !ok {
		return nil, ErrPropertyNotFound
	}
	return value, nil
}

func (b *Bridge) SetThingProperty(ctx context.Context, thingID, propertyID string, value any) (any, error) {
	if err := b.publish(thingID, "commands", map[string]any{propertyID: value}); err != nil {
		return nil, err
	}
	return value, nil
}

func (b *Bridge) PerformAction(ctx context.Context, thingID, action string, input map[string]any) error {
	return b.publish(thingID, "actions", map[string]any{"action": action, "input": input})
}

func (b *Bridge) publish(thingID, kind string, body map[string]any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s for %s: %w", kind, thingID, err)
	}
	topic := fmt.Sprintf("devices/%s/%s", thingID, kind)
	token := b.mqttClient.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	b.logger.Debug("Published device message", zap.String("topic", topic), zap.ByteString("payload", payload))
	return nil
}

func stateKey(thingID string) string {
	return fmt.Sprintf("device:%s", thingID)
}

// parseTopic splits devices/<thing>/<kind>[/<name>]
func parseTopic(topic string) (thingID, kind, name string) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[0] != "devices" || parts[1] == "" {
		return "", "", ""
	}
	switch {
	case parts[2] == "state" && len(parts) == 3:
		return parts[1], "state", ""
	case parts[2] == "events" && len(parts) == 4 && parts[3] != "":
		return parts[1], "events", parts[3]
	}
	return "", "", ""
}

// changedKeys lists, in sorted order, the keys of next whose value is new
// or differs from last.
func changedKeys(last, next DeviceState) []string {
	var keys []string
	for k, v := range next {
		old, ok := last[k]
		if !ok || !reflect.DeepEqual(old, v) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
