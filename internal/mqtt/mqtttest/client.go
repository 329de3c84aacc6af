// Package mqtttest provides an in-memory paho client for tests.
package mqtttest

import (
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Published records one Publish call
type Published struct {
	Topic   string
	Payload []byte
}

// Client implements mqtt.Client without a broker. Deliver routes a
// message to handlers added with AddRoute or Subscribe.
type Client struct {
	mu            sync.Mutex
	routes        map[string]mqtt.MessageHandler
	subscriptions []map[string]byte
	published     []Published
	publishErr    error
}

var _ mqtt.Client = (*Client)(nil)

func New() *Client {
	return &Client{routes: make(map[string]mqtt.MessageHandler)}
}

// FailPublish makes every later Publish return err
func (c *Client) FailPublish(err error) {
	c.mu.Lock()
	c.publishErr = err
	c.mu.Unlock()
}

// Subscriptions returns the filters of every SubscribeMultiple call
func (c *Client) Subscriptions() []map[string]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]byte(nil), c.subscriptions...)
}

func (c *Client) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.published...)
}

// HasRoute reports whether a handler is registered for filter
func (c *Client) HasRoute(filter string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.routes[filter]
	return ok
}

// Deliver calls every handler whose filter matches topic
func (c *Client) Deliver(topic string, payload []byte) {
	c.mu.Lock()
	var handlers []mqtt.MessageHandler
	for filter, h := range c.routes {
		if matches(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(c, &message{topic: topic, payload: payload})
	}
}

func (c *Client) IsConnected() bool      { return true }
func (c *Client) IsConnectionOpen() bool { return true }
func (c *Client) Connect() mqtt.Token    { return done(nil) }
func (c *Client) Disconnect(uint)        {}

func (c *Client) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return done(c.publishErr)
	}
	var body []byte
	switch p := payload.(type) {
	case []byte:
		body = p
	case string:
		body = []byte(p)
	}
	c.published = append(c.published, Published{Topic: topic, Payload: body})
	return done(nil)
}

func (c *Client) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return c.SubscribeMultiple(map[string]byte{topic: qos}, callback)
}

func (c *Client) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := make(map[string]byte, len(filters))
	for f, q := range filters {
		copied[f] = q
		if callback != nil {
			c.routes[f] = callback
		}
	}
	c.subscriptions = append(c.subscriptions, copied)
	return done(nil)
}

func (c *Client) Unsubscribe(...string) mqtt.Token { return done(nil) }

func (c *Client) AddRoute(topic string, callback mqtt.MessageHandler) {
	c.mu.Lock()
	c.routes[topic] = callback
	c.mu.Unlock()
}

func (c *Client) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.NewOptionsReader(mqtt.NewClientOptions())
}

// matches applies MQTT wildcard rules for + and #
func matches(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	for i, f := range fp {
		if f == "#" {
			return true
		}
		if i >= len(tp) || (f != "+" && f != tp[i]) {
			return false
		}
	}
	return len(fp) == len(tp)
}

type token struct {
	err error
	ch  chan struct{}
}

func done(err error) *token {
	ch := make(chan struct{})
	close(ch)
	return &token{err: err, ch: ch}
}

func (t *token) Wait() bool                     { return true }
func (t *token) WaitTimeout(time.Duration) bool { return true }
func (t *token) Done() <-chan struct{}          { return t.ch }
func (t *token) Error() error                   { return t.err }

type message struct {
	topic   string
	payload []byte
}

func (m *message) Duplicate() bool   { return false }
func (m *message) Qos() byte         { return 1 }
func (m *message) Retained() bool    { return false }
func (m *message) Topic() string     { return m.topic }
func (m *message) MessageID() uint16 { return 0 }
func (m *message) Payload() []byte   { return m.payload }
func (m *message) Ack()              {}
