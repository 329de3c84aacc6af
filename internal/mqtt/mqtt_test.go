package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"smarthub/internal/mqtt/mqtttest"
)

func TestSubscribeOnConnect_RenewsOnEveryConnect(t *testing.T) {
	subscriptions := map[string]byte{"devices/+/state": 1, "devices/+/events/+": 1}
	onConnect := SubscribeOnConnect(subscriptions, zap.NewNop())
	client := mqtttest.New()

	onConnect(client)
	// reconnect after a broker drop
	onConnect(client)

	assert.Equal(t, []map[string]byte{subscriptions, subscriptions}, client.Subscriptions())
	assert.False(t, client.HasRoute("devices/+/state"))
}

func TestSubscribeOnConnect_NothingToSubscribe(t *testing.T) {
	client := mqtttest.New()
	SubscribeOnConnect(nil, zap.NewNop())(client)
	assert.Empty(t, client.Subscriptions())
}
