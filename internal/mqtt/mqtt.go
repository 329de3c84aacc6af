package mqtt

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// NewMQTTClient creates and connects an MQTT client. The topic filters in
// subscriptions are subscribed on every connect, including automatic
// reconnects; their messages reach handlers registered with AddRoute.
func NewMQTTClient(broker, clientID string, subscriptions map[string]byte, logger *zap.Logger) (mqtt.Client, error) {
	logger = logger.Named("mqtt")
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(SubscribeOnConnect(subscriptions, logger)).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("MQTT connection lost, reconnecting", zap.String("broker", broker), zap.Error(err))
		})
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}
	return client, nil
}

// SubscribeOnConnect returns a connect handler that (re)subscribes to
// subscriptions without installing callbacks.
func SubscribeOnConnect(subscriptions map[string]byte, logger *zap.Logger) mqtt.OnConnectHandler {
	return func(client mqtt.Client) {
		if len(subscriptions) == 0 {
			return
		}
		token := client.SubscribeMultiple(subscriptions, nil)
		if !token.WaitTimeout(connectTimeout) {
			logger.Error("MQTT subscribe timed out")
			return
		}
		if err := token.Error(); err != nil {
			logger.Error("MQTT subscribe failed", zap.Error(err))
			return
		}
		for topic := range subscriptions {
			logger.Info("Subscribed to MQTT topic", zap.String("topic", topic))
		}
	}
}
