package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// LogOutlet writes notifications to the process log
type LogOutlet struct {
	id     string
	logger *zap.Logger
}

func NewLogOutlet(id string, logger *zap.Logger) *LogOutlet {
	return &LogOutlet{id: id, logger: logger.Named("notifier")}
}

func (o *LogOutlet) ID() string { return o.id }

func (o *LogOutlet) Notify(_ context.Context, title, message string, level Level) error {
	o.logger.Info("Notification",
		zap.String("outlet", o.id),
		zap.String("title", title),
		zap.String("message", message),
		zap.Stringer("level", level))
	return nil
}

// MQTTOutlet publishes notifications to notifications/<id>
type MQTTOutlet struct {
	id     string
	client mqtt.Client
}

func NewMQTTOutlet(id string, client mqtt.Client) *MQTTOutlet {
	return &MQTTOutlet{id: id, client: client}
}

func (o *MQTTOutlet) ID() string { return o.id }

func (o *MQTTOutlet) Notify(_ context.Context, title, message string, level Level) error {
	payload, err := json.Marshal(map[string]any{
		"title":   title,
		"message": message,
		"level":   int(level),
	})
	if err != nil {
		return err
	}
	topic := "notifications/" + o.id
	token := o.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	return token.Error()
}
