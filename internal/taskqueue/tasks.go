package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"smarthub/internal/notifier"
)

// TypeNotification is the asynq task type for notification delivery
const TypeNotification = "notification:deliver"

// NotificationPayload for tasks
type NotificationPayload struct {
	Notifier string `json:"notifier"`
	Outlet   string `json:"outlet"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Level    int    `json:"level"`
}

// Enqueuer is the part of *asynq.Client the queue needs
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueuedOutlet defers delivery to an outlet through the task queue, so a
// slow or failing outlet is retried by workers instead of blocking rules.
type QueuedOutlet struct {
	ref    notifier.Ref
	client Enqueuer
}

func (o *QueuedOutlet) ID() string { return o.ref.Outlet }

func (o *QueuedOutlet) Notify(ctx context.Context, title, message string, level notifier.Level) error {
	payload, err := json.Marshal(NotificationPayload{
		Notifier: o.ref.Notifier,
		Outlet:   o.ref.Outlet,
		Title:    title,
		Message:  message,
		Level:    int(level),
	})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeNotification, payload)
	if _, err := o.client.EnqueueContext(ctx, task, asynq.MaxRetry(3), asynq.Timeout(10*time.Second)); err != nil {
		return fmt.Errorf("enqueue notification for %s/%s: %w", o.ref.Notifier, o.ref.Outlet, err)
	}
	return nil
}

// Wrap returns a registry with the same outlets and default as direct,
// each delivering through the queue.
func Wrap(direct *notifier.Registry, client Enqueuer) *notifier.Registry {
	queued := notifier.NewRegistry()
	for _, ref := range direct.Refs() {
		queued.Register(ref.Notifier, &QueuedOutlet{ref: ref, client: client})
	}
	def := direct.DefaultRef()
	queued.SetDefault(def.Notifier, def.Outlet)
	return queued
}

// NotificationHandler delivers queued notifications to direct outlets
type NotificationHandler struct {
	outlets *notifier.Registry
	logger  *zap.Logger
}

func NewNotificationHandler(outlets *notifier.Registry, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{outlets: outlets, logger: logger.Named("taskqueue")}
}

// ProcessTask implements asynq.Handler
func (h *NotificationHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p NotificationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode notification payload: %v: %w", err, asynq.SkipRetry)
	}
	outlet, err := h.outlets.Outlet(p.Notifier, p.Outlet)
	if err != nil {
		h.logger.Warn("Dropping notification", zap.String("notifier", p.Notifier), zap.String("outlet", p.Outlet), zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return outlet.Notify(ctx, p.Title, p.Message, notifier.Level(p.Level))
}
