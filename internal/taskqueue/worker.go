package taskqueue

import (
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"smarthub/internal/notifier"
)

// Queue owns the asynq client and worker server
type Queue struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewQueue connects to Redis at redisAddr and routes notification tasks to
// the direct outlets.
func NewQueue(redisAddr string, outlets *notifier.Registry, logger *zap.Logger) *Queue {
	opt := asynq.RedisClientOpt{Addr: redisAddr}
	mux := asynq.NewServeMux()
	mux.Handle(TypeNotification, NewNotificationHandler(outlets, logger))
	return &Queue{
		client: asynq.NewClient(opt),
		server: asynq.NewServer(opt, asynq.Config{Concurrency: 10}),
		mux:    mux,
		logger: logger.Named("taskqueue"),
	}
}

// Client is used to wrap outlets for queued delivery
func (q *Queue) Client() *asynq.Client {
	return q.client
}

// Start starts workers
func (q *Queue) Start() error {
	q.logger.Info("Starting workers")
	if err := q.server.Start(q.mux); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}
	return nil
}

// Stop stops workers
func (q *Queue) Stop() {
	q.logger.Info("Stopping workers")
	q.server.Shutdown()
	q.client.Close()
}
