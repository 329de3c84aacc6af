package rules

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"smarthub/internal/notifier"
	"smarthub/internal/scheduler"
	"smarthub/internal/things"
)

// ErrInvalidDescription is wrapped by every construction error
var ErrInvalidDescription = errors.New("invalid rule description")

// remoteTimeout bounds every call into the device layer
const remoteTimeout = 10 * time.Second

// Env carries the collaborators rule components are built against
type Env struct {
	Things    things.Service
	Bus       *things.Bus
	Notifiers *notifier.Registry
	Scheduler *scheduler.Scheduler
	Logger    *zap.Logger
}

func (e *Env) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDescription, fmt.Sprintf(format, args...))
}
