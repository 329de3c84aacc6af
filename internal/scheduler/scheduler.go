package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler manages time-based triggers
type Scheduler struct {
	cron      *cron.Cron
	logger    *zap.Logger
	jobMap    map[cron.EntryID]string // entry ID to job label
	jobMapMux sync.RWMutex
}

// NewScheduler creates a scheduler evaluating specs in loc
func NewScheduler(loc *time.Location, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		logger: logger.Named("scheduler"),
		jobMap: make(map[cron.EntryID]string),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Cron scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron scheduler stopped")
}

// AddJob adds a cron job and returns the entry ID
func (s *Scheduler) AddJob(spec, label string, fn func()) (cron.EntryID, error) {
	entryID, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return 0, fmt.Errorf("schedule %q with cron %q: %w", label, spec, err)
	}

	s.jobMapMux.Lock()
	s.jobMap[entryID] = label
	s.jobMapMux.Unlock()

	s.logger.Debug("Scheduled job", zap.String("job", label), zap.String("cron", spec), zap.Int("entry", int(entryID)))
	return entryID, nil
}

// RemoveJob removes a job. Unknown IDs are ignored.
func (s *Scheduler) RemoveJob(entryID cron.EntryID) {
	s.jobMapMux.Lock()
	defer s.jobMapMux.Unlock()

	if label, exists := s.jobMap[entryID]; exists {
		s.cron.Remove(entryID)
		delete(s.jobMap, entryID)
		s.logger.Debug("Removed job", zap.String("job", label), zap.Int("entry", int(entryID)))
	}
}

// Next returns the next activation time of a job. It is zero until the
// scheduler is started.
func (s *Scheduler) Next(entryID cron.EntryID) time.Time {
	return s.cron.Entry(entryID).Next
}

// GetScheduledJobCount returns the number of currently scheduled jobs
func (s *Scheduler) GetScheduledJobCount() int {
	s.jobMapMux.RLock()
	defer s.jobMapMux.RUnlock()
	return len(s.jobMap)
}

// DailySpec converts a local time of day to a cron expression
func DailySpec(hour, minute int) (string, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid time of day %02d:%02d", hour, minute)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}
