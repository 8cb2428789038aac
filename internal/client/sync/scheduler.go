package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs periodic sync cycles in the background.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New(cron.WithSeconds())}
}

// ScheduleSync registers a periodic sync at the given interval. While
// the coordinator is offline the tick probes for connectivity instead;
// a successful probe flips it online, which triggers the sync itself.
func (s *Scheduler) ScheduleSync(interval time.Duration, coordinator *Coordinator) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	spec := fmt.Sprintf("@every %ds", seconds)
	return s.cron.AddFunc(spec, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if !coordinator.CurrentState().IsOnline {
			coordinator.Ping(jobCtx)
			return
		}
		if err := coordinator.Sync(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			coordinator.logger.Printf("WARNING: scheduled sync: %v", err)
		}
	})
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
