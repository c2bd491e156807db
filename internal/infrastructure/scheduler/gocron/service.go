package timescheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"github.com/tdex-network/xswapd/internal/core/ports"
)

type service struct {
	scheduler *gocron.Scheduler
	now       func() time.Time
}

func NewScheduler() ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	return &service{svc, time.Now}
}

func (s *service) Start() {
	s.scheduler.StartAsync()
}

func (s *service) Stop() {
	s.scheduler.Stop()
}

func (s *service) ScheduleTaskOnce(at time.Time, task func()) error {
	delay := at.Sub(s.now()).Milliseconds()
	if delay <= 0 {
		go task()
		return nil
	}

	_, err := s.scheduler.Every(int(delay)).Milliseconds().
		WaitForSchedule().LimitRunsTo(1).Do(task)
	return err
}
