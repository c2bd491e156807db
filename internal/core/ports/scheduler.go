package ports

import "time"

type SchedulerService interface {
	Start()
	Stop()

	// ScheduleTaskOnce runs task once at the given time. Times in the past
	// run the task right away.
	ScheduleTaskOnce(at time.Time, task func()) error
}
