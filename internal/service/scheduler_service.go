package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"worklog/internal/model"
)

// Job is a scheduled unit of work. The context expires after the job's time budget.
type Job func(ctx context.Context) error

// SchedulerService runs reminder jobs on cron schedules. A job that is still running
// when its next activation fires is skipped, and panics are logged instead of crashing.
type SchedulerService struct {
	cron    *cron.Cron
	logger  *log.Logger
	timeout time.Duration
}

func NewSchedulerService(loc *time.Location, logger *log.Logger) *SchedulerService {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = log.Default()
	}
	cronLogger := cron.PrintfLogger(logger)
	return &SchedulerService{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger), cron.Recover(cronLogger)),
		),
		logger:  logger,
		timeout: 2 * time.Minute,
	}
}

// ScheduleDaily runs job every day at the HH:MM wall time in the scheduler's location.
func (s *SchedulerService) ScheduleDaily(name, at string, job Job) (cron.EntryID, error) {
	expr, err := dailyExpr(at)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(expr, s.wrap(name, job))
}

// ScheduleInterval runs job periodically, with the interval rounded down to whole seconds.
func (s *SchedulerService) ScheduleInterval(name string, interval time.Duration, job Job) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	seconds := max(int(interval.Seconds()), 1)
	return s.cron.AddFunc(fmt.Sprintf("@every %ds", seconds), s.wrap(name, job))
}

// Next returns the next activation of an entry, or the zero time before Start.
func (s *SchedulerService) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *SchedulerService) Stop() {
	<-s.cron.Stop().Done()
}

func (s *SchedulerService) wrap(name string, job Job) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		started := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Printf("job %s failed after %s: %v", name, time.Since(started).Round(time.Millisecond), err)
			return
		}
		s.logger.Printf("[info] job %s done in %s", name, time.Since(started).Round(time.Millisecond))
	}
}

func dailyExpr(at string) (string, error) {
	tod, err := model.ParseTimeOfDay(at)
	if err != nil || tod.IsZero() {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", at)
	}
	hour, minute, _ := tod.Clock()
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
