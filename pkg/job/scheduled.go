package job

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"github.com/robfig/cron/v3"
)

type schedule struct {
	handle func(context.Context) error
	name   string
	expr   string
	opts   []EnqueueOption
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

type cronSchedule struct {
	schedule cron.Schedule
}

func (c *cronSchedule) Next(current time.Time) time.Time {
	return c.schedule.Next(current)
}

func parseCronSchedule(expr string) (river.PeriodicSchedule, error) {
	s, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSchedule, expr, err)
	}
	return &cronSchedule{schedule: s}, nil
}

// periodicJob registers the handler and returns the River job that inserts it.
func (s schedule) periodicJob(reg *registry) (*river.PeriodicJob, error) {
	sched, err := parseCronSchedule(s.expr)
	if err != nil {
		return nil, err
	}

	reg.register(s.name, &scheduledTask{handle: s.handle})

	cfg := &enqueueConfig{}
	for _, opt := range s.opts {
		opt(cfg)
	}
	name := s.name

	return river.NewPeriodicJob(
		sched,
		func() (river.JobArgs, *river.InsertOpts) {
			return &taskArgs{TaskName: name}, insertOptions(cfg)
		},
		&river.PeriodicJobOpts{RunOnStart: false},
	), nil
}
