package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
)

// Scheduler runs named jobs on cron expressions (six fields, with seconds).
type Scheduler struct {
	cron    *cron.Cron
	onError func(name string, err error)
}

// New creates a scheduler. onError is invoked whenever a job returns an
// error; nil means errors are dropped.
func New(onError func(name string, err error)) *Scheduler {
	if onError == nil {
		onError = func(string, error) {}
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		onError: onError,
	}
}

func (s *Scheduler) AddJob(name, spec string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := job(context.Background()); err != nil {
			s.onError(name, err)
		}
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
