// Package scheduler triggers runs on a cron schedule in serve mode.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type Task func(ctx context.Context) error

// ErrSkipped may be returned by a Task that chose not to run; it is logged
// at a lower level than a failure.
var ErrSkipped = errors.New("skipped")

type Scheduler struct {
	name string
	task Task
	c    *cron.Cron
	job  cron.Job
	wg   sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// New parses spec ("@every 6h", "0 8 * * 1-5", ...) in the given time zone.
// A tick that fires while the previous one is still running is dropped.
func New(spec, timezone, name string, task Task) (*Scheduler, error) {
	loc := time.UTC
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("schedule timezone %q: %w", timezone, err)
		}
		loc = l
	}

	logger := cron.PrintfLogger(log.Default())
	c := cron.New(cron.WithLocation(loc))

	s := &Scheduler{name: name, task: task, c: c}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	// scheduled ticks and the startup run share one wrapper, so they skip
	// each other instead of overlapping
	s.job = cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).
		Then(cron.FuncJob(s.fire))

	if _, err := c.AddJob(spec, s.job); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) fire() {
	err := s.task(s.ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrSkipped):
		log.Printf("[%s] tick skipped: %v", s.name, err)
	default:
		log.Printf("[%s] error: %v", s.name, err)
	}
}

// Start begins ticking. With runNow the task also runs once right away.
func (s *Scheduler) Start(runNow bool) {
	s.c.Start()
	if runNow {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.job.Run()
		}()
	}
}

// Next is the time of the upcoming tick, zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.c.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop cancels the running task's context and waits for it to return, or
// for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	stopped := s.c.Stop()
	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
