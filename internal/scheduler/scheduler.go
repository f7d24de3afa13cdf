package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is a unit of periodic background work.
type Job func(ctx context.Context) error

type entry struct {
	name     string
	interval time.Duration
	job      Job
}

// Scheduler runs registered jobs on fixed intervals until the context is
// cancelled. Invocations of one job never overlap: the next tick waits for
// the previous run to finish.
type Scheduler struct {
	entries []entry
}

// New builds an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Every registers a job to run on the given interval.
func (s *Scheduler) Every(interval time.Duration, name string, job Job) {
	s.entries = append(s.entries, entry{name: name, interval: interval, job: job})
}

// Run starts all jobs and blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, e := range s.entries {
		wg.Add(1)
		go func(e entry) {
			defer wg.Done()
			ticker := time.NewTicker(e.interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := e.job(ctx); err != nil {
						log.Printf("scheduler job %s: %v", e.name, err)
					}
				}
			}
		}(e)
	}
	wg.Wait()
}
