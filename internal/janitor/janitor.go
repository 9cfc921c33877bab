package janitor

import (
	"context"
	"sync"
	"time"

	"loopchat-backend/pkg/logging"

	"github.com/sirupsen/logrus"
)

// Job is one periodic maintenance sweep.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs each registered job on its own ticker. Jobs run immediately
// on start and then every interval until Stop.
type Scheduler struct {
	jobs     []Job
	timeout  time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
	log      *logrus.Entry
}

// NewScheduler creates a scheduler. Each job run is bounded by timeout.
func NewScheduler(timeout time.Duration, jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		timeout:  timeout,
		stopChan: make(chan struct{}),
		log:      logging.WithComponent("Janitor"),
	}
}

// Start launches one goroutine per job
func (s *Scheduler) Start() {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(job)
	}
	s.log.WithField("jobs", len(s.jobs)).Info("janitor started")
}

func (s *Scheduler) loop(job Job) {
	defer s.wg.Done()

	s.runOnce(job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(job)
		case <-s.stopChan:
			return
		}
	}
}

func (s *Scheduler) runOnce(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.log.WithField("job", job.Name).WithError(err).Warn("sweep failed")
		return
	}
	s.log.WithFields(logrus.Fields{
		"job":     job.Name,
		"elapsed": time.Since(start).String(),
	}).Debug("sweep finished")
}

// Stop gracefully stops every job and waits for in-flight runs
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
	s.log.Info("janitor stopped")
}
