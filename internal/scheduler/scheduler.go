package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/ashish9731/email-responder/internal/types"
)

var ErrJobExists = errors.New("job already scheduled")

// Frequency is how often a job runs
type Frequency struct {
	Every  string // second, minute, hour
	Amount int
}

func (f Frequency) String() string {
	return fmt.Sprintf("every %d %s", f.Amount, f.Every)
}

// Interval converts the frequency to a duration
func (f Frequency) Interval() (time.Duration, error) {
	if f.Amount < 1 {
		return 0, fmt.Errorf("invalid frequency amount: %d", f.Amount)
	}
	switch f.Every {
	case "second":
		return time.Duration(f.Amount) * time.Second, nil
	case "minute":
		return time.Duration(f.Amount) * time.Minute, nil
	case "hour":
		return time.Duration(f.Amount) * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid frequency: %s", f.Every)
	}
}

// FrequencyFromConfig reads the poll frequency from the scheduling section
func FrequencyFromConfig(cfg *types.Config) Frequency {
	return Frequency{Every: cfg.Scheduling.FrequencyEvery, Amount: cfg.Scheduling.FrequencyAmount}
}

// Scheduler runs named jobs on a fixed interval. Every job runs in singleton
// mode: a tick that fires while the previous run is still going is skipped.
type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *slog.Logger
	jobs      map[string]*gocron.Job
	mu        sync.RWMutex
}

// NewScheduler creates a new scheduler instance
func NewScheduler(logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		logger:    logger,
		jobs:      make(map[string]*gocron.Job),
	}
}

// Start starts the scheduler if it is not running yet
func (s *Scheduler) Start() {
	if !s.scheduler.IsRunning() {
		s.scheduler.StartAsync()
	}
}

// Stop stops the scheduler and forgets all jobs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scheduler.Stop()
	s.scheduler.Clear()
	s.jobs = make(map[string]*gocron.Job)
}

// Schedule adds a job. startNow runs it once immediately, otherwise the first
// run happens after one interval.
func (s *Scheduler) Schedule(name string, freq Frequency, startNow bool, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobExists, name)
	}

	interval, err := freq.Interval()
	if err != nil {
		return err
	}

	job := s.scheduler.Every(interval).Tag(name)
	if !startNow {
		job = job.WaitForSchedule()
	}

	scheduled, err := job.Do(fn)
	if err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}
	s.jobs[name] = scheduled

	s.logger.Info("scheduled job",
		"name", name,
		"frequency", freq.String(),
		"start_now", startNow,
	)
	return nil
}

// Remove removes a job by name; unknown names are ignored
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, exists := s.jobs[name]; exists {
		s.scheduler.RemoveByReference(job)
		delete(s.jobs, name)
		s.logger.Info("removed scheduled job", "name", name)
	}
}

// IsScheduled reports whether a job with the name exists
func (s *Scheduler) IsScheduled(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.jobs[name]
	return ok
}

// NextRun returns when the job runs next, zero if it is not scheduled
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if job, ok := s.jobs[name]; ok {
		return job.NextRun()
	}
	return time.Time{}
}
