// Package monitor polls the mailbox, opens cases for matching messages and
// drives each case through reply and follow-up.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashish9731/email-responder/internal/archive"
	"github.com/ashish9731/email-responder/internal/errorlog"
	"github.com/ashish9731/email-responder/internal/generator"
	"github.com/ashish9731/email-responder/internal/mailbox"
	"github.com/ashish9731/email-responder/internal/models"
	"github.com/ashish9731/email-responder/internal/scheduler"
	"github.com/ashish9731/email-responder/internal/storage"
)

const (
	pollJobName           = "email-poll"
	defaultBatchSize      = 10
	defaultMessageTimeout = 3 * time.Minute
	statusTimeout         = 10 * time.Second
)

// IncidentRecorder receives failures worth showing to an operator
type IncidentRecorder interface {
	Record(in errorlog.Incident) error
}

// Config controls polling
type Config struct {
	BatchSize int
	Frequency scheduler.Frequency
	// StartNow runs the first cycle as soon as Start is called
	StartNow bool
	// MessageTimeout bounds the work on one message or follow-up, which
	// keeps running after Stop until it is done
	MessageTimeout time.Duration
}

// Deps are the gateways the coordinator drives
type Deps struct {
	Store     storage.Store
	Mailbox   mailbox.Gateway
	Archive   archive.Gateway
	Generator generator.Generator
	Scheduler *scheduler.Scheduler
	// Incidents is optional
	Incidents IncidentRecorder
}

// Coordinator owns the poll loop and the case state machine
type Coordinator struct {
	cfg       Config
	store     storage.Store
	mailbox   mailbox.Gateway
	archive   archive.Gateway
	generator generator.Generator
	sched     *scheduler.Scheduler
	incidents IncidentRecorder
	logger    *slog.Logger
	now       func() time.Time

	// cycleMu is held for the duration of a poll cycle
	cycleMu sync.Mutex

	mu           sync.Mutex
	running      bool
	cancel       context.CancelFunc
	inflight     sync.WaitGroup
	lastPollAt   *time.Time
	lastError    string
	foldersReady bool
}

// New creates a coordinator. It does nothing until Start or RunCycle.
func New(cfg Config, deps Deps, logger *slog.Logger) *Coordinator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MessageTimeout <= 0 {
		cfg.MessageTimeout = defaultMessageTimeout
	}
	sched := deps.Scheduler
	if sched == nil {
		sched = scheduler.NewScheduler(logger)
	}
	return &Coordinator{
		cfg:       cfg,
		store:     deps.Store,
		mailbox:   deps.Mailbox,
		archive:   deps.Archive,
		generator: deps.Generator,
		sched:     sched,
		incidents: deps.Incidents,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules the poll job. It returns ErrNoConfiguration unless an
// active configuration is saved. Calling Start again before Stop returns
// ErrAlreadyRunning and leaves the existing job alone.
func (c *Coordinator) Start(ctx context.Context) error {
	conf, err := c.store.GetConfiguration(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNoConfiguration
	case err != nil:
		return fmt.Errorf("failed to load configuration: %w", err)
	case !conf.IsActive:
		return ErrNoConfiguration
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.sched.Start()
	if err := c.sched.Schedule(pollJobName, c.cfg.Frequency, c.cfg.StartNow, func() { c.tick(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule polling: %w", err)
	}
	c.running = true
	c.cancel = cancel

	if _, err := c.store.UpdateSystemStatus(ctx, models.StatusUpdate{
		EmailMonitorActive:  models.Ptr(true),
		AutoResponderActive: models.Ptr(true),
	}); err != nil {
		c.logger.Warn("failed to record monitor start", "error", err)
	}

	c.logger.Info("email monitor started",
		"mailbox", c.mailbox.Name(),
		"frequency", c.cfg.Frequency.String(),
		"batch_size", c.cfg.BatchSize)
	return nil
}

// Stop cancels the running cycle, removes the poll job and waits for the
// in-flight cycle to return. A message already being answered is finished
// first. Stopping a stopped monitor only resets the
// status flags.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	wasRunning := c.running
	if c.running {
		c.running = false
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	if wasRunning {
		c.sched.Remove(pollJobName)

		done := make(chan struct{})
		go func() {
			c.inflight.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("waiting for poll cycle: %w", ctx.Err())
		}
	}

	if _, err := c.store.UpdateSystemStatus(ctx, models.StatusUpdate{
		EmailMonitorActive:  models.Ptr(false),
		AutoResponderActive: models.Ptr(false),
	}); err != nil {
		return fmt.Errorf("failed to record monitor stop: %w", err)
	}

	if wasRunning {
		c.logger.Info("email monitor stopped")
	}
	return nil
}

// Status reports whether polling is scheduled and how the last cycle went
func (c *Coordinator) Status() models.MonitorState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := models.MonitorState{IsRunning: c.running, LastError: c.lastError}
	if c.lastPollAt != nil {
		t := *c.lastPollAt
		st.LastPollAt = &t
	}
	return st
}

// Gateways are the connections a cycle works through
type Gateways struct {
	Mailbox   mailbox.Gateway
	Archive   archive.Gateway
	Generator generator.Generator
}

// SetGateways replaces the mailbox, archive and generator. It waits for a
// cycle in progress and returns ErrAlreadyRunning while polling is scheduled.
func (c *Coordinator) SetGateways(g Gateways) error {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyRunning
	}
	c.mailbox = g.Mailbox
	c.archive = g.Archive
	c.generator = g.Generator
	c.foldersReady = false
	return nil
}

// CompleteCase closes a case on operator request. Closing a completed case
// again succeeds.
func (c *Coordinator) CompleteCase(ctx context.Context, id string) (*models.Case, error) {
	cs, err := c.store.UpdateCase(ctx, id, models.CaseUpdate{Status: models.Ptr(models.StatusCompleted)})
	if err != nil {
		return nil, err
	}
	c.logger.Info("case completed", "case_number", cs.CaseNumber)

	if err := c.refreshCaseFigures(ctx); err != nil {
		c.logger.Warn("failed to refresh case figures", "error", err)
	}
	return cs, nil
}

// tick is the scheduled job body
func (c *Coordinator) tick(ctx context.Context) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	if err := c.RunCycle(ctx); err != nil {
		c.logger.Error("poll cycle failed", "error", err)
	}
}

func (c *Coordinator) recordIncident(in errorlog.Incident) {
	if c.incidents == nil {
		return
	}
	if in.Time.IsZero() {
		in.Time = c.now()
	}
	// the recorder logs its own failures
	_ = c.incidents.Record(in)
}
