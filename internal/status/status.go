// Package status aggregates read-only dashboard figures from the store.
package status

import (
	"context"
	"fmt"
	"time"

	"github.com/ashish9731/email-responder/internal/models"
	"github.com/ashish9731/email-responder/internal/storage"
)

// Stats summarises the case table
type Stats struct {
	Total            int    `json:"total"`
	Active           int    `json:"active"`
	Completed        int    `json:"completed"`
	Errored          int    `json:"errored"`
	ResponseRate     string `json:"responseRate"`
	PendingFollowUps int    `json:"pendingFollowUps"`
}

// ComputeStats counts cases at now. Active excludes completed and errored
// cases; the response rate is the share of cases that got a reply.
func ComputeStats(cases []models.Case, now time.Time) Stats {
	var s Stats
	responded := 0
	for i := range cases {
		c := &cases[i]
		s.Total++
		switch c.Status {
		case models.StatusCompleted:
			s.Completed++
		case models.StatusError:
			s.Errored++
		default:
			s.Active++
		}
		switch c.Status {
		case models.StatusResponded, models.StatusFollowUpSent, models.StatusCompleted:
			responded++
		}
		if c.FollowUpDue(now) {
			s.PendingFollowUps++
		}
	}
	s.ResponseRate = FormatRate(responded, s.Total)
	return s
}

// FormatRate renders part/total as a percentage with one decimal, "0%" when
// there is nothing to count
func FormatRate(part, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)*100/float64(total))
}

// MonitorStater reports the state of the case coordinator
type MonitorStater interface {
	Status() models.MonitorState
}

// Overview is everything the dashboard header shows
type Overview struct {
	System  models.SystemStatus `json:"system"`
	Monitor models.MonitorState `json:"monitor"`
	Stats   Stats               `json:"stats"`
}

// Facade answers dashboard queries
type Facade struct {
	store   storage.Store
	monitor MonitorStater
	now     func() time.Time
}

// NewFacade creates a facade. monitor may be nil when no coordinator runs in
// this process.
func NewFacade(store storage.Store, monitor MonitorStater) *Facade {
	return &Facade{store: store, monitor: monitor, now: time.Now}
}

func (f *Facade) Stats(ctx context.Context) (Stats, error) {
	cases, err := f.store.ListCases(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to list cases: %w", err)
	}
	return ComputeStats(cases, f.now().UTC()), nil
}

func (f *Facade) Overview(ctx context.Context) (Overview, error) {
	sys, err := f.store.GetSystemStatus(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("failed to load system status: %w", err)
	}
	stats, err := f.Stats(ctx)
	if err != nil {
		return Overview{}, err
	}

	ov := Overview{System: *sys, Stats: stats}
	if f.monitor != nil {
		ov.Monitor = f.monitor.Status()
	}
	return ov, nil
}
