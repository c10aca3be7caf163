package errorlog

import (
	"time"
)

// Incident is a failure recorded while handling mail or cases
type Incident struct {
	ID         string    `json:"id"`
	ConfigID   string    `json:"config_id"`
	CaseNumber string    `json:"case_number,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	Category   string    `json:"category"`
	Message    string    `json:"message"`
	Time       time.Time `json:"time"`
}

// Filter narrows GetIncidents. Zero fields match everything.
type Filter struct {
	CaseNumber string
	Category   string
	Since      time.Time
	Limit      int
}

func (f Filter) match(in Incident) bool {
	if f.CaseNumber != "" && in.CaseNumber != f.CaseNumber {
		return false
	}
	if f.Category != "" && in.Category != f.Category {
		return false
	}
	if !f.Since.IsZero() && in.Time.Before(f.Since) {
		return false
	}
	return true
}

// Logger stores incidents
type Logger interface {
	Record(in Incident) error
	// GetIncidents returns matching incidents, newest first
	GetIncidents(filter Filter) ([]Incident, error)
	// CleanupOld removes incidents older than the retention period
	CleanupOld() error
	Close() error
}
