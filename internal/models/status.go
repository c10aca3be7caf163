package models

import "time"

// SystemStatus is the process-wide operational state shown on the dashboard
type SystemStatus struct {
	EmailMonitorActive  bool       `json:"emailMonitorActive" db:"email_monitor_active"`
	AutoResponderActive bool       `json:"autoResponderActive" db:"auto_responder_active"`
	OutlookConnected    bool       `json:"outlookConnected" db:"outlook_connected"`
	OneDriveConnected   bool       `json:"onedriveConnected" db:"onedrive_connected"`
	LastEmailCheck      *time.Time `json:"lastEmailCheck" db:"last_email_check"`
	EmailsProcessed     int        `json:"emailsProcessed" db:"emails_processed"`
	ActiveCases         int        `json:"activeCases" db:"active_cases"`
	ResponseRate        string     `json:"responseRate" db:"response_rate"`
	LastError           string     `json:"lastError,omitempty" db:"last_error"`
	LastUpdated         time.Time  `json:"lastUpdated" db:"last_updated"`
}

// StatusUpdate is a partial update of SystemStatus. Nil fields are left untouched.
type StatusUpdate struct {
	EmailMonitorActive  *bool
	AutoResponderActive *bool
	OutlookConnected    *bool
	OneDriveConnected   *bool
	LastEmailCheck      *time.Time
	// EmailsProcessedDelta is added to the counter
	EmailsProcessedDelta int
	ActiveCases          *int
	ResponseRate         *string
	LastError            *string
}

// Apply copies the set fields of u onto s. It does not touch LastUpdated.
func (u StatusUpdate) Apply(s *SystemStatus) {
	if u.EmailMonitorActive != nil {
		s.EmailMonitorActive = *u.EmailMonitorActive
	}
	if u.AutoResponderActive != nil {
		s.AutoResponderActive = *u.AutoResponderActive
	}
	if u.OutlookConnected != nil {
		s.OutlookConnected = *u.OutlookConnected
	}
	if u.OneDriveConnected != nil {
		s.OneDriveConnected = *u.OneDriveConnected
	}
	if u.LastEmailCheck != nil {
		v := *u.LastEmailCheck
		s.LastEmailCheck = &v
	}
	s.EmailsProcessed += u.EmailsProcessedDelta
	if u.ActiveCases != nil {
		s.ActiveCases = *u.ActiveCases
	}
	if u.ResponseRate != nil {
		s.ResponseRate = *u.ResponseRate
	}
	if u.LastError != nil {
		s.LastError = *u.LastError
	}
}

// DefaultSystemStatus is the state of a store that has never been updated
func DefaultSystemStatus() SystemStatus {
	return SystemStatus{ResponseRate: "0%"}
}
