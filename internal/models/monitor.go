package models

import "time"

// MonitorState is the coordinator's own view of itself
type MonitorState struct {
	IsRunning  bool       `json:"isRunning"`
	LastPollAt *time.Time `json:"lastPollAt"`
	LastError  string     `json:"lastError,omitempty"`
}
