package models

import "time"

// Keyword is an operator-configured trigger phrase
type Keyword struct {
	ID        string    `json:"id" db:"id"`
	Keyword   string    `json:"keyword" db:"keyword"`
	IsActive  bool      `json:"isActive" db:"is_active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// DefaultKeywords seeds a fresh store
var DefaultKeywords = []string{
	"engine failure",
	"engine damaged",
	"engine fire",
	"engine broken",
	"engine rusted",
	"engine malfunction",
	"engine issues",
	"vessel engine",
}
