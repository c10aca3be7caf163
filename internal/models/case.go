package models

import (
	"fmt"
	"time"
)

// CaseStatus is the lifecycle state of an email case
type CaseStatus string

const (
	StatusNew          CaseStatus = "new"
	StatusResponded    CaseStatus = "responded"
	StatusFollowUpSent CaseStatus = "follow_up_sent"
	StatusCompleted    CaseStatus = "completed"
	StatusError        CaseStatus = "error"
)

// FollowUpDelay is how long after a reply the follow-up becomes due
const FollowUpDelay = 2 * time.Hour

// rank orders the forward path. error and completed are terminal.
var rank = map[CaseStatus]int{
	StatusNew:          0,
	StatusResponded:    1,
	StatusFollowUpSent: 2,
	StatusCompleted:    3,
}

// Valid reports whether s is a known status
func (s CaseStatus) Valid() bool {
	if s == StatusError {
		return true
	}
	_, ok := rank[s]
	return ok
}

// Terminal reports whether no automatic transition leaves s
func (s CaseStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CanTransition reports whether a case may move from s to next.
//
// The forward path never skips a state. error is reachable from new and
// responded only; completed is reachable from anywhere (operator close) and
// completed -> completed is accepted so closing twice is idempotent.
func (s CaseStatus) CanTransition(next CaseStatus) bool {
	switch {
	case next == StatusCompleted:
		return true
	case s.Terminal():
		return false
	case next == StatusError:
		return s == StatusNew || s == StatusResponded
	}
	from, ok := rank[s]
	if !ok {
		return false
	}
	to, ok := rank[next]
	if !ok {
		return false
	}
	return to == from+1
}

// Case is one matched inbound message and its response lifecycle
type Case struct {
	ID              string     `json:"id" db:"id"`
	CaseNumber      string     `json:"caseNumber" db:"case_number"`
	SourceMessageID string     `json:"sourceMessageId,omitempty" db:"source_message_id"`
	SenderEmail     string     `json:"senderEmail" db:"sender_email"`
	SenderName      string     `json:"senderName,omitempty" db:"sender_name"`
	Subject         string     `json:"subject" db:"subject"`
	OriginalBody    string     `json:"originalBody" db:"original_body"`
	Keywords        []string   `json:"keywords" db:"-"`
	Status          CaseStatus `json:"status" db:"status"`
	ResponseBody    *string    `json:"responseBody" db:"response_body"`
	AttachmentURL   *string    `json:"attachmentUrl" db:"attachment_url"`
	FollowUpSent    bool       `json:"followUpSent" db:"follow_up_sent"`
	FollowUpAt      *time.Time `json:"followUpAt" db:"follow_up_at"`
	LastError       string     `json:"lastError,omitempty" db:"last_error"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" db:"updated_at"`
}

// FollowUpDue reports whether the follow-up for c should be sent at now
func (c *Case) FollowUpDue(now time.Time) bool {
	return c.Status == StatusResponded &&
		!c.FollowUpSent &&
		c.FollowUpAt != nil &&
		!now.Before(*c.FollowUpAt)
}

// NewCase holds the caller-supplied fields of a case about to be created
type NewCase struct {
	SourceMessageID string
	SenderEmail     string
	SenderName      string
	Subject         string
	OriginalBody    string
	Keywords        []string
}

// CaseUpdate is a partial update. Nil fields are left untouched.
type CaseUpdate struct {
	Status        *CaseStatus
	ResponseBody  *string
	AttachmentURL *string
	FollowUpSent  *bool
	FollowUpAt    *time.Time
	LastError     *string
}

// Apply copies the set fields of u onto c. It does not touch UpdatedAt.
func (u CaseUpdate) Apply(c *Case) {
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.ResponseBody != nil {
		v := *u.ResponseBody
		c.ResponseBody = &v
	}
	if u.AttachmentURL != nil {
		v := *u.AttachmentURL
		c.AttachmentURL = &v
	}
	if u.FollowUpSent != nil {
		c.FollowUpSent = *u.FollowUpSent
	}
	if u.FollowUpAt != nil {
		v := *u.FollowUpAt
		c.FollowUpAt = &v
	}
	if u.LastError != nil {
		c.LastError = *u.LastError
	}
}

// FormatCaseNumber renders the human-facing case number for the seq-th case of year
func FormatCaseNumber(year, seq int) string {
	return fmt.Sprintf("VE-%d-%03d", year, seq)
}

// ParseCaseNumber splits a number made by FormatCaseNumber into its year and
// sequence
func ParseCaseNumber(number string) (year, seq int, ok bool) {
	if _, err := fmt.Sscanf(number, "VE-%d-%d", &year, &seq); err != nil {
		return 0, 0, false
	}
	return year, seq, true
}

// DedupeKeywords removes exact duplicates while keeping first-seen order
func DedupeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
