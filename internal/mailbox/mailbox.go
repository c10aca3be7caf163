// Package mailbox reads unread messages from, and sends replies through, the
// configured mail provider.
package mailbox

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotConnected means the provider refused the credentials or cannot be reached with them
	ErrNotConnected = errors.New("mailbox not connected")
	// ErrAuthExpired means the access token was rejected and a refresh may help
	ErrAuthExpired = errors.New("mailbox authorization expired")
	// ErrUnavailable means a transient provider or network failure
	ErrUnavailable = errors.New("mailbox unavailable")
	// ErrRejected means the provider refused a well-authenticated request
	ErrRejected = errors.New("mailbox request rejected")
)

// RawMessage is an unread inbound message
type RawMessage struct {
	ID          string
	SenderEmail string
	SenderName  string
	Subject     string
	Body        string
	ReceivedAt  time.Time
}

// Attachment is a file sent with a reply
type Attachment struct {
	Name        string
	ContentType string
	Content     []byte
}

// OutgoingMessage is a reply or follow-up. Body is HTML.
type OutgoingMessage struct {
	To         string
	Subject    string
	Body       string
	Attachment *Attachment
}

// Gateway is the contract every mail provider implements
type Gateway interface {
	// ListUnread returns at most max unread messages, newest first. It never
	// marks anything read.
	ListUnread(ctx context.Context, max int) ([]RawMessage, error)
	Send(ctx context.Context, msg OutgoingMessage) error
	MarkRead(ctx context.Context, id string) error
	// Refresh renews the credential after ErrAuthExpired
	Refresh(ctx context.Context) error
	Name() string
}
