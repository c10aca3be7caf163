package monitor

import (
	"context"
	"errors"

	"github.com/ashish9731/email-responder/internal/archive"
	"github.com/ashish9731/email-responder/internal/mailbox"
	"github.com/ashish9731/email-responder/internal/storage"
)

var (
	ErrAlreadyRunning  = errors.New("email monitor is already running")
	ErrCycleInProgress = errors.New("a poll cycle is already running")
	ErrNoConfiguration = errors.New("no active mail configuration saved")
)

// Category is the operator-facing classification of a failure
type Category string

const (
	CategoryNotConnected      Category = "not_connected"
	CategoryAuthExpired       Category = "auth_expired"
	CategoryUnavailable       Category = "unavailable"
	CategoryGenerationFailure Category = "generation_failure"
	CategoryArchiveFailure    Category = "archive_failure"
	CategorySendFailure       Category = "send_failure"
	CategoryNotFound          Category = "not_found"
	CategoryConflict          Category = "conflict"
	CategoryInvalid           Category = "invalid"
	CategoryCanceled          Category = "canceled"
	CategoryInternal          Category = "internal"
)

var descriptions = map[Category]string{
	CategoryNotConnected:      "The mailbox is not connected. Check the mail account settings and credentials.",
	CategoryAuthExpired:       "The mailbox credentials have expired and could not be refreshed.",
	CategoryUnavailable:       "A remote service is temporarily unavailable. The next cycle will retry.",
	CategoryGenerationFailure: "Text generation failed and the standard text was used instead.",
	CategoryArchiveFailure:    "The artifact could not be archived.",
	CategorySendFailure:       "The message could not be sent.",
	CategoryNotFound:          "The requested record does not exist.",
	CategoryConflict:          "The record already exists.",
	CategoryInvalid:           "The request is not valid.",
	CategoryCanceled:          "The operation was canceled.",
	CategoryInternal:          "An internal error occurred.",
}

// Describe returns a human readable explanation of the category
func (c Category) Describe() string {
	if d, ok := descriptions[c]; ok {
		return d
	}
	return descriptions[CategoryInternal]
}

// describe is the operator-facing text for err. Raw error text stays in the
// logs.
func describe(err error) string {
	if err == nil {
		return ""
	}
	return Categorize(err).Describe()
}

// Categorize maps an error from any gateway onto the failure taxonomy
func Categorize(err error) Category {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CategoryCanceled
	case errors.Is(err, mailbox.ErrNotConnected), errors.Is(err, ErrNoConfiguration):
		return CategoryNotConnected
	case errors.Is(err, mailbox.ErrAuthExpired):
		return CategoryAuthExpired
	case errors.Is(err, mailbox.ErrUnavailable):
		return CategoryUnavailable
	case errors.Is(err, mailbox.ErrRejected):
		return CategorySendFailure
	case errors.Is(err, storage.ErrNotFound):
		return CategoryNotFound
	case errors.Is(err, storage.ErrDuplicate), errors.Is(err, ErrAlreadyRunning), errors.Is(err, ErrCycleInProgress):
		return CategoryConflict
	case errors.Is(err, storage.ErrInvalidTransition), errors.Is(err, storage.ErrInvalidKeyword), errors.Is(err, archive.ErrUnknownKind):
		return CategoryInvalid
	default:
		return CategoryInternal
	}
}
