// Package storage persists cases, keywords, the operator configuration and
// the system status behind one interface with interchangeable backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashish9731/email-responder/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique field is already taken
	ErrDuplicate = errors.New("record already exists")
	// ErrInvalidTransition is returned when an update would move a case backwards
	ErrInvalidTransition = errors.New("invalid case status transition")
	// ErrInvalidKeyword is returned for blank keyword text
	ErrInvalidKeyword = errors.New("keyword must not be empty")
)

// Store is the persistence boundary. Every method is atomic for the single
// record it touches; nothing spans records.
type Store interface {
	CreateCase(ctx context.Context, nc models.NewCase) (*models.Case, error)
	GetCase(ctx context.Context, id string) (*models.Case, error)
	GetCaseByNumber(ctx context.Context, number string) (*models.Case, error)
	// ListCases returns cases newest first
	ListCases(ctx context.Context) ([]models.Case, error)
	UpdateCase(ctx context.Context, id string, u models.CaseUpdate) (*models.Case, error)

	AddKeyword(ctx context.Context, text string, active bool) (*models.Keyword, error)
	// ListKeywords returns keywords newest first
	ListKeywords(ctx context.Context) ([]models.Keyword, error)
	GetKeywordByText(ctx context.Context, text string) (*models.Keyword, error)
	UpdateKeyword(ctx context.Context, id string, active bool) (*models.Keyword, error)
	RemoveKeyword(ctx context.Context, id string) error
	GetActiveKeywordTexts(ctx context.Context) ([]string, error)

	// GetConfiguration returns ErrNotFound until one has been saved
	GetConfiguration(ctx context.Context) (*models.Configuration, error)
	SaveConfiguration(ctx context.Context, c models.Configuration) (*models.Configuration, error)

	// GetSystemStatus creates the status record on first access
	GetSystemStatus(ctx context.Context) (*models.SystemStatus, error)
	UpdateSystemStatus(ctx context.Context, u models.StatusUpdate) (*models.SystemStatus, error)

	Close() error
}

// newCaseRecord builds the case stored for nc. seq is the store-wide sequence
// number that makes the case number unique.
func newCaseRecord(nc models.NewCase, seq int, now time.Time) models.Case {
	return models.Case{
		ID:              uuid.New().String(),
		CaseNumber:      models.FormatCaseNumber(now.Year(), seq),
		SourceMessageID: nc.SourceMessageID,
		SenderEmail:     nc.SenderEmail,
		SenderName:      nc.SenderName,
		Subject:         nc.Subject,
		OriginalBody:    nc.OriginalBody,
		Keywords:        models.DedupeKeywords(nc.Keywords),
		Status:          models.StatusNew,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// applyCaseUpdate validates u against c and applies it
func applyCaseUpdate(c *models.Case, u models.CaseUpdate, now time.Time) error {
	if u.Status != nil {
		next := *u.Status
		if !next.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
		}
		if next != c.Status && !c.Status.CanTransition(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, next)
		}
	}
	u.Apply(c)
	c.UpdatedAt = now
	return nil
}

func newKeywordRecord(text string, active bool, now time.Time) (models.Keyword, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Keyword{}, ErrInvalidKeyword
	}
	return models.Keyword{
		ID:        uuid.New().String(),
		Keyword:   text,
		IsActive:  active,
		CreatedAt: now,
	}, nil
}

func sortCasesNewestFirst(cases []models.Case) {
	sort.SliceStable(cases, func(i, j int) bool {
		if cases[i].CreatedAt.Equal(cases[j].CreatedAt) {
			return caseNumberAfter(cases[i].CaseNumber, cases[j].CaseNumber)
		}
		return cases[i].CreatedAt.After(cases[j].CreatedAt)
	})
}

// caseNumberAfter orders case numbers by year and then numeric sequence, so
// VE-2026-1000 comes after VE-2026-999
func caseNumberAfter(a, b string) bool {
	ay, as, aok := models.ParseCaseNumber(a)
	by, bs, bok := models.ParseCaseNumber(b)
	if !aok || !bok {
		return a > b
	}
	if ay != by {
		return ay > by
	}
	return as > bs
}

func sortKeywordsNewestFirst(keywords []models.Keyword) {
	sort.SliceStable(keywords, func(i, j int) bool {
		return keywords[i].CreatedAt.After(keywords[j].CreatedAt)
	})
}

func now() time.Time {
	return time.Now().UTC()
}

// prepareConfiguration keeps the identity and creation time of an existing
// configuration across saves.
func prepareConfiguration(prev *models.Configuration, c models.Configuration) models.Configuration {
	if prev != nil {
		c.ID = prev.ID
		c.CreatedAt = prev.CreatedAt
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	return c
}
