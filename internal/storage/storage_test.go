package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashish9731/email-responder/internal/models"
)

// backends returns a constructor per backend under test. Redis only runs when
// RESPONDER_TEST_REDIS_URL points at a disposable server.
func backends(t *testing.T) map[string]func(t *testing.T) Store {
	b := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
			require.NoError(t, err)
			return s
		},
	}
	if url := os.Getenv("RESPONDER_TEST_REDIS_URL"); url != "" {
		b["redis"] = func(t *testing.T) Store {
			s, err := NewRedisStore(context.Background(), url)
			require.NoError(t, err)
			require.NoError(t, s.client.FlushDB(context.Background()).Err())
			return s
		}
	}
	return b
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { s.Close() })
			fn(t, s)
		})
	}
}

func newCase(sender string) models.NewCase {
	return models.NewCase{
		SourceMessageID: "msg-" + sender,
		SenderEmail:     sender,
		Subject:         "Engine failure on vessel",
		OriginalBody:    "The engine failure happened at sea",
		Keywords:        []string{"engine failure", "engine failure"},
	}
}

func TestCaseLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		c, err := s.CreateCase(ctx, newCase("a@example.com"))
		require.NoError(t, err)
		assert.NotEmpty(t, c.ID)
		assert.Equal(t, models.StatusNew, c.Status)
		assert.Nil(t, c.ResponseBody)
		assert.Equal(t, []string{"engine failure"}, c.Keywords)
		assert.Regexp(t, `^VE-\d{4}-\d{3}$`, c.CaseNumber)

		got, err := s.GetCase(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.CaseNumber, got.CaseNumber)
		assert.Equal(t, "msg-a@example.com", got.SourceMessageID)

		byNumber, err := s.GetCaseByNumber(ctx, c.CaseNumber)
		require.NoError(t, err)
		assert.Equal(t, c.ID, byNumber.ID)

		followUp := time.Now().UTC().Add(models.FollowUpDelay).Truncate(time.Second)
		updated, err := s.UpdateCase(ctx, c.ID, models.CaseUpdate{
			Status:        models.Ptr(models.StatusResponded),
			ResponseBody:  models.Ptr("reply"),
			AttachmentURL: models.Ptr("file:///checklist.txt"),
			FollowUpAt:    &followUp,
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusResponded, updated.Status)
		require.NotNil(t, updated.ResponseBody)
		assert.Equal(t, "reply", *updated.ResponseBody)
		assert.False(t, updated.UpdatedAt.Before(c.UpdatedAt))

		reread, err := s.GetCase(ctx, c.ID)
		require.NoError(t, err)
		require.NotNil(t, reread.FollowUpAt)
		assert.True(t, followUp.Equal(*reread.FollowUpAt))
		require.NotNil(t, reread.AttachmentURL)
		assert.Equal(t, "file:///checklist.txt", *reread.AttachmentURL)

		_, err = s.UpdateCase(ctx, c.ID, models.CaseUpdate{Status: models.Ptr(models.StatusNew)})
		assert.ErrorIs(t, err, ErrInvalidTransition)

		_, err = s.UpdateCase(ctx, "missing", models.CaseUpdate{})
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.GetCase(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCaseNumbersUnique(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		const n = 20
		numbers := make(chan string, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c, err := s.CreateCase(ctx, newCase("x@example.com"))
				if assert.NoError(t, err) {
					numbers <- c.CaseNumber
				}
			}()
		}
		wg.Wait()
		close(numbers)

		seen := map[string]bool{}
		for num := range numbers {
			assert.False(t, seen[num], "duplicate case number %s", num)
			seen[num] = true
		}
		assert.Len(t, seen, n)

		cases, err := s.ListCases(ctx)
		require.NoError(t, err)
		assert.Len(t, cases, n)
	})
}

func TestListCasesNewestFirst(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		first, err := s.CreateCase(ctx, newCase("first@example.com"))
		require.NoError(t, err)
		second, err := s.CreateCase(ctx, newCase("second@example.com"))
		require.NoError(t, err)

		cases, err := s.ListCases(ctx)
		require.NoError(t, err)
		require.Len(t, cases, 2)
		assert.Equal(t, second.ID, cases[0].ID)
		assert.Equal(t, first.ID, cases[1].ID)
	})
}

func TestKeywords(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		k, err := s.AddKeyword(ctx, "  engine fire ", true)
		require.NoError(t, err)
		assert.Equal(t, "engine fire", k.Keyword)

		_, err = s.AddKeyword(ctx, "engine fire", false)
		assert.ErrorIs(t, err, ErrDuplicate)

		_, err = s.AddKeyword(ctx, "   ", true)
		assert.ErrorIs(t, err, ErrInvalidKeyword)

		other, err := s.AddKeyword(ctx, "engine rusted", false)
		require.NoError(t, err)

		byText, err := s.GetKeywordByText(ctx, "engine fire")
		require.NoError(t, err)
		assert.Equal(t, k.ID, byText.ID)

		active, err := s.GetActiveKeywordTexts(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"engine fire"}, active)

		toggled, err := s.UpdateKeyword(ctx, other.ID, true)
		require.NoError(t, err)
		assert.True(t, toggled.IsActive)

		active, err = s.GetActiveKeywordTexts(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"engine fire", "engine rusted"}, active)

		require.NoError(t, s.RemoveKeyword(ctx, k.ID))
		assert.ErrorIs(t, s.RemoveKeyword(ctx, k.ID), ErrNotFound)

		_, err = s.GetKeywordByText(ctx, "engine fire")
		assert.ErrorIs(t, err, ErrNotFound)

		// removed text can be added again
		_, err = s.AddKeyword(ctx, "engine fire", true)
		assert.NoError(t, err)

		_, err = s.UpdateKeyword(ctx, "missing", true)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestConfigurationAndStatus(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.GetConfiguration(ctx)
		assert.ErrorIs(t, err, ErrNotFound)

		saved, err := s.SaveConfiguration(ctx, models.Configuration{
			Email:    "ops@example.com",
			IMAPPort: 993,
			IsActive: true,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)

		resaved, err := s.SaveConfiguration(ctx, models.Configuration{Email: "new@example.com", IsActive: true})
		require.NoError(t, err)
		assert.Equal(t, saved.ID, resaved.ID)

		cfg, err := s.GetConfiguration(ctx)
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", cfg.Email)

		st, err := s.GetSystemStatus(ctx)
		require.NoError(t, err)
		assert.False(t, st.EmailMonitorActive)
		assert.Equal(t, "0%", st.ResponseRate)

		checked := time.Now().UTC().Truncate(time.Second)
		st, err = s.UpdateSystemStatus(ctx, models.StatusUpdate{
			EmailMonitorActive:   models.Ptr(true),
			LastEmailCheck:       &checked,
			EmailsProcessedDelta: 3,
		})
		require.NoError(t, err)
		assert.True(t, st.EmailMonitorActive)

		_, err = s.UpdateSystemStatus(ctx, models.StatusUpdate{EmailsProcessedDelta: 2})
		require.NoError(t, err)

		st, err = s.GetSystemStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, st.EmailsProcessed)
		assert.True(t, st.EmailMonitorActive)
		require.NotNil(t, st.LastEmailCheck)
		assert.True(t, checked.Equal(*st.LastEmailCheck))
	})
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	c, err := s.CreateCase(ctx, newCase("a@example.com"))
	require.NoError(t, err)
	_, err = s.AddKeyword(ctx, "engine fire", true)
	require.NoError(t, err)

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)

	got, err := reopened.GetCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.CaseNumber, got.CaseNumber)

	next, err := reopened.CreateCase(ctx, newCase("b@example.com"))
	require.NoError(t, err)
	assert.NotEqual(t, c.CaseNumber, next.CaseNumber)

	texts, err := reopened.GetActiveKeywordTexts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"engine fire"}, texts)
}

func TestSeedKeywords(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	added, err := SeedKeywords(ctx, s, []string{"engine fire", "engine fire", "", "vessel engine"})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = SeedKeywords(ctx, s, []string{"engine fire"})
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestSortCasesTieBreaksOnSequence(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cases := []models.Case{
		{CaseNumber: "VE-2026-999", CreatedAt: at},
		{CaseNumber: "VE-2026-1000", CreatedAt: at},
		{CaseNumber: "VE-2025-1001", CreatedAt: at},
		{CaseNumber: "VE-2026-002", CreatedAt: at.Add(-time.Hour)},
	}

	sortCasesNewestFirst(cases)

	var numbers []string
	for _, c := range cases {
		numbers = append(numbers, c.CaseNumber)
	}
	assert.Equal(t, []string{"VE-2026-1000", "VE-2026-999", "VE-2025-1001", "VE-2026-002"}, numbers)
}
