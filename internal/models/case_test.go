package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to CaseStatus
		want     bool
	}{
		{StatusNew, StatusResponded, true},
		{StatusResponded, StatusFollowUpSent, true},
		{StatusFollowUpSent, StatusCompleted, true},
		{StatusNew, StatusFollowUpSent, false},
		{StatusResponded, StatusNew, false},
		{StatusNew, StatusError, true},
		{StatusResponded, StatusError, true},
		{StatusFollowUpSent, StatusError, false},
		{StatusError, StatusResponded, false},
		{StatusError, StatusCompleted, true},
		{StatusCompleted, StatusCompleted, true},
		{StatusCompleted, StatusResponded, false},
		{StatusNew, CaseStatus("archived"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestFollowUpDue(t *testing.T) {
	at := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	c := Case{Status: StatusResponded, FollowUpAt: &at}

	assert.False(t, c.FollowUpDue(at.Add(-time.Second)))
	assert.True(t, c.FollowUpDue(at))

	c.FollowUpSent = true
	assert.False(t, c.FollowUpDue(at.Add(time.Hour)))

	c = Case{Status: StatusCompleted, FollowUpAt: &at}
	assert.False(t, c.FollowUpDue(at.Add(time.Hour)))

	c = Case{Status: StatusResponded}
	assert.False(t, c.FollowUpDue(at))
}

func TestCaseUpdateApplyCopiesPointers(t *testing.T) {
	body := "reply"
	c := Case{Status: StatusNew}
	CaseUpdate{Status: Ptr(StatusResponded), ResponseBody: &body}.Apply(&c)
	body = "changed"

	assert.Equal(t, StatusResponded, c.Status)
	assert.Equal(t, "reply", *c.ResponseBody)
	assert.Nil(t, c.FollowUpAt)
}

func TestFormatCaseNumber(t *testing.T) {
	assert.Equal(t, "VE-2026-001", FormatCaseNumber(2026, 1))
	assert.Equal(t, "VE-2026-1234", FormatCaseNumber(2026, 1234))
}

func TestParseCaseNumber(t *testing.T) {
	year, seq, ok := ParseCaseNumber(FormatCaseNumber(2026, 1000))
	require.True(t, ok)
	assert.Equal(t, 2026, year)
	assert.Equal(t, 1000, seq)

	_, seq, ok = ParseCaseNumber("VE-2026-007")
	require.True(t, ok)
	assert.Equal(t, 7, seq)

	_, _, ok = ParseCaseNumber("CASE-1")
	assert.False(t, ok)
}

func TestDedupeKeywords(t *testing.T) {
	assert.Equal(t, []string{"engine fire", "engine failure"},
		DedupeKeywords([]string{"engine fire", "engine failure", "engine fire"}))
	assert.Empty(t, DedupeKeywords(nil))
}

func TestConfigurationRedactedAndMergeSecrets(t *testing.T) {
	c := Configuration{Email: "ops@example.com", Password: "pw", OpenAIAPIKey: "sk"}

	r := c.Redacted()
	assert.Equal(t, "********", r.Password)
	assert.Equal(t, "********", r.OpenAIAPIKey)
	assert.Empty(t, r.GraphClientSecret)
	assert.Equal(t, "pw", c.Password)

	r.Password = "new-pw"
	merged := r.MergeSecrets(c)
	assert.Equal(t, "new-pw", merged.Password)
	assert.Equal(t, "sk", merged.OpenAIAPIKey)
}
