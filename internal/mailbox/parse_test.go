package mailbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainMessage = "From: \"Jane Captain\" <jane@example.com>\r\n" +
	"To: ops@example.com\r\n" +
	"Subject: Engine failure at sea\r\n" +
	"Date: Mon, 02 Jan 2026 15:04:05 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Our vessel engine stopped.\r\n"

const multipartMessage = "From: jane@example.com\r\n" +
	"Subject: Engine fire\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"plain part\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/html\r\n" +
	"\r\n" +
	"<p>html part</p>\r\n" +
	"--XYZ--\r\n"

func TestParseRFC5322(t *testing.T) {
	msg, err := ParseRFC5322("42", []byte(plainMessage), testLogger())
	require.NoError(t, err)
	assert.Equal(t, "42", msg.ID)
	assert.Equal(t, "jane@example.com", msg.SenderEmail)
	assert.Equal(t, "Jane Captain", msg.SenderName)
	assert.Equal(t, "Engine failure at sea", msg.Subject)
	assert.Equal(t, "Our vessel engine stopped.", msg.Body)
	assert.Equal(t, 2026, msg.ReceivedAt.Year())
}

func TestParsePrefersTextPart(t *testing.T) {
	msg, err := ParseRFC5322("7", []byte(multipartMessage), testLogger())
	require.NoError(t, err)
	assert.Equal(t, "plain part", msg.Body)
	assert.Equal(t, "jane@example.com", msg.SenderEmail)
}

func TestParseEmailAddress(t *testing.T) {
	name, addr := ParseEmailAddress(`"Jane" <jane@example.com>`)
	assert.Equal(t, "Jane", name)
	assert.Equal(t, "jane@example.com", addr)

	name, addr = ParseEmailAddress("Jane Q. <jane@example.com>")
	assert.Equal(t, "Jane Q.", name)
	assert.Equal(t, "jane@example.com", addr)

	name, addr = ParseEmailAddress("jane@example.com")
	assert.Empty(t, name)
	assert.Equal(t, "jane@example.com", addr)
}

func TestParseDateLenient(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"Mon, 2 Mar 2026 09:15:00 +0000", time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)},
		{"Mon, 2 Mar 2026 09:15:00 +0000 (UTC)", time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)},
		{"02/03/2026 09:15:00", time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)},
		{"2026-03-02T09:15:00Z", time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseDate(tt.in)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, ok := parseDate("sometime last week")
	assert.False(t, ok)
}

func TestHeaderDateFallsBackToReceived(t *testing.T) {
	headers := map[string]string{
		"Date":     "not a date",
		"Received": "from mx.example.com by mail.example.com; Tue, 3 Mar 2026 10:00:00 +0000",
	}
	got, ok := headerDate(func(name string) string { return headers[name] })
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC), got)

	_, ok = headerDate(func(string) string { return "" })
	assert.False(t, ok)
}
