package mailbox

import (
	"net/mail"
	"strings"
	"time"
)

// dateHeaders are consulted in order when Date is missing or unreadable
var dateHeaders = []string{
	"Date",
	"Resent-Date",
	"Delivery-Date",
	"X-Original-Date",
	"Received",
}

// dateLayouts cover what mail.ParseDate rejects but real clients still send
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05",
	"Mon, 02 Jan 06 15:04:05 -0700",
	"Mon Jan 2 15:04:05 2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02-01-2006 15:04:05",
	"02.01.2006 15:04:05",
}

// headerDate returns the first readable date among the date headers. get
// looks up a header by name.
func headerDate(get func(string) string) (time.Time, bool) {
	for _, name := range dateHeaders {
		v := get(name)
		if v == "" {
			continue
		}
		// Received carries its timestamp after the last semicolon
		if name == "Received" {
			if i := strings.LastIndex(v, ";"); i != -1 {
				v = v[i+1:]
			}
		}
		if t, ok := parseDate(v); ok {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := mail.ParseDate(s); err == nil {
		return t, true
	}

	// drop a trailing zone comment such as "(UTC)"
	if i := strings.Index(s, "("); i > 0 {
		s = strings.TrimSpace(s[:i])
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
