package mailbox

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/DusanKasan/parsemail"
	"github.com/jhillyerd/enmime"
)

// ParseRFC5322 turns a raw message into a RawMessage. enmime handles
// malformed MIME more leniently; parsemail is tried when it fails outright.
func ParseRFC5322(id string, raw []byte, logger *slog.Logger) (RawMessage, error) {
	msg, err := parseEnmime(raw)
	if err == nil {
		msg.ID = id
		return msg, nil
	}
	logger.Debug("enmime parse failed, trying parsemail", "message_id", id, "error", err)

	msg, perr := parseParsemail(raw)
	if perr != nil {
		return RawMessage{}, fmt.Errorf("failed to parse message %s: %w", id, err)
	}
	msg.ID = id
	return msg, nil
}

func parseEnmime(raw []byte) (RawMessage, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return RawMessage{}, err
	}

	var msg RawMessage
	msg.Subject = env.GetHeader("Subject")

	if from, err := env.AddressList("From"); err == nil && len(from) > 0 {
		msg.SenderName, msg.SenderEmail = from[0].Name, from[0].Address
	} else {
		msg.SenderName, msg.SenderEmail = ParseEmailAddress(env.GetHeader("From"))
	}

	if date, ok := headerDate(env.GetHeader); ok {
		msg.ReceivedAt = date
	} else {
		msg.ReceivedAt = time.Now().UTC()
	}

	msg.Body = strings.TrimSpace(env.Text)
	if msg.Body == "" {
		msg.Body = strings.TrimSpace(env.HTML)
	}
	return msg, nil
}

func parseParsemail(raw []byte) (RawMessage, error) {
	email, err := parsemail.Parse(bytes.NewReader(raw))
	if err != nil {
		return RawMessage{}, err
	}

	msg := RawMessage{
		Subject:    email.Subject,
		ReceivedAt: email.Date.UTC(),
		Body:       strings.TrimSpace(email.TextBody),
	}
	if msg.Body == "" {
		msg.Body = strings.TrimSpace(email.HTMLBody)
	}
	if len(email.From) > 0 {
		msg.SenderName, msg.SenderEmail = email.From[0].Name, email.From[0].Address
	}
	if email.Date.IsZero() {
		if date, ok := headerDate(email.Header.Get); ok {
			msg.ReceivedAt = date
		} else {
			msg.ReceivedAt = time.Now().UTC()
		}
	}
	return msg, nil
}

// ParseEmailAddress splits "Name <addr>" into its parts, tolerating input
// net/mail rejects
func ParseEmailAddress(s string) (name, address string) {
	if s == "" {
		return "", ""
	}

	addr, err := mail.ParseAddress(s)
	if err == nil {
		return addr.Name, addr.Address
	}

	if start := strings.Index(s, "<"); start != -1 {
		if end := strings.Index(s[start:], ">"); end != -1 {
			return strings.Trim(strings.TrimSpace(s[:start]), `"`), s[start+1 : start+end]
		}
	}
	return "", strings.TrimSpace(s)
}
