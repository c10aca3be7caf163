package mailbox

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureTransport struct {
	from string
	to   []string
	msg  []byte
	err  error
}

func (c *captureTransport) Send(reversePath string, recipients []string, msg []byte) error {
	c.from, c.to, c.msg = reversePath, recipients, msg
	return c.err
}

func TestSMTPSenderBuildsMultipartWithAttachment(t *testing.T) {
	transport := &captureTransport{}
	s := NewSMTPSenderWithTransport("Ops", "ops@example.com", transport)

	err := s.Send(context.Background(), OutgoingMessage{
		To:      "captain@example.com",
		Subject: "Re: Engine failure - Case VE-2026-001",
		Body:    "<p>reply</p>",
		Attachment: &Attachment{
			Name:        "Checklist_VE-2026-001.txt",
			ContentType: "text/plain",
			Content:     []byte("1. Shut down"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", transport.from)
	assert.Equal(t, []string{"captain@example.com"}, transport.to)

	env, err := enmime.ReadEnvelope(bytes.NewReader(transport.msg))
	require.NoError(t, err)
	assert.Equal(t, "Re: Engine failure - Case VE-2026-001", env.GetHeader("Subject"))
	assert.Contains(t, env.HTML, "reply")
	require.Len(t, env.Attachments, 1)
	assert.Equal(t, "Checklist_VE-2026-001.txt", env.Attachments[0].FileName)
	assert.Equal(t, "1. Shut down", string(env.Attachments[0].Content))
}

func TestSMTPSenderFailureIsUnavailable(t *testing.T) {
	s := NewSMTPSenderWithTransport("", "ops@example.com", &captureTransport{err: errors.New("421 try later")})
	err := s.Send(context.Background(), OutgoingMessage{To: "a@example.com", Subject: "s", Body: "b"})
	assert.ErrorIs(t, err, ErrUnavailable)
}
