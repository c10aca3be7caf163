package mailbox

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/jhillyerd/enmime"
)

// Sender delivers outgoing mail for providers that cannot send themselves
type Sender interface {
	Send(ctx context.Context, msg OutgoingMessage) error
}

// SMTPSender builds MIME messages with enmime and submits them over SMTP
type SMTPSender struct {
	fromName    string
	fromAddress string
	transport   enmime.Sender
}

// NewSMTPSender creates a sender for server:port. Empty username disables AUTH.
func NewSMTPSender(server string, port int, username, password, fromName, fromAddress string) *SMTPSender {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, server)
	}
	return &SMTPSender{
		fromName:    fromName,
		fromAddress: fromAddress,
		transport:   enmime.NewSMTP(fmt.Sprintf("%s:%d", server, port), auth),
	}
}

// NewSMTPSenderWithTransport is NewSMTPSender over an arbitrary enmime transport
func NewSMTPSenderWithTransport(fromName, fromAddress string, transport enmime.Sender) *SMTPSender {
	return &SMTPSender{fromName: fromName, fromAddress: fromAddress, transport: transport}
}

// Build renders msg as a MIME builder ready to send
func (s *SMTPSender) Build(msg OutgoingMessage) enmime.MailBuilder {
	b := enmime.Builder().
		From(s.fromName, s.fromAddress).
		To("", msg.To).
		Subject(msg.Subject).
		HTML([]byte(msg.Body))
	if msg.Attachment != nil {
		b = b.AddAttachment(msg.Attachment.Content, msg.Attachment.ContentType, msg.Attachment.Name)
	}
	return b
}

func (s *SMTPSender) Send(ctx context.Context, msg OutgoingMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.Build(msg).Send(s.transport); err != nil {
		return fmt.Errorf("%w: smtp send to %s: %v", ErrUnavailable, msg.To, err)
	}
	return nil
}
