package mailbox

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/knadh/go-pop3"

	"github.com/ashish9731/email-responder/internal/tracking"
	"github.com/ashish9731/email-responder/internal/types"
)

// POP3Config is the connection part of a POP3 mailbox
type POP3Config struct {
	Server   string
	Port     int
	Username string
	Password string
	TLS      types.TLSConfig
}

// ReadLedger remembers which messages were marked read. tracking.Manager
// implements it.
type ReadLedger interface {
	IsRead(messageID string) (bool, error)
	MarkRead(messageID string) error
}

// POP3Mailbox reads over POP3 and sends through SMTP. POP3 has no read flag,
// so unread means the UIDL is not in the ledger yet.
type POP3Mailbox struct {
	cfg    POP3Config
	pop    *pop3.Client
	ledger ReadLedger
	sender Sender
	logger *slog.Logger
}

// NewPOP3Mailbox creates a POP3 mailbox
func NewPOP3Mailbox(cfg POP3Config, ledger ReadLedger, sender Sender, logger *slog.Logger) *POP3Mailbox {
	return &POP3Mailbox{
		cfg: cfg,
		pop: pop3.New(pop3.Opt{
			Host:          cfg.Server,
			Port:          cfg.Port,
			TLSEnabled:    cfg.TLS.Enabled,
			TLSSkipVerify: cfg.TLS.InsecureSkipVerify,
		}),
		ledger: ledger,
		sender: sender,
		logger: logger,
	}
}

// NewPOP3LedgerFromConfig opens the read ledger for the configured POP3 account
func NewPOP3LedgerFromConfig(cfg *types.Config, logger *slog.Logger) (*tracking.Manager, error) {
	pop := cfg.Mailbox.POP3
	return tracking.NewManager(pop.LedgerType, pop.LedgerPath, "pop3", pop.Server, pop.Username, logger)
}

func (m *POP3Mailbox) Name() string {
	return "pop3"
}

func (m *POP3Mailbox) connect() (*pop3.Conn, error) {
	m.logger.Debug("connecting to POP3 server",
		"server", m.cfg.Server,
		"port", m.cfg.Port,
		"tls_enabled", m.cfg.TLS.Enabled,
		"username", m.cfg.Username,
	)

	conn, err := m.pop.NewConn()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect: %v", ErrUnavailable, err)
	}

	if err := conn.Auth(m.cfg.Username, m.cfg.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("%w: authentication failed: %v", ErrNotConnected, err)
	}
	return conn, nil
}

func (m *POP3Mailbox) ListUnread(ctx context.Context, max int) ([]RawMessage, error) {
	conn, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer conn.Quit()

	uidls, err := conn.Uidl(0)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list message ids: %v", ErrUnavailable, err)
	}

	var messages []RawMessage
	// the maildrop lists oldest first, walk it backwards for newest first
	for i := len(uidls) - 1; i >= 0; i-- {
		if max > 0 && len(messages) >= max {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry := uidls[i]
		read, err := m.ledger.IsRead(entry.UID)
		if err != nil {
			return nil, fmt.Errorf("checking read ledger: %w", err)
		}
		if read {
			continue
		}

		msg, err := conn.Retr(entry.ID)
		if err != nil {
			m.logger.Warn("failed to retrieve message", "uidl", entry.UID, "error", err)
			continue
		}
		var buf bytes.Buffer
		if err := msg.WriteTo(&buf); err != nil {
			m.logger.Warn("failed to read message", "uidl", entry.UID, "error", err)
			continue
		}

		parsed, err := ParseRFC5322(entry.UID, buf.Bytes(), m.logger)
		if err != nil {
			m.logger.Warn("skipping unparseable message", "uidl", entry.UID, "error", err)
			continue
		}
		messages = append(messages, parsed)
	}

	return messages, nil
}

func (m *POP3Mailbox) MarkRead(ctx context.Context, id string) error {
	if err := m.ledger.MarkRead(id); err != nil {
		return fmt.Errorf("marking %s read: %w", id, err)
	}
	return nil
}

func (m *POP3Mailbox) Send(ctx context.Context, msg OutgoingMessage) error {
	return m.sender.Send(ctx, msg)
}

func (m *POP3Mailbox) Refresh(ctx context.Context) error {
	return fmt.Errorf("%w: password login cannot be refreshed", ErrNotConnected)
}
