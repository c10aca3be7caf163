package mailbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ashish9731/email-responder/internal/credential"
	"github.com/ashish9731/email-responder/internal/types"
)

// New creates the gateway selected by mailbox.provider. source is required
// for graph and for imap with oauth2; it may be nil otherwise. The returned
// closer releases backend resources such as the POP3 ledger.
func New(ctx context.Context, cfg *types.Config, source *credential.Source, logger *slog.Logger) (Gateway, io.Closer, error) {
	timeout := time.Duration(cfg.Mailbox.DefaultTimeout) * time.Second
	logger = logger.With("mailbox", cfg.Mailbox.Provider)

	switch cfg.Mailbox.Provider {
	case "graph":
		if source == nil {
			return nil, nil, fmt.Errorf("graph mailbox requires a credential")
		}
		return NewGraphMailbox(ctx, cfg.Graph.BaseURL, cfg.Graph.UserID, source, timeout, logger), nopCloser{}, nil

	case "imap":
		imap := cfg.Mailbox.IMAP
		var login *credential.Source
		if imap.OAuth2 {
			if source == nil {
				return nil, nil, fmt.Errorf("imap oauth2 requires a credential")
			}
			login = source
		}
		gw := NewIMAPMailbox(IMAPConfig{
			Server:   imap.Server,
			Port:     imap.Port,
			Username: imap.Username,
			Password: imap.Password,
			Folder:   imap.Folder,
			TLS:      imap.TLS,
			Timeout:  timeout,
		}, login, smtpSender(cfg), logger)
		return gw, nopCloser{}, nil

	case "pop3":
		ledger, err := NewPOP3LedgerFromConfig(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		pop := cfg.Mailbox.POP3
		gw := NewPOP3Mailbox(POP3Config{
			Server:   pop.Server,
			Port:     pop.Port,
			Username: pop.Username,
			Password: pop.Password,
			TLS:      pop.TLS,
		}, ledger, smtpSender(cfg), logger)
		return gw, ledger, nil

	default:
		return nil, nil, fmt.Errorf("unsupported mailbox provider: %s", cfg.Mailbox.Provider)
	}
}

func smtpSender(cfg *types.Config) *SMTPSender {
	s := cfg.Mailbox.SMTP
	return NewSMTPSender(s.Server, s.Port, s.Username, s.Password, cfg.Mailbox.DisplayName, cfg.Mailbox.Address)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
