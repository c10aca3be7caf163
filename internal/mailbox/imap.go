package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/ashish9731/email-responder/internal/credential"
	"github.com/ashish9731/email-responder/internal/oauth2"
	"github.com/ashish9731/email-responder/internal/types"
)

// IMAPConfig is the connection part of an IMAP mailbox
type IMAPConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	Folder   string
	TLS      types.TLSConfig
	Timeout  time.Duration
}

// IMAPMailbox reads over IMAP and sends through SMTP. Each call opens its
// own session, so a dropped connection never outlives one poll.
type IMAPMailbox struct {
	cfg    IMAPConfig
	source *credential.Source // nil means password login
	sender Sender
	logger *slog.Logger
}

// NewIMAPMailbox creates an IMAP mailbox. source enables XOAUTH2 login.
func NewIMAPMailbox(cfg IMAPConfig, source *credential.Source, sender Sender, logger *slog.Logger) *IMAPMailbox {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	return &IMAPMailbox{cfg: cfg, source: source, sender: sender, logger: logger}
}

func (m *IMAPMailbox) Name() string {
	return "imap"
}

// connect establishes a connection and logs in
func (m *IMAPMailbox) connect(ctx context.Context) (*client.Client, error) {
	server := fmt.Sprintf("%s:%d", m.cfg.Server, m.cfg.Port)
	tlsConfig := &tls.Config{
		ServerName:         m.cfg.Server,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: m.cfg.TLS.InsecureSkipVerify,
	}

	m.logger.Debug("connecting to IMAP server",
		"server", m.cfg.Server,
		"port", m.cfg.Port,
		"tls_enabled", m.cfg.TLS.Enabled,
		"username", m.cfg.Username,
	)

	var (
		c   *client.Client
		err error
	)
	switch {
	case m.cfg.Port == 143:
		// port 143 starts plain and upgrades with STARTTLS
		c, err = client.Dial(server)
		if err == nil && m.cfg.TLS.Enabled {
			if err = c.StartTLS(tlsConfig); err != nil {
				c.Logout()
				return nil, fmt.Errorf("%w: STARTTLS failed: %v", ErrUnavailable, err)
			}
		}
	case m.cfg.TLS.Enabled:
		c, err = client.DialTLS(server, tlsConfig)
	default:
		c, err = client.Dial(server)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to IMAP server: %v", ErrUnavailable, err)
	}

	if m.cfg.Timeout > 0 {
		c.Timeout = m.cfg.Timeout
	}

	if m.source != nil {
		token, err := m.source.Token()
		if err != nil {
			c.Logout()
			return nil, fmt.Errorf("%w: %v", ErrAuthExpired, err)
		}
		if err := c.Authenticate(oauth2.NewXOAUTH2Client(m.cfg.Username, token.AccessToken)); err != nil {
			c.Logout()
			return nil, fmt.Errorf("%w: XOAUTH2 login failed: %v", ErrAuthExpired, err)
		}
	} else if err := c.Login(m.cfg.Username, m.cfg.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("%w: IMAP login failed: %v", ErrNotConnected, err)
	}

	if ctx.Err() != nil {
		c.Logout()
		return nil, ctx.Err()
	}
	return c, nil
}

func (m *IMAPMailbox) ListUnread(ctx context.Context, max int) ([]RawMessage, error) {
	c, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	// read-only select so nothing we do here can change flags
	if _, err := c.Select(m.cfg.Folder, true); err != nil {
		return nil, fmt.Errorf("%w: failed to select %s: %v", ErrUnavailable, m.cfg.Folder, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to search unseen: %v", ErrUnavailable, err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	// UIDs grow with arrival, so the newest are the largest
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if max > 0 && len(uids) > max {
		uids = uids[:max]
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	fetched := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, fetched)
	}()

	var messages []RawMessage
	for msg := range fetched {
		literal := msg.GetBody(section)
		if literal == nil {
			m.logger.Warn("server returned no body", "uid", msg.Uid)
			continue
		}
		raw, err := io.ReadAll(literal)
		if err != nil {
			m.logger.Warn("failed to read message body", "uid", msg.Uid, "error", err)
			continue
		}
		parsed, err := ParseRFC5322(strconv.FormatUint(uint64(msg.Uid), 10), raw, m.logger)
		if err != nil {
			m.logger.Warn("skipping unparseable message", "uid", msg.Uid, "error", err)
			continue
		}
		messages = append(messages, parsed)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("%w: failed to fetch messages: %v", ErrUnavailable, err)
	}

	sort.Slice(messages, func(i, j int) bool {
		a, _ := strconv.ParseUint(messages[i].ID, 10, 32)
		b, _ := strconv.ParseUint(messages[j].ID, 10, 32)
		return a > b
	})
	return messages, nil
}

func (m *IMAPMailbox) MarkRead(ctx context.Context, id string) error {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: invalid IMAP uid %q", ErrRejected, id)
	}

	c, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Logout()

	if _, err := c.Select(m.cfg.Folder, false); err != nil {
		return fmt.Errorf("%w: failed to select %s: %v", ErrUnavailable, m.cfg.Folder, err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uint32(uid))
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.UidStore(seqSet, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("%w: failed to set \\Seen on %s: %v", ErrUnavailable, id, err)
	}
	return nil
}

func (m *IMAPMailbox) Send(ctx context.Context, msg OutgoingMessage) error {
	return m.sender.Send(ctx, msg)
}

func (m *IMAPMailbox) Refresh(ctx context.Context) error {
	if m.source == nil {
		return fmt.Errorf("%w: password login cannot be refreshed", ErrNotConnected)
	}
	if err := m.source.Refresh(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}
