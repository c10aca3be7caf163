package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ashish9731/email-responder/internal/archive"
	"github.com/ashish9731/email-responder/internal/credential"
	"github.com/ashish9731/email-responder/internal/generator"
	"github.com/ashish9731/email-responder/internal/mailbox"
	"github.com/ashish9731/email-responder/internal/models"
	"github.com/ashish9731/email-responder/internal/monitor"
	"github.com/ashish9731/email-responder/internal/storage"
	"github.com/ashish9731/email-responder/internal/types"
)

// connection is one set of gateways built from a configuration
type connection struct {
	source   *credential.Source
	gateways monitor.Gateways
	closer   io.Closer
	stop     context.CancelFunc
}

func (c *connection) Close() error {
	if c.stop != nil {
		c.stop()
	}
	return c.closer.Close()
}

// connect resolves the credential and builds the mailbox, archive and
// generator named by cfg
func (a *App) connect(ctx context.Context, cfg *types.Config) (*connection, error) {
	conn := &connection{}
	if credential.Needed(cfg) {
		cred, err := credential.FromConfig(cfg, credential.ScopesFor(cfg))
		if err != nil {
			return nil, err
		}
		source, err := credential.Resolve(ctx, cred, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve graph credential: %w", err)
		}
		a.logger.Debug("resolved credential", "kind", source.Kind())
		conn.source = source
	}

	mb, closer, err := mailbox.New(ctx, cfg, conn.source, a.logger)
	if err != nil {
		return nil, err
	}

	arch, err := archive.New(ctx, cfg, conn.source, a.logger)
	if err != nil {
		closer.Close()
		return nil, err
	}

	gen, err := generator.New(cfg, a.logger)
	if err != nil {
		closer.Close()
		return nil, err
	}

	conn.closer = closer
	conn.gateways = monitor.Gateways{Mailbox: mb, Archive: arch, Generator: gen}
	return conn, nil
}

// startConnection runs the credential refresh worker once the app started.
// Callers hold connMu.
func (a *App) startConnection(conn *connection) {
	if a.bgCtx == nil || conn.source == nil {
		return
	}
	ctx, cancel := context.WithCancel(a.bgCtx)
	conn.stop = cancel
	conn.source.StartBackground(ctx)
}

// reconnect rebuilds the gateways when the saved configuration changed since
// they were built. While polling is scheduled the current gateways are kept
// until the next start.
func (a *App) reconnect(ctx context.Context) error {
	stored, err := a.store.GetConfiguration(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	a.connMu.Lock()
	defer a.connMu.Unlock()

	key := connectionFields(*stored)
	if key == a.applied || a.monitor.Status().IsRunning {
		return nil
	}

	cfg, err := effectiveConfig(a.cfg, *stored)
	if err != nil {
		return fmt.Errorf("%w: %v", mailbox.ErrNotConnected, err)
	}
	conn, err := a.connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%w: failed to apply saved configuration: %v", mailbox.ErrNotConnected, err)
	}
	if err := a.monitor.SetGateways(conn.gateways); err != nil {
		conn.Close()
		if errors.Is(err, monitor.ErrAlreadyRunning) {
			return nil
		}
		return err
	}
	a.startConnection(conn)

	old := a.conn
	a.conn = conn
	a.applied = key
	if err := old.Close(); err != nil {
		a.logger.Warn("failed to close previous mailbox", "error", err)
	}
	a.logger.Info("saved configuration applied", "mailbox", conn.gateways.Mailbox.Name())
	return nil
}

// connectionFields drops the fields that do not affect how gateways connect
func connectionFields(c models.Configuration) models.Configuration {
	c.ID = ""
	c.IsActive = false
	c.CreatedAt = time.Time{}
	return c
}

// effectiveConfig overlays the saved configuration on cfg and resolves any
// keyring references it carries
func effectiveConfig(cfg *types.Config, stored models.Configuration) (*types.Config, error) {
	out := withStoredConfiguration(cfg, stored)
	if err := credential.ResolveConfigSecrets(out, credential.SystemKeyring); err != nil {
		return nil, fmt.Errorf("failed to resolve saved secrets: %w", err)
	}
	return out, nil
}

// withStoredConfiguration returns a copy of cfg with every field set in the
// saved configuration taking precedence
func withStoredConfiguration(cfg *types.Config, stored models.Configuration) *types.Config {
	out := *cfg
	mb := &out.Mailbox

	if stored.IMAPServer != "" {
		mb.IMAP.Server = stored.IMAPServer
	}
	if stored.IMAPPort > 0 {
		mb.IMAP.Port = stored.IMAPPort
	}
	if stored.POPServer != "" {
		mb.POP3.Server = stored.POPServer
	}
	if stored.POPPort > 0 {
		mb.POP3.Port = stored.POPPort
	}
	if stored.SMTPServer != "" {
		mb.SMTP.Server = stored.SMTPServer
	}
	if stored.SMTPPort > 0 {
		mb.SMTP.Port = stored.SMTPPort
	}

	if stored.Email != "" {
		mb.Address = stored.Email
		if mb.IMAP.Username == "" {
			mb.IMAP.Username = stored.Email
		}
		if mb.POP3.Username == "" {
			mb.POP3.Username = stored.Email
		}
		if mb.SMTP.Username == "" {
			mb.SMTP.Username = stored.Email
		}
	}
	if stored.Password != "" {
		mb.IMAP.Password = stored.Password
		mb.POP3.Password = stored.Password
		mb.SMTP.Password = stored.Password
	}

	if stored.GraphAppID != "" {
		out.Graph.ClientID = stored.GraphAppID
	}
	if stored.GraphClientSecret != "" {
		out.Graph.ClientSecret = stored.GraphClientSecret
	}
	if stored.GraphTenantID != "" {
		out.Graph.TenantID = stored.GraphTenantID
	}
	if stored.OpenAIAPIKey != "" {
		out.Generator.APIKey = stored.OpenAIAPIKey
	}
	return &out
}

// dashboardMonitor applies a saved configuration before the dashboard starts
// polling or runs a cycle
type dashboardMonitor struct {
	*monitor.Coordinator
	app *App
}

func (m *dashboardMonitor) Start(ctx context.Context) error {
	if err := m.app.reconnect(ctx); err != nil {
		return err
	}
	return m.Coordinator.Start(ctx)
}

func (m *dashboardMonitor) RunCycle(ctx context.Context) error {
	if err := m.app.reconnect(ctx); err != nil {
		return err
	}
	return m.Coordinator.RunCycle(ctx)
}
