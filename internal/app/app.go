// Package app wires the configured gateways into the case coordinator and
// serves the dashboard API.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ashish9731/email-responder/internal/api"
	"github.com/ashish9731/email-responder/internal/config"
	"github.com/ashish9731/email-responder/internal/credential"
	"github.com/ashish9731/email-responder/internal/errorlog"
	applog "github.com/ashish9731/email-responder/internal/logger"
	"github.com/ashish9731/email-responder/internal/models"
	"github.com/ashish9731/email-responder/internal/monitor"
	"github.com/ashish9731/email-responder/internal/scheduler"
	"github.com/ashish9731/email-responder/internal/storage"
	"github.com/ashish9731/email-responder/internal/types"
)

const (
	cleanupJobName = "incident-cleanup"
	reloadTimeout  = 30 * time.Second
)

var cleanupFrequency = scheduler.Frequency{Every: "hour", Amount: 24}

// App represents the main application
type App struct {
	cfg       *types.Config
	cfgFile   string
	logger    *slog.Logger
	store     storage.Store
	incidents *errorlog.Manager
	scheduler *scheduler.Scheduler
	monitor   *monitor.Coordinator
	router    http.Handler
	closers   []io.Closer
	cancel    context.CancelFunc
	bgCtx     context.Context

	// connMu guards the gateways built from the stored configuration
	connMu  sync.Mutex
	conn    *connection
	applied models.Configuration

	server   *http.Server
	listener net.Listener
	watcher  *config.ConfigWatcher
	wg       sync.WaitGroup
}

// New builds every gateway named by cfg. Nothing talks to the network until
// Start or RunOnce. cfgFile is watched for changes by Start; it may be empty.
func New(ctx context.Context, cfg *types.Config, cfgFile string, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, cfgFile: cfgFile, logger: logger}
	if err := a.build(ctx); err != nil {
		a.closeAll()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg

	if err := credential.ResolveConfigSecrets(cfg, credential.SystemKeyring); err != nil {
		return fmt.Errorf("failed to resolve secrets: %w", err)
	}

	store, err := storage.New(ctx, cfg, a.logger)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, store)

	if added, err := storage.SeedKeywords(ctx, store, cfg.Keywords); err != nil {
		return fmt.Errorf("failed to add configured keywords: %w", err)
	} else if added > 0 {
		a.logger.Info("added configured keywords", "count", added)
	}

	stored, err := seedConfiguration(ctx, store, cfg)
	if err != nil {
		return err
	}
	effective, err := effectiveConfig(cfg, *stored)
	if err != nil {
		return err
	}
	conn, err := a.connect(ctx, effective)
	if err != nil {
		return err
	}
	a.conn = conn
	a.applied = connectionFields(*stored)

	incidents, err := errorlog.NewManager(cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open incident log: %w", err)
	}
	a.incidents = incidents
	a.closers = append(a.closers, incidents)

	a.scheduler = scheduler.NewScheduler(a.logger)
	a.monitor = monitor.New(monitor.Config{
		BatchSize: cfg.Scheduling.BatchSize,
		Frequency: scheduler.FrequencyFromConfig(cfg),
		StartNow:  cfg.Scheduling.StartNow,
	}, monitor.Deps{
		Store:     store,
		Mailbox:   conn.gateways.Mailbox,
		Archive:   conn.gateways.Archive,
		Generator: conn.gateways.Generator,
		Scheduler: a.scheduler,
		Incidents: incidents,
	}, a.logger)

	metricsPath := ""
	if cfg.Monitoring.MetricsEnabled {
		metricsPath = cfg.Monitoring.MetricsPath
	}
	a.router = api.NewRouter(api.Options{
		Store:       store,
		Monitor:     &dashboardMonitor{Coordinator: a.monitor, app: a},
		Incidents:   incidents,
		HealthPath:  cfg.Monitoring.HealthCheckPath,
		MetricsPath: metricsPath,
		Logger:      a.logger,
	})

	a.logger.Info("application initialized",
		"id", cfg.Meta.ID,
		"storage", cfg.Storage.Type,
		"mailbox", conn.gateways.Mailbox.Name(),
		"archive", conn.gateways.Archive.Name(),
		"generator", conn.gateways.Generator.Name(),
	)
	return nil
}

// Start serves the API, starts polling when scheduling is enabled and
// watches the config file
func (a *App) Start(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.connMu.Lock()
	a.bgCtx = bgCtx
	a.startConnection(a.conn)
	a.connMu.Unlock()

	a.scheduler.Start()
	if err := a.scheduler.Schedule(cleanupJobName, cleanupFrequency, false, a.cleanupIncidents); err != nil {
		return fmt.Errorf("failed to schedule incident cleanup: %w", err)
	}

	if err := a.startServer(); err != nil {
		return err
	}

	if a.cfg.Scheduling.Enabled {
		if err := a.monitor.Start(ctx); err != nil {
			return fmt.Errorf("failed to start email monitor: %w", err)
		}
	} else {
		a.logger.Info("scheduled polling is disabled, start it from the dashboard")
	}

	if a.cfgFile != "" {
		watcher, err := config.StartWatcher(a.cfgFile, a.logger)
		if err != nil {
			a.logger.Warn("config watcher not started", "error", err)
		} else {
			a.watcher = watcher
			a.wg.Add(1)
			go a.watchConfig()
		}
	}
	return nil
}

func (a *App) startServer() error {
	s := a.cfg.Server
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	a.listener = ln
	a.server = &http.Server{
		Handler:      a.router,
		ReadTimeout:  time.Duration(s.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.IdleTimeout) * time.Second,
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server stopped", "error", err)
		}
	}()

	a.logger.Info("http server listening", "addr", ln.Addr().String())
	return nil
}

// Addr is the address the API listens on once Start returned
func (a *App) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Handler returns the API router
func (a *App) Handler() http.Handler {
	return a.router
}

// RunOnce runs a single poll cycle without scheduling
func (a *App) RunOnce(ctx context.Context) error {
	if err := a.reconnect(ctx); err != nil {
		return err
	}
	return a.monitor.RunCycle(ctx)
}

// Stop gracefully stops all application services
func (a *App) Stop(ctx context.Context) error {
	var errs []error

	// the dashboard may have started polling even when Start did not
	if a.monitor != nil && a.monitor.Status().IsRunning {
		if err := a.monitor.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down http server: %w", err))
		}
	}
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	errs = append(errs, a.closeAll())
	return errors.Join(errs...)
}

// closeAll releases resources in reverse order of acquisition
func (a *App) closeAll() error {
	var errs []error
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			errs = append(errs, err)
		}
		a.conn = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) cleanupIncidents() {
	if err := a.incidents.CleanupOld(); err != nil {
		a.logger.Error("failed to clean up incidents", "error", err)
	}
}

func (a *App) watchConfig() {
	defer a.wg.Done()

	for cfg := range a.watcher.ReloadChan() {
		a.logger.Info("applying configuration change")
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		a.applyConfig(ctx, cfg)
		cancel()
	}
}

// seedConfiguration returns the saved configuration, first storing an active
// one derived from cfg when none has been saved yet. Secrets stay in the file
// and the keyring.
func seedConfiguration(ctx context.Context, store storage.Store, cfg *types.Config) (*models.Configuration, error) {
	stored, err := store.GetConfiguration(ctx)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	stored, err = store.SaveConfiguration(ctx, configurationFromConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to save configuration: %w", err)
	}
	return stored, nil
}

func configurationFromConfig(cfg *types.Config) models.Configuration {
	mb := cfg.Mailbox
	return models.Configuration{
		IMAPServer:    mb.IMAP.Server,
		IMAPPort:      mb.IMAP.Port,
		POPServer:     mb.POP3.Server,
		POPPort:       mb.POP3.Port,
		SMTPServer:    mb.SMTP.Server,
		SMTPPort:      mb.SMTP.Port,
		Email:         mb.Address,
		GraphAppID:    cfg.Graph.ClientID,
		GraphTenantID: cfg.Graph.TenantID,
		IsActive:      true,
	}
}

// applyConfig applies the parts of a reloaded configuration that can change
// at runtime: log level and configured keywords. Everything else needs a
// restart.
func (a *App) applyConfig(ctx context.Context, cfg *types.Config) {
	applog.SetLevel(cfg.Logging.Level)

	added, err := storage.SeedKeywords(ctx, a.store, cfg.Keywords)
	if err != nil {
		a.logger.Error("failed to add configured keywords", "error", err)
	} else if added > 0 {
		a.logger.Info("added configured keywords", "count", added)
	}

	if scheduler.FrequencyFromConfig(cfg) != scheduler.FrequencyFromConfig(a.cfg) ||
		cfg.Mailbox.Provider != a.cfg.Mailbox.Provider ||
		cfg.Storage.Type != a.cfg.Storage.Type {
		a.logger.Warn("configuration change requires a restart to take effect")
	}
}
