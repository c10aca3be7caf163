package errorlog

import (
	"log/slog"

	"github.com/ashish9731/email-responder/internal/types"
)

// Manager records incidents to the configured logger
type Manager struct {
	configID string
	logger   *slog.Logger
	impl     Logger
}

// NewManager creates an incident manager. A disabled error log records nothing.
func NewManager(cfg *types.Config, logger *slog.Logger) (*Manager, error) {
	if !cfg.ErrorLogging.Enabled {
		logger.Debug("incident logging is disabled")
		return &Manager{configID: cfg.Meta.ID, logger: logger, impl: noopLogger{}}, nil
	}

	impl, err := NewFileLogger(cfg.ErrorLogging.StoragePath, cfg.ErrorLogging.RetentionDays, logger)
	if err != nil {
		return nil, err
	}
	return &Manager{configID: cfg.Meta.ID, logger: logger, impl: impl}, nil
}

// Record stores an incident. Failures are logged and returned; callers may
// ignore them since the incident log is best effort.
func (m *Manager) Record(in Incident) error {
	if in.ConfigID == "" {
		in.ConfigID = m.configID
	}
	if err := m.impl.Record(in); err != nil {
		m.logger.Error("failed to record incident",
			"category", in.Category,
			"case_number", in.CaseNumber,
			"error", err)
		return err
	}
	return nil
}

func (m *Manager) GetIncidents(filter Filter) ([]Incident, error) {
	return m.impl.GetIncidents(filter)
}

func (m *Manager) CleanupOld() error {
	return m.impl.CleanupOld()
}

func (m *Manager) Close() error {
	return m.impl.Close()
}

// noopLogger is used when incident logging is disabled
type noopLogger struct{}

func (noopLogger) Record(Incident) error { return nil }
func (noopLogger) GetIncidents(Filter) ([]Incident, error) { return []Incident{}, nil }
func (noopLogger) CleanupOld() error { return nil }
func (noopLogger) Close() error { return nil }
