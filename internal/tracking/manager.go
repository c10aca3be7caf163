package tracking

import (
	"fmt"
	"log/slog"
	"time"
)

// Manager is the read ledger for one mailbox account on a protocol that has
// no server-side read flag
type Manager struct {
	protocol string
	server   string
	username string
	logger   *slog.Logger
	storage  Storage
}

// NewManager opens the ledger storage for the given account
func NewManager(storageType, storagePath, protocol, server, username string, logger *slog.Logger) (*Manager, error) {
	storage, err := NewStorage(storageType, storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracking storage: %w", err)
	}

	if err := storage.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracking storage: %w", err)
	}

	logger.Debug("initialized read ledger",
		"storage_type", storageType,
		"storage_path", storagePath,
		"protocol", protocol)

	return &Manager{
		protocol: protocol,
		server:   server,
		username: username,
		logger:   logger,
		storage:  storage,
	}, nil
}

// Close cleans up resources
func (m *Manager) Close() error {
	return m.storage.Close()
}

// IsRead reports whether messageID was marked read
func (m *Manager) IsRead(messageID string) (bool, error) {
	read, err := m.storage.HasRecord(m.protocol, m.server, m.username, messageID)
	if err != nil {
		m.logger.Error("failed to check read ledger",
			"message_id", messageID,
			"error", err)
		return false, err
	}
	return read, nil
}

// MarkRead records messageID as read
func (m *Manager) MarkRead(messageID string) error {
	record := ReadRecord{
		MessageID: messageID,
		Protocol:  m.protocol,
		Server:    m.server,
		Username:  m.username,
		ReadAt:    time.Now().UTC(),
	}

	if err := m.storage.AddRecord(record); err != nil {
		m.logger.Error("failed to mark message read",
			"message_id", messageID,
			"error", err)
		return err
	}

	m.logger.Debug("marked message read",
		"message_id", messageID,
		"protocol", m.protocol,
		"server", m.server)
	return nil
}

// CleanupOldRecords removes records older than retentionDays
func (m *Manager) CleanupOldRecords(retentionDays int) error {
	if err := m.storage.CleanupOldRecords(retentionDays); err != nil {
		m.logger.Error("failed to clean up old records", "error", err)
		return err
	}

	m.logger.Info("cleaned up old read ledger records", "retention_days", retentionDays)
	return nil
}
