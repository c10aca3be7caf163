package tracking

import (
	"errors"
	"time"
)

// ReadRecord marks one message as read on a protocol that keeps no read flag
type ReadRecord struct {
	MessageID string    `json:"message_id" db:"message_id"`
	Protocol  string    `json:"protocol" db:"protocol"`
	Server    string    `json:"server" db:"server"`
	Username  string    `json:"username" db:"username"`
	ReadAt    time.Time `json:"read_at" db:"read_at"`
}

// Storage defines the interface for the read ledger
type Storage interface {
	// Initialize prepares the storage for use
	Initialize() error

	// Close cleans up any resources used by the storage
	Close() error

	// AddRecord adds a new read record to the storage
	AddRecord(record ReadRecord) error

	// HasRecord checks if the message has been marked read
	HasRecord(protocol, server, username, messageID string) (bool, error)

	// CleanupOldRecords removes records older than the specified retention period
	CleanupOldRecords(retentionDays int) error
}

// NewStorage creates a new storage implementation based on the specified type
func NewStorage(storageType, storagePath string) (Storage, error) {
	switch storageType {
	case "file", "":
		return NewFileStorage(storagePath)
	case "sqlite":
		return NewSQLiteStorage(storagePath)
	default:
		return nil, ErrUnsupportedStorageType
	}
}

// Common errors
var (
	ErrUnsupportedStorageType = errors.New("unsupported storage type")
	ErrStorageNotInitialized  = errors.New("storage not initialized")
)
