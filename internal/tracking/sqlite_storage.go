package tracking

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStorage implements the Storage interface in a SQLite table
type SQLiteStorage struct {
	path string
	db   *sqlx.DB
}

// NewSQLiteStorage creates a ledger database under basePath
func NewSQLiteStorage(basePath string) (*SQLiteStorage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	return &SQLiteStorage{path: filepath.Join(basePath, "read_messages.db")}, nil
}

// Initialize opens the database and creates the table
func (s *SQLiteStorage) Initialize() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("opening ledger db: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS read_messages (
			protocol   TEXT NOT NULL,
			server     TEXT NOT NULL,
			username   TEXT NOT NULL,
			message_id TEXT NOT NULL,
			read_at    DATETIME NOT NULL,
			PRIMARY KEY (protocol, server, username, message_id)
		)`)
	if err != nil {
		db.Close()
		return fmt.Errorf("creating ledger table: %w", err)
	}

	s.db = db
	return nil
}

func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStorage) AddRecord(record ReadRecord) error {
	if s.db == nil {
		return ErrStorageNotInitialized
	}
	_, err := s.db.NamedExec(`
		INSERT OR IGNORE INTO read_messages (protocol, server, username, message_id, read_at)
		VALUES (:protocol, :server, :username, :message_id, :read_at)`, record)
	if err != nil {
		return fmt.Errorf("recording read message %s: %w", record.MessageID, err)
	}
	return nil
}

func (s *SQLiteStorage) HasRecord(protocol, server, username, messageID string) (bool, error) {
	if s.db == nil {
		return false, ErrStorageNotInitialized
	}
	var exists bool
	err := s.db.Get(&exists,
		"SELECT EXISTS(SELECT 1 FROM read_messages WHERE protocol = ? AND server = ? AND username = ? AND message_id = ?)",
		protocol, server, username, messageID)
	if err != nil {
		return false, fmt.Errorf("checking read message %s: %w", messageID, err)
	}
	return exists, nil
}

func (s *SQLiteStorage) CleanupOldRecords(retentionDays int) error {
	if s.db == nil {
		return ErrStorageNotInitialized
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	if _, err := s.db.Exec("DELETE FROM read_messages WHERE read_at < ?", cutoff); err != nil {
		return fmt.Errorf("cleaning read messages: %w", err)
	}
	return nil
}
