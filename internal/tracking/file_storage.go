package tracking

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStorage implements the Storage interface using one JSON file. Records
// are cached in memory and the file is rewritten on every change.
type FileStorage struct {
	basePath    string
	recordsPath string
	mu          sync.RWMutex
	records     map[string]ReadRecord
	initialized bool
}

// NewFileStorage creates a new file-based storage
func NewFileStorage(basePath string) (*FileStorage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	return &FileStorage{
		basePath:    basePath,
		recordsPath: filepath.Join(basePath, "read_messages.json"),
	}, nil
}

func recordKey(protocol, server, username, messageID string) string {
	return protocol + "|" + server + "|" + username + "|" + messageID
}

// Initialize creates the directory and loads existing records
func (fs *FileStorage) Initialize() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(fs.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	records, err := fs.loadRecords()
	if err != nil {
		return err
	}

	fs.records = make(map[string]ReadRecord, len(records))
	for _, r := range records {
		fs.records[recordKey(r.Protocol, r.Server, r.Username, r.MessageID)] = r
	}
	fs.initialized = true
	return nil
}

// Close cleans up any resources
func (fs *FileStorage) Close() error {
	return nil
}

// AddRecord adds a read record; adding the same message twice is a no-op
func (fs *FileStorage) AddRecord(record ReadRecord) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.initialized {
		return ErrStorageNotInitialized
	}

	key := recordKey(record.Protocol, record.Server, record.Username, record.MessageID)
	if _, ok := fs.records[key]; ok {
		return nil
	}
	fs.records[key] = record
	if err := fs.saveRecords(); err != nil {
		delete(fs.records, key)
		return err
	}
	return nil
}

// HasRecord checks if a message has been marked read
func (fs *FileStorage) HasRecord(protocol, server, username, messageID string) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if !fs.initialized {
		return false, ErrStorageNotInitialized
	}

	_, ok := fs.records[recordKey(protocol, server, username, messageID)]
	return ok, nil
}

// CleanupOldRecords removes records older than the specified retention period
func (fs *FileStorage) CleanupOldRecords(retentionDays int) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.initialized {
		return ErrStorageNotInitialized
	}

	cutoffTime := time.Now().AddDate(0, 0, -retentionDays)
	for key, record := range fs.records {
		if record.ReadAt.Before(cutoffTime) {
			delete(fs.records, key)
		}
	}

	return fs.saveRecords()
}

func (fs *FileStorage) loadRecords() ([]ReadRecord, error) {
	data, err := os.ReadFile(fs.recordsPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read records file: %w", err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var records []ReadRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse records file: %w", err)
	}

	return records, nil
}

// saveRecords writes all records to the file (assumes lock is held)
func (fs *FileStorage) saveRecords() error {
	records := make([]ReadRecord, 0, len(fs.records))
	for _, r := range fs.records {
		records = append(records, r)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize records: %w", err)
	}

	if err := os.WriteFile(fs.recordsPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write records file: %w", err)
	}

	return nil
}
