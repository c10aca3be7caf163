package errorlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	filePrefix = "incidents_"
	dateLayout = "2006-01-02"
)

// FileLogger keeps one JSON file of incidents per day
type FileLogger struct {
	storagePath   string
	retentionDays int
	logger        *slog.Logger
	mu            sync.Mutex
	now           func() time.Time
}

// NewFileLogger creates a file based incident log under storagePath
func NewFileLogger(storagePath string, retentionDays int, logger *slog.Logger) (*FileLogger, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create incident log directory: %w", err)
	}
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &FileLogger{
		storagePath:   storagePath,
		retentionDays: retentionDays,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

func (f *FileLogger) Record(in Incident) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.Time.IsZero() {
		in.Time = f.now()
	}

	path := filepath.Join(f.storagePath, filePrefix+in.Time.UTC().Format(dateLayout)+".json")
	incidents, err := f.readFile(path)
	if err != nil && !os.IsNotExist(err) {
		// unreadable files are replaced rather than blocking new incidents
		f.logger.Warn("incident file couldn't be parsed, starting a new one",
			"file", path,
			"error", err)
		incidents = nil
	}
	incidents = append(incidents, in)

	data, err := json.MarshalIndent(incidents, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal incidents: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write incident file: %w", err)
	}

	f.logger.Debug("incident recorded",
		"id", in.ID,
		"category", in.Category,
		"case_number", in.CaseNumber)
	return nil
}

func (f *FileLogger) GetIncidents(filter Filter) ([]Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	files, err := f.incidentFiles()
	if err != nil {
		return nil, err
	}

	result := []Incident{}
	for _, name := range files {
		path := filepath.Join(f.storagePath, name)
		incidents, err := f.readFile(path)
		if err != nil {
			f.logger.Warn("failed to read incident file", "file", path, "error", err)
			continue
		}
		for _, in := range incidents {
			if filter.match(in) {
				result = append(result, in)
			}
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Time.After(result[j].Time)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (f *FileLogger) CleanupOld() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := f.now().AddDate(0, 0, -f.retentionDays)
	files, err := f.incidentFiles()
	if err != nil {
		return err
	}

	for _, name := range files {
		day, err := time.Parse(dateLayout, strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), ".json"))
		if err != nil {
			continue
		}
		if !day.Before(cutoff.Truncate(24 * time.Hour)) {
			continue
		}
		path := filepath.Join(f.storagePath, name)
		if err := os.Remove(path); err != nil {
			f.logger.Warn("failed to delete old incident file", "file", path, "error", err)
			continue
		}
		f.logger.Debug("deleted old incident file", "file", path)
	}
	return nil
}

func (f *FileLogger) Close() error {
	return nil
}

func (f *FileLogger) incidentFiles() ([]string, error) {
	entries, err := os.ReadDir(f.storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read incident log directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (f *FileLogger) readFile(path string) ([]Incident, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var incidents []Incident
	if err := json.Unmarshal(data, &incidents); err != nil {
		return nil, err
	}
	return incidents, nil
}
