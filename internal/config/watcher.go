package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/ashish9731/email-responder/internal/types"
	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads the configuration file whenever it changes on disk
type ConfigWatcher struct {
	watcher    *fsnotify.Watcher
	configFile string
	mu         sync.Mutex
	logger     *slog.Logger
	reloadChan chan *types.Config
	done       chan struct{}
}

// StartWatcher watches the directory holding configFile. Editors usually
// replace files instead of writing in place, so the directory is watched
// and events are filtered by name.
func StartWatcher(configFile string, logger *slog.Logger) (*ConfigWatcher, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	abs, err := filepath.Abs(configFile)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	cw := &ConfigWatcher{
		watcher:    watcher,
		configFile: abs,
		logger:     logger,
		reloadChan: make(chan *types.Config, 1),
		done:       make(chan struct{}),
	}

	go cw.watch()
	return cw, nil
}

// ReloadChan receives the freshly loaded configuration after each change
func (cw *ConfigWatcher) ReloadChan() <-chan *types.Config {
	return cw.reloadChan
}

func (cw *ConfigWatcher) watch() {
	defer close(cw.reloadChan)
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != cw.configFile {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				cw.handleConfigChange(event.Name)
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("watcher error", "error", err)

		case <-cw.done:
			return
		}
	}
}

func (cw *ConfigWatcher) handleConfigChange(path string) {
	cw.logger.Info("detected configuration change", "path", path)

	cfg, _, err := Load(cw.configFile, cw.logger)
	if err != nil {
		cw.logger.Error("failed to reload configuration",
			"error", err,
			"path", path,
		)
		return
	}

	// Drop a pending reload in favour of the newer one
	select {
	case <-cw.reloadChan:
	default:
	}
	select {
	case cw.reloadChan <- cfg:
	default:
	}
}

// Stop stops the configuration watcher
func (cw *ConfigWatcher) Stop() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.watcher == nil {
		return nil
	}
	close(cw.done)
	if err := cw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	cw.watcher = nil
	return nil
}
