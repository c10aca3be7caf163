package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ashish9731/email-responder/internal/models"
	"github.com/ashish9731/email-responder/internal/types"
)

// New creates the store selected by storage.type. The memory store, and any
// empty store with seed_keywords set, starts with the default keywords.
func New(ctx context.Context, cfg *types.Config, logger *slog.Logger) (Store, error) {
	var (
		store Store
		err   error
		seed  = cfg.Storage.SeedKeywords
	)

	switch cfg.Storage.Type {
	case "memory", "":
		store = NewMemoryStore()
		seed = true
	case "file":
		store, err = NewFileStore(cfg.Storage.Path)
	case "sqlite":
		if err = os.MkdirAll(cfg.Storage.Path, 0755); err == nil {
			store, err = NewSQLiteStore(filepath.Join(cfg.Storage.Path, "responder.db"))
		}
	case "redis":
		store, err = NewRedisStore(ctx, cfg.Storage.RedisURL)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Type, err)
	}

	logger.Debug("initialized storage", "type", cfg.Storage.Type, "path", cfg.Storage.Path)

	if seed {
		existing, err := store.ListKeywords(ctx)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to list keywords: %w", err)
		}
		if len(existing) == 0 {
			added, err := SeedKeywords(ctx, store, models.DefaultKeywords)
			if err != nil {
				store.Close()
				return nil, fmt.Errorf("failed to seed keywords: %w", err)
			}
			logger.Info("seeded default keywords", "count", added)
		}
	}

	return store, nil
}

// SeedKeywords adds each active keyword that is not stored yet and returns
// how many were added
func SeedKeywords(ctx context.Context, store Store, keywords []string) (int, error) {
	added := 0
	for _, text := range models.DedupeKeywords(keywords) {
		_, err := store.AddKeyword(ctx, text, true)
		switch {
		case err == nil:
			added++
		case errors.Is(err, ErrDuplicate), errors.Is(err, ErrInvalidKeyword):
		default:
			return added, err
		}
	}
	return added, nil
}
