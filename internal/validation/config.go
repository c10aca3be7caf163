package validation

import (
	"fmt"
	"strings"

	"github.com/ashish9731/email-responder/internal/types"
)

// ValidateConfig performs validation on a single configuration
func ValidateConfig(cfg *types.Config) error {
	if err := validateMeta(cfg); err != nil {
		return fmt.Errorf("meta validation failed: %w", err)
	}

	if err := validateServer(cfg); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}

	if err := validateStorage(cfg); err != nil {
		return fmt.Errorf("storage validation failed: %w", err)
	}

	if err := validateMailbox(cfg); err != nil {
		return fmt.Errorf("mailbox validation failed: %w", err)
	}

	if err := validateArchive(cfg); err != nil {
		return fmt.Errorf("archive validation failed: %w", err)
	}

	if err := validateGenerator(cfg); err != nil {
		return fmt.Errorf("generator validation failed: %w", err)
	}

	if err := validateLogging(cfg); err != nil {
		return fmt.Errorf("logging validation failed: %w", err)
	}

	if err := validateScheduling(cfg); err != nil {
		return fmt.Errorf("scheduling validation failed: %w", err)
	}

	return nil
}

func validateMeta(cfg *types.Config) error {
	if cfg.Meta.ID == "" {
		return fmt.Errorf("meta.id is required")
	}

	if !isValidID(cfg.Meta.ID) {
		return fmt.Errorf("meta.id contains invalid characters (use only alphanumeric, dash, underscore)")
	}

	return nil
}

func validateServer(cfg *types.Config) error {
	if err := validatePort("server.port", cfg.Server.Port); err != nil {
		return err
	}

	if cfg.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if cfg.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	return nil
}

func validateStorage(cfg *types.Config) error {
	switch cfg.Storage.Type {
	case "memory":
	case "file", "sqlite":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage.path is required when type is %q", cfg.Storage.Type)
		}
	case "redis":
		if cfg.Storage.RedisURL == "" {
			return fmt.Errorf("storage.redis_url is required when type is 'redis'")
		}
	default:
		return fmt.Errorf("storage.type must be one of: memory, file, sqlite, redis")
	}
	return nil
}

func validateMailbox(cfg *types.Config) error {
	if cfg.Mailbox.DefaultTimeout <= 0 {
		return fmt.Errorf("mailbox.default_timeout must be positive")
	}

	switch cfg.Mailbox.Provider {
	case "graph":
		return validateGraph(cfg.Graph)
	case "imap":
		imap := cfg.Mailbox.IMAP
		if imap.Server == "" || imap.Username == "" {
			return fmt.Errorf("mailbox.imap.server and mailbox.imap.username are required")
		}
		if imap.OAuth2 {
			if err := validateGraph(cfg.Graph); err != nil {
				return fmt.Errorf("imap oauth2: %w", err)
			}
		} else if imap.Password == "" {
			return fmt.Errorf("mailbox.imap.password is required unless oauth2 is enabled")
		}
		if err := validatePort("mailbox.imap.port", imap.Port); err != nil {
			return err
		}
		return validateSMTP(cfg)
	case "pop3":
		pop := cfg.Mailbox.POP3
		if pop.Server == "" || pop.Username == "" || pop.Password == "" {
			return fmt.Errorf("incomplete POP3 configuration: server, username and password are required")
		}
		if pop.LedgerPath == "" {
			return fmt.Errorf("mailbox.pop3.ledger_path is required")
		}
		if pop.LedgerType != "file" && pop.LedgerType != "sqlite" {
			return fmt.Errorf("mailbox.pop3.ledger_type must be 'file' or 'sqlite'")
		}
		if err := validatePort("mailbox.pop3.port", pop.Port); err != nil {
			return err
		}
		return validateSMTP(cfg)
	default:
		return fmt.Errorf("mailbox.provider must be one of: graph, imap, pop3")
	}
}

func validateSMTP(cfg *types.Config) error {
	if cfg.Mailbox.SMTP.Server == "" {
		return fmt.Errorf("mailbox.smtp.server is required for %s", cfg.Mailbox.Provider)
	}
	if cfg.Mailbox.Address == "" {
		return fmt.Errorf("mailbox.address is required for %s", cfg.Mailbox.Provider)
	}
	return validatePort("mailbox.smtp.port", cfg.Mailbox.SMTP.Port)
}

func validateGraph(g types.GraphConfig) error {
	if g.BaseURL == "" {
		return fmt.Errorf("graph.base_url is required")
	}
	switch g.Auth {
	case "manual":
		if g.TenantID == "" || g.ClientID == "" || g.ClientSecret == "" {
			return fmt.Errorf("graph.tenant_id, graph.client_id and graph.client_secret are required for manual auth")
		}
		if g.UserID == "" {
			return fmt.Errorf("graph.user_id is required for manual auth (application permissions have no /me)")
		}
	case "oauth_token":
		if g.ClientID == "" || g.TokenStoragePath == "" {
			return fmt.Errorf("graph.client_id and graph.token_storage_path are required for oauth_token auth")
		}
	default:
		return fmt.Errorf("graph.auth must be 'manual' or 'oauth_token'")
	}
	return nil
}

func validateArchive(cfg *types.Config) error {
	if cfg.Archive.Root == "" {
		return fmt.Errorf("archive.root is required")
	}
	switch cfg.Archive.Provider {
	case "file":
		if cfg.Archive.Path == "" {
			return fmt.Errorf("archive.path is required when provider is 'file'")
		}
	case "gdrive":
		if cfg.Archive.GDrive.CredentialsFile == "" {
			return fmt.Errorf("archive.gdrive.credentials_file is required when provider is 'gdrive'")
		}
	case "onedrive":
		return validateGraph(cfg.Graph)
	default:
		return fmt.Errorf("archive.provider must be one of: file, gdrive, onedrive")
	}
	return nil
}

func validateGenerator(cfg *types.Config) error {
	switch cfg.Generator.Provider {
	case "openai":
		if cfg.Generator.Model == "" {
			return fmt.Errorf("generator.model is required")
		}
		if cfg.Generator.Timeout <= 0 {
			return fmt.Errorf("generator.timeout must be positive")
		}
		if cfg.Generator.MaxRetries < 0 {
			return fmt.Errorf("generator.max_retries must not be negative")
		}
	case "fallback":
	default:
		return fmt.Errorf("generator.provider must be 'openai' or 'fallback'")
	}
	return nil
}

func validateLogging(cfg *types.Config) error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
		"dev":  true,
	}

	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: text, json, dev")
	}

	return nil
}

func validateScheduling(cfg *types.Config) error {
	validFrequencies := map[string]bool{
		"second": true,
		"minute": true,
		"hour":   true,
	}

	if !validFrequencies[cfg.Scheduling.FrequencyEvery] {
		return fmt.Errorf("scheduling.frequency_every must be one of: %s", strings.Join([]string{"second", "minute", "hour"}, ", "))
	}

	if cfg.Scheduling.FrequencyAmount < 1 {
		return fmt.Errorf("scheduling.frequency_amount must be greater than 0")
	}

	if cfg.Scheduling.FrequencyEvery == "second" && cfg.Scheduling.FrequencyAmount < 5 {
		return fmt.Errorf("scheduling.frequency_amount must be at least 5 for second frequency")
	}

	if cfg.Scheduling.BatchSize < 1 || cfg.Scheduling.BatchSize > 100 {
		return fmt.Errorf("scheduling.batch_size must be between 1 and 100")
	}

	return nil
}

func validatePort(name string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535", name)
	}
	return nil
}

func isValidID(id string) bool {
	for _, r := range id {
		if !isValidIDChar(r) {
			return false
		}
	}
	return true
}

func isValidIDChar(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '-' ||
		r == '_'
}
