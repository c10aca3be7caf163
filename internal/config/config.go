package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/ashish9731/email-responder/internal/types"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. RESPONDER_MAILBOX_PROVIDER
const EnvPrefix = "RESPONDER"

// envKeys are bound explicitly so environment overrides reach Unmarshal even
// when the key is absent from the config file.
var envKeys = []string{
	"server.host",
	"server.port",
	"storage.type",
	"storage.path",
	"storage.redis_url",
	"mailbox.provider",
	"mailbox.address",
	"mailbox.imap.server",
	"mailbox.imap.username",
	"mailbox.imap.password",
	"mailbox.pop3.server",
	"mailbox.pop3.username",
	"mailbox.pop3.password",
	"mailbox.smtp.server",
	"mailbox.smtp.username",
	"mailbox.smtp.password",
	"graph.tenant_id",
	"graph.client_id",
	"graph.client_secret",
	"graph.user_id",
	"archive.provider",
	"archive.path",
	"archive.gdrive.credentials_file",
	"archive.gdrive.parent_folder_id",
	"generator.provider",
	"generator.api_key",
	"generator.model",
	"logging.level",
	"logging.format",
}

// Defaults returns the values used for every field the configuration leaves empty
func Defaults() *types.Config {
	cfg := &types.Config{}
	cfg.Meta.ID = "default"
	cfg.Meta.Name = "Email Responder"

	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 5000
	cfg.Server.ReadTimeout = 30
	cfg.Server.WriteTimeout = 30
	cfg.Server.IdleTimeout = 120

	cfg.Storage.Type = "memory"
	cfg.Storage.Path = "./data"

	cfg.Mailbox.Provider = "graph"
	cfg.Mailbox.DefaultTimeout = 30
	cfg.Mailbox.IMAP.Port = 993
	cfg.Mailbox.IMAP.Folder = "INBOX"
	cfg.Mailbox.POP3.Port = 995
	cfg.Mailbox.POP3.LedgerType = "file"
	cfg.Mailbox.POP3.LedgerPath = "./data/pop3"
	cfg.Mailbox.SMTP.Port = 587

	cfg.Graph.BaseURL = "https://graph.microsoft.com/v1.0"
	cfg.Graph.Auth = "manual"
	cfg.Graph.TokenStoragePath = "./data/tokens"

	cfg.Archive.Provider = "file"
	cfg.Archive.Root = "EmailResponder"
	cfg.Archive.Path = "./data/archive"

	cfg.Generator.Provider = "openai"
	cfg.Generator.BaseURL = "https://api.openai.com/v1"
	cfg.Generator.Model = "gpt-5"
	cfg.Generator.Timeout = 60
	cfg.Generator.MaxRetries = 2

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.ErrorLogging.StoragePath = "./data/errors"
	cfg.ErrorLogging.RetentionDays = 30

	cfg.Monitoring.MetricsPath = "/metrics"
	cfg.Monitoring.HealthCheckPath = "/healthz"

	cfg.Scheduling.FrequencyEvery = "second"
	cfg.Scheduling.FrequencyAmount = 30
	cfg.Scheduling.BatchSize = 10
	return cfg
}

// Load reads the configuration file (explicit path, or config.yaml searched in
// ./config and .), applies environment overrides, merges the named template
// underneath and fills the remaining gaps from Defaults.
func Load(configFile string, logger *slog.Logger) (*types.Config, string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, "", fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, "", fmt.Errorf("failed to read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and environment")
	}

	cfg := &types.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, "", fmt.Errorf("failed to decode config: %w", err)
	}

	used := v.ConfigFileUsed()
	if cfg.Meta.Template != "" {
		templatesDir := filepath.Join(filepath.Dir(used), "templates")
		if used == "" {
			templatesDir = filepath.Join("config", "templates")
		}
		if err := ApplyTemplate(cfg, templatesDir, cfg.Meta.Template); err != nil {
			return nil, "", fmt.Errorf("failed to apply template %s: %w", cfg.Meta.Template, err)
		}
	}

	if err := mergo.Merge(cfg, Defaults()); err != nil {
		return nil, "", fmt.Errorf("failed to apply defaults: %w", err)
	}

	logger.Debug("loaded configuration",
		"file", used,
		"id", cfg.Meta.ID,
		"storage", cfg.Storage.Type,
		"mailbox", cfg.Mailbox.Provider,
		"archive", cfg.Archive.Provider,
		"generator", cfg.Generator.Provider,
	)

	return cfg, used, nil
}
