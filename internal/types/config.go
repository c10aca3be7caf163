package types

// Config represents the application configuration
type Config struct {
	// Meta information for the configuration
	Meta struct {
		ID          string `mapstructure:"id" yaml:"id"`
		Name        string `mapstructure:"name" yaml:"name"`
		Description string `mapstructure:"description" yaml:"description,omitempty"`
		Template    string `mapstructure:"template" yaml:"template,omitempty"` // Name of the template to use
	} `mapstructure:"meta" yaml:"meta"`

	Server struct {
		Port         int    `mapstructure:"port" yaml:"port"`
		Host         string `mapstructure:"host" yaml:"host"`
		ReadTimeout  int    `mapstructure:"read_timeout" yaml:"read_timeout"`
		WriteTimeout int    `mapstructure:"write_timeout" yaml:"write_timeout"`
		IdleTimeout  int    `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	} `mapstructure:"server" yaml:"server"`

	Storage struct {
		Type     string `mapstructure:"type" yaml:"type"` // memory, file, sqlite, redis
		Path     string `mapstructure:"path" yaml:"path"`
		RedisURL string `mapstructure:"redis_url" yaml:"redis_url"`
		// SeedKeywords adds the default engine keywords to an empty store
		SeedKeywords bool `mapstructure:"seed_keywords" yaml:"seed_keywords"`
	} `mapstructure:"storage" yaml:"storage"`

	Mailbox struct {
		Provider       string `mapstructure:"provider" yaml:"provider"` // graph, imap, pop3
		Address        string `mapstructure:"address" yaml:"address"`
		DisplayName    string `mapstructure:"display_name" yaml:"display_name"`
		DefaultTimeout int    `mapstructure:"default_timeout" yaml:"default_timeout"`
		IMAP           struct {
			Server   string    `mapstructure:"server" yaml:"server"`
			Port     int       `mapstructure:"port" yaml:"port"`
			Username string    `mapstructure:"username" yaml:"username"`
			Password string    `mapstructure:"password" yaml:"password"`
			Folder   string    `mapstructure:"folder" yaml:"folder"`
			OAuth2   bool      `mapstructure:"oauth2" yaml:"oauth2"`
			TLS      TLSConfig `mapstructure:"tls" yaml:"tls"`
		} `mapstructure:"imap" yaml:"imap"`
		POP3 struct {
			Server     string    `mapstructure:"server" yaml:"server"`
			Port       int       `mapstructure:"port" yaml:"port"`
			Username   string    `mapstructure:"username" yaml:"username"`
			Password   string    `mapstructure:"password" yaml:"password"`
			LedgerType string    `mapstructure:"ledger_type" yaml:"ledger_type"` // file, sqlite
			LedgerPath string    `mapstructure:"ledger_path" yaml:"ledger_path"`
			TLS        TLSConfig `mapstructure:"tls" yaml:"tls"`
		} `mapstructure:"pop3" yaml:"pop3"`
		SMTP struct {
			Server   string `mapstructure:"server" yaml:"server"`
			Port     int    `mapstructure:"port" yaml:"port"`
			Username string `mapstructure:"username" yaml:"username"`
			Password string `mapstructure:"password" yaml:"password"`
		} `mapstructure:"smtp" yaml:"smtp"`
	} `mapstructure:"mailbox" yaml:"mailbox"`

	// Graph holds Microsoft Graph access shared by the graph mailbox and the onedrive archive
	Graph GraphConfig `mapstructure:"graph" yaml:"graph"`

	Archive struct {
		Provider string `mapstructure:"provider" yaml:"provider"` // file, gdrive, onedrive
		Root     string `mapstructure:"root" yaml:"root"`
		Path     string `mapstructure:"path" yaml:"path"`
		GDrive   struct {
			CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
			ParentFolderID  string `mapstructure:"parent_folder_id" yaml:"parent_folder_id"`
		} `mapstructure:"gdrive" yaml:"gdrive"`
	} `mapstructure:"archive" yaml:"archive"`

	Generator struct {
		Provider   string `mapstructure:"provider" yaml:"provider"` // openai, fallback
		APIKey     string `mapstructure:"api_key" yaml:"api_key"`
		BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
		Model      string `mapstructure:"model" yaml:"model"`
		Timeout    int    `mapstructure:"timeout" yaml:"timeout"`
		MaxRetries int    `mapstructure:"max_retries" yaml:"max_retries"`
	} `mapstructure:"generator" yaml:"generator"`

	Logging struct {
		Level         string `mapstructure:"level" yaml:"level"`
		Format        string `mapstructure:"format" yaml:"format"` // text, json, dev
		IncludeCaller bool   `mapstructure:"include_caller" yaml:"include_caller"`
	} `mapstructure:"logging" yaml:"logging"`

	ErrorLogging struct {
		Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
		StoragePath   string `mapstructure:"storage_path" yaml:"storage_path"`
		RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
	} `mapstructure:"error_logging" yaml:"error_logging"`

	Monitoring struct {
		MetricsEnabled  bool   `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
		MetricsPath     string `mapstructure:"metrics_path" yaml:"metrics_path"`
		HealthCheckPath string `mapstructure:"health_check_path" yaml:"health_check_path"`
	} `mapstructure:"monitoring" yaml:"monitoring"`

	Scheduling struct {
		Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
		FrequencyEvery  string `mapstructure:"frequency_every" yaml:"frequency_every"` // second, minute, hour
		FrequencyAmount int    `mapstructure:"frequency_amount" yaml:"frequency_amount"`
		StartNow        bool   `mapstructure:"start_now" yaml:"start_now"`
		BatchSize       int    `mapstructure:"batch_size" yaml:"batch_size"`
	} `mapstructure:"scheduling" yaml:"scheduling"`

	// Keywords are added to the store on startup and on config reload
	Keywords []string `mapstructure:"keywords" yaml:"keywords,omitempty"`
}

// TLSConfig controls transport security for mail protocols
type TLSConfig struct {
	Enabled            bool `mapstructure:"enabled" yaml:"enabled"`
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// GraphConfig describes how to reach Microsoft Graph
type GraphConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// Auth is "manual" (client credentials) or "oauth_token" (delegated token cache)
	Auth         string `mapstructure:"auth" yaml:"auth"`
	TenantID     string `mapstructure:"tenant_id" yaml:"tenant_id"`
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
	// UserID selects /users/{id}; empty means /me
	UserID           string `mapstructure:"user_id" yaml:"user_id"`
	TokenStoragePath string `mapstructure:"token_storage_path" yaml:"token_storage_path"`
}
