package models

import "time"

// Configuration holds the operator-entered connection parameters
type Configuration struct {
	ID                string    `json:"id" db:"id"`
	IMAPServer        string    `json:"imapServer" db:"imap_server"`
	IMAPPort          int       `json:"imapPort" db:"imap_port"`
	POPServer         string    `json:"popServer,omitempty" db:"pop_server"`
	POPPort           int       `json:"popPort,omitempty" db:"pop_port"`
	SMTPServer        string    `json:"smtpServer" db:"smtp_server"`
	SMTPPort          int       `json:"smtpPort" db:"smtp_port"`
	Email             string    `json:"email" db:"email"`
	Password          string    `json:"password,omitempty" db:"password"`
	GraphAppID        string    `json:"graphAppId,omitempty" db:"graph_app_id"`
	GraphClientSecret string    `json:"graphClientSecret,omitempty" db:"graph_client_secret"`
	GraphTenantID     string    `json:"graphTenantId,omitempty" db:"graph_tenant_id"`
	OpenAIAPIKey      string    `json:"openaiApiKey,omitempty" db:"openai_api_key"`
	IsActive          bool      `json:"isActive" db:"is_active"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
}

const redacted = "********"

// Redacted returns a copy with secrets masked for display
func (c Configuration) Redacted() Configuration {
	if c.Password != "" {
		c.Password = redacted
	}
	if c.GraphClientSecret != "" {
		c.GraphClientSecret = redacted
	}
	if c.OpenAIAPIKey != "" {
		c.OpenAIAPIKey = redacted
	}
	return c
}

// MergeSecrets returns c with every masked secret replaced by the value from
// prev, so a redacted configuration can be edited and saved back.
func (c Configuration) MergeSecrets(prev Configuration) Configuration {
	if c.Password == redacted {
		c.Password = prev.Password
	}
	if c.GraphClientSecret == redacted {
		c.GraphClientSecret = prev.GraphClientSecret
	}
	if c.OpenAIAPIKey == redacted {
		c.OpenAIAPIKey = prev.OpenAIAPIKey
	}
	return c
}
