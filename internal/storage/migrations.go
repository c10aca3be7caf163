package storage

type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of sqlite schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cases (
	id                TEXT PRIMARY KEY,
	seq               INTEGER NOT NULL UNIQUE,
	case_number       TEXT NOT NULL UNIQUE,
	source_message_id TEXT NOT NULL DEFAULT '',
	sender_email      TEXT NOT NULL,
	sender_name       TEXT NOT NULL DEFAULT '',
	subject           TEXT NOT NULL DEFAULT '',
	original_body     TEXT NOT NULL DEFAULT '',
	keywords          TEXT NOT NULL DEFAULT '[]',
	status            TEXT NOT NULL DEFAULT 'new',
	response_body     TEXT,
	attachment_url    TEXT,
	follow_up_sent    INTEGER NOT NULL DEFAULT 0,
	follow_up_at      DATETIME,
	last_error        TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(status);
CREATE INDEX IF NOT EXISTS idx_cases_source_message ON cases(source_message_id);

CREATE TABLE IF NOT EXISTS keywords (
	id         TEXT PRIMARY KEY,
	keyword    TEXT NOT NULL UNIQUE,
	is_active  INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS configuration (
	id                  TEXT PRIMARY KEY,
	imap_server         TEXT NOT NULL DEFAULT '',
	imap_port           INTEGER NOT NULL DEFAULT 0,
	pop_server          TEXT NOT NULL DEFAULT '',
	pop_port            INTEGER NOT NULL DEFAULT 0,
	smtp_server         TEXT NOT NULL DEFAULT '',
	smtp_port           INTEGER NOT NULL DEFAULT 0,
	email               TEXT NOT NULL DEFAULT '',
	password            TEXT NOT NULL DEFAULT '',
	graph_app_id        TEXT NOT NULL DEFAULT '',
	graph_client_secret TEXT NOT NULL DEFAULT '',
	graph_tenant_id     TEXT NOT NULL DEFAULT '',
	openai_api_key      TEXT NOT NULL DEFAULT '',
	is_active           INTEGER NOT NULL DEFAULT 1,
	created_at          DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS system_status (
	id                    INTEGER PRIMARY KEY CHECK (id = 1),
	email_monitor_active  INTEGER NOT NULL DEFAULT 0,
	auto_responder_active INTEGER NOT NULL DEFAULT 0,
	outlook_connected     INTEGER NOT NULL DEFAULT 0,
	onedrive_connected    INTEGER NOT NULL DEFAULT 0,
	last_email_check      DATETIME,
	emails_processed      INTEGER NOT NULL DEFAULT 0,
	active_cases          INTEGER NOT NULL DEFAULT 0,
	response_rate         TEXT NOT NULL DEFAULT '0%',
	last_error            TEXT NOT NULL DEFAULT '',
	last_updated          DATETIME NOT NULL
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
