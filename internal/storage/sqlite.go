package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ashish9731/email-responder/internal/models"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// caseRow carries the columns of cases that models.Case does not map directly
type caseRow struct {
	models.Case
	Seq          int    `db:"seq"`
	KeywordsJSON string `db:"keywords"`
}

func (r caseRow) toCase() (*models.Case, error) {
	c := r.Case
	if err := json.Unmarshal([]byte(r.KeywordsJSON), &c.Keywords); err != nil {
		return nil, fmt.Errorf("decoding keywords of case %s: %w", c.ID, err)
	}
	return &c, nil
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// a single connection serialises writers; sqlite would otherwise answer SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const caseColumns = `id, seq, case_number, source_message_id, sender_email, sender_name,
	subject, original_body, keywords, status, response_body, attachment_url,
	follow_up_sent, follow_up_at, last_error, created_at, updated_at`

func (s *SQLiteStore) CreateCase(ctx context.Context, nc models.NewCase) (*models.Case, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int
	if err := tx.GetContext(ctx, &seq, "SELECT COALESCE(MAX(seq), 0) + 1 FROM cases"); err != nil {
		return nil, fmt.Errorf("allocating case sequence: %w", err)
	}

	c := newCaseRecord(nc, seq, now())
	keywords, err := json.Marshal(c.Keywords)
	if err != nil {
		return nil, fmt.Errorf("encoding keywords: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cases (`+caseColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, seq, c.CaseNumber, c.SourceMessageID, c.SenderEmail, c.SenderName,
		c.Subject, c.OriginalBody, string(keywords), c.Status, c.ResponseBody, c.AttachmentURL,
		c.FollowUpSent, c.FollowUpAt, c.LastError, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating case: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing case: %w", err)
	}
	return &c, nil
}

func (s *SQLiteStore) getCase(ctx context.Context, q sqlx.QueryerContext, where string, arg any) (*models.Case, error) {
	var row caseRow
	err := sqlx.GetContext(ctx, q, &row, "SELECT "+caseColumns+" FROM cases WHERE "+where+" = ?", arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading case: %w", err)
	}
	return row.toCase()
}

func (s *SQLiteStore) GetCase(ctx context.Context, id string) (*models.Case, error) {
	return s.getCase(ctx, s.db, "id", id)
}

func (s *SQLiteStore) GetCaseByNumber(ctx context.Context, number string) (*models.Case, error) {
	return s.getCase(ctx, s.db, "case_number", number)
}

func (s *SQLiteStore) ListCases(ctx context.Context) ([]models.Case, error) {
	var rows []caseRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT "+caseColumns+" FROM cases ORDER BY seq DESC")
	if err != nil {
		return nil, fmt.Errorf("listing cases: %w", err)
	}

	cases := make([]models.Case, 0, len(rows))
	for _, r := range rows {
		c, err := r.toCase()
		if err != nil {
			return nil, err
		}
		cases = append(cases, *c)
	}
	return cases, nil
}

func (s *SQLiteStore) UpdateCase(ctx context.Context, id string, u models.CaseUpdate) (*models.Case, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	c, err := s.getCase(ctx, tx, "id", id)
	if err != nil {
		return nil, err
	}
	if err := applyCaseUpdate(c, u, now()); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE cases SET
			status = ?, response_body = ?, attachment_url = ?,
			follow_up_sent = ?, follow_up_at = ?, last_error = ?, updated_at = ?
		WHERE id = ?`,
		c.Status, c.ResponseBody, c.AttachmentURL,
		c.FollowUpSent, c.FollowUpAt, c.LastError, c.UpdatedAt,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating case %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing case %s: %w", id, err)
	}
	return c, nil
}

func (s *SQLiteStore) AddKeyword(ctx context.Context, text string, active bool) (*models.Keyword, error) {
	k, err := newKeywordRecord(text, active, now())
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO keywords (id, keyword, is_active, created_at) VALUES (?, ?, ?, ?)",
		k.ID, k.Keyword, k.IsActive, k.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating keyword: %w", err)
	}
	return &k, nil
}

func (s *SQLiteStore) ListKeywords(ctx context.Context) ([]models.Keyword, error) {
	var keywords []models.Keyword
	err := s.db.SelectContext(ctx, &keywords,
		"SELECT id, keyword, is_active, created_at FROM keywords ORDER BY rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("listing keywords: %w", err)
	}
	return keywords, nil
}

func (s *SQLiteStore) getKeyword(ctx context.Context, where string, arg any) (*models.Keyword, error) {
	var k models.Keyword
	err := s.db.GetContext(ctx, &k,
		"SELECT id, keyword, is_active, created_at FROM keywords WHERE "+where+" = ?", arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading keyword: %w", err)
	}
	return &k, nil
}

func (s *SQLiteStore) GetKeywordByText(ctx context.Context, text string) (*models.Keyword, error) {
	return s.getKeyword(ctx, "keyword", text)
}

func (s *SQLiteStore) UpdateKeyword(ctx context.Context, id string, active bool) (*models.Keyword, error) {
	result, err := s.db.ExecContext(ctx, "UPDATE keywords SET is_active = ? WHERE id = ?", active, id)
	if err != nil {
		return nil, fmt.Errorf("updating keyword %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, ErrNotFound
	}
	return s.getKeyword(ctx, "id", id)
}

func (s *SQLiteStore) RemoveKeyword(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM keywords WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting keyword %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetActiveKeywordTexts(ctx context.Context) ([]string, error) {
	var texts []string
	err := s.db.SelectContext(ctx, &texts,
		"SELECT keyword FROM keywords WHERE is_active = 1 ORDER BY rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("listing active keywords: %w", err)
	}
	return texts, nil
}

const configColumns = `id, imap_server, imap_port, pop_server, pop_port, smtp_server, smtp_port,
	email, password, graph_app_id, graph_client_secret, graph_tenant_id,
	openai_api_key, is_active, created_at`

func (s *SQLiteStore) GetConfiguration(ctx context.Context) (*models.Configuration, error) {
	var c models.Configuration
	err := s.db.GetContext(ctx, &c, "SELECT "+configColumns+" FROM configuration LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	return &c, nil
}

func (s *SQLiteStore) SaveConfiguration(ctx context.Context, c models.Configuration) (*models.Configuration, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var prev *models.Configuration
	var existing models.Configuration
	err = tx.GetContext(ctx, &existing, "SELECT "+configColumns+" FROM configuration LIMIT 1")
	switch {
	case err == nil:
		prev = &existing
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	c = prepareConfiguration(prev, c)

	if _, err := tx.ExecContext(ctx, "DELETE FROM configuration"); err != nil {
		return nil, fmt.Errorf("clearing configuration: %w", err)
	}
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO configuration (`+configColumns+`) VALUES (
			:id, :imap_server, :imap_port, :pop_server, :pop_port, :smtp_server, :smtp_port,
			:email, :password, :graph_app_id, :graph_client_secret, :graph_tenant_id,
			:openai_api_key, :is_active, :created_at)`, c)
	if err != nil {
		return nil, fmt.Errorf("saving configuration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing configuration: %w", err)
	}
	return &c, nil
}

const statusColumns = `email_monitor_active, auto_responder_active, outlook_connected,
	onedrive_connected, last_email_check, emails_processed, active_cases,
	response_rate, last_error, last_updated`

func (s *SQLiteStore) loadStatus(ctx context.Context, tx *sqlx.Tx) (*models.SystemStatus, error) {
	var st models.SystemStatus
	err := tx.GetContext(ctx, &st, "SELECT "+statusColumns+" FROM system_status WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		st = models.DefaultSystemStatus()
		st.LastUpdated = now()
		_, err = tx.ExecContext(ctx,
			"INSERT INTO system_status (id, response_rate, last_updated) VALUES (1, ?, ?)",
			st.ResponseRate, st.LastUpdated)
		if err != nil {
			return nil, fmt.Errorf("creating system status: %w", err)
		}
		return &st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading system status: %w", err)
	}
	return &st, nil
}

func (s *SQLiteStore) GetSystemStatus(ctx context.Context) (*models.SystemStatus, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	st, err := s.loadStatus(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing system status: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) UpdateSystemStatus(ctx context.Context, u models.StatusUpdate) (*models.SystemStatus, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	st, err := s.loadStatus(ctx, tx)
	if err != nil {
		return nil, err
	}
	u.Apply(st)
	st.LastUpdated = now()

	_, err = tx.NamedExecContext(ctx, `
		UPDATE system_status SET
			email_monitor_active = :email_monitor_active,
			auto_responder_active = :auto_responder_active,
			outlook_connected = :outlook_connected,
			onedrive_connected = :onedrive_connected,
			last_email_check = :last_email_check,
			emails_processed = :emails_processed,
			active_cases = :active_cases,
			response_rate = :response_rate,
			last_error = :last_error,
			last_updated = :last_updated
		WHERE id = 1`, st)
	if err != nil {
		return nil, fmt.Errorf("updating system status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing system status: %w", err)
	}
	return st, nil
}
