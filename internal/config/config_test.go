package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashish9731/email-responder/internal/logger"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadAppliesTemplateAndDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TEST_IMAP_SERVER", "imap.example.com")

	writeFile(t, filepath.Join(dir, "templates", "imap.yaml"), `
mailbox:
  provider: "imap"
  imap:
    server: "${TEST_IMAP_SERVER}"
    port: 143
  smtp:
    server: "smtp.example.com"
`)
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, `
meta:
  id: "desk"
  template: "imap"
mailbox:
  address: "desk@example.com"
  imap:
    port: 993
keywords:
  - "engine overheating"
`)

	cfg, used, err := Load(cfgPath, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, cfgPath, used)

	assert.Equal(t, "desk", cfg.Meta.ID)
	assert.Equal(t, "imap", cfg.Mailbox.Provider)
	assert.Equal(t, "imap.example.com", cfg.Mailbox.IMAP.Server)
	// the config file wins over the template
	assert.Equal(t, 993, cfg.Mailbox.IMAP.Port)
	assert.Equal(t, "smtp.example.com", cfg.Mailbox.SMTP.Server)
	assert.Equal(t, []string{"engine overheating"}, cfg.Keywords)

	// untouched sections come from Defaults
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "second", cfg.Scheduling.FrequencyEvery)
	assert.Equal(t, 30, cfg.Scheduling.FrequencyAmount)
	assert.Equal(t, "INBOX", cfg.Mailbox.IMAP.Folder)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, `
storage:
  type: "file"
`)
	t.Setenv("RESPONDER_STORAGE_TYPE", "redis")
	t.Setenv("RESPONDER_STORAGE_REDIS_URL", "redis://localhost:6379/0")

	cfg, _, err := Load(cfgPath, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Storage.Type)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Storage.RedisURL)
}

func TestLoadMissingTemplate(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, `
meta:
  template: "nope"
`)

	_, _, err := Load(cfgPath, logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestMarshalRoundTrips(t *testing.T) {
	data, err := Marshal(Defaults())
	require.NoError(t, err)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, string(data))

	cfg, _, err := Load(cfgPath, logger.Discard())
	require.NoError(t, err)
	want := Defaults()
	assert.Equal(t, want.Server, cfg.Server)
	assert.Equal(t, want.Storage, cfg.Storage)
	assert.Equal(t, want.Graph, cfg.Graph)
	assert.Equal(t, want.Scheduling, cfg.Scheduling)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	writeFile(t, cfgPath, "logging:\n  level: \"info\"\n")

	w, err := StartWatcher(cfgPath, logger.Discard())
	require.NoError(t, err)
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "other.yaml"), "ignored: true\n")
	writeFile(t, cfgPath, "logging:\n  level: \"debug\"\n")

	// a truncating write can surface as more than one event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-w.ReloadChan():
			require.NotNil(t, cfg)
			if cfg.Logging.Level == "debug" {
				return
			}
		case <-deadline:
			t.Fatal("no reload after config change")
		}
	}
}

func TestStartWatcherWithoutFile(t *testing.T) {
	_, err := StartWatcher("", logger.Discard())
	assert.Error(t, err)
}
