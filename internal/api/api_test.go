package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashish9731/email-responder/internal/api/respond"
	"github.com/ashish9731/email-responder/internal/errorlog"
	"github.com/ashish9731/email-responder/internal/mailbox"
	"github.com/ashish9731/email-responder/internal/models"
	"github.com/ashish9731/email-responder/internal/monitor"
	"github.com/ashish9731/email-responder/internal/status"
	"github.com/ashish9731/email-responder/internal/storage"
)

type fakeMonitor struct {
	mu       sync.Mutex
	store    storage.Store
	running  bool
	polls    int
	cycleErr error
}

func (m *fakeMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return monitor.ErrAlreadyRunning
	}
	m.running = true
	return nil
}

func (m *fakeMonitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

func (m *fakeMonitor) RunCycle(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
	return m.cycleErr
}

func (m *fakeMonitor) CompleteCase(ctx context.Context, id string) (*models.Case, error) {
	return m.store.UpdateCase(ctx, id, models.CaseUpdate{Status: models.Ptr(models.StatusCompleted)})
}

func (m *fakeMonitor) Status() models.MonitorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.MonitorState{IsRunning: m.running}
}

type fakeIncidents struct {
	last      errorlog.Filter
	incidents []errorlog.Incident
}

func (f *fakeIncidents) GetIncidents(filter errorlog.Filter) ([]errorlog.Incident, error) {
	f.last = filter
	return f.incidents, nil
}

type testServer struct {
	srv       *httptest.Server
	store     storage.Store
	monitor   *fakeMonitor
	incidents *fakeIncidents
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := storage.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	ts := &testServer{
		store:     store,
		monitor:   &fakeMonitor{store: store},
		incidents: &fakeIncidents{},
	}
	router := NewRouter(Options{
		Store:       store,
		Monitor:     ts.monitor,
		Incidents:   ts.incidents,
		MetricsPath: "/metrics",
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ts.srv = httptest.NewServer(router)
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestKeywordLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/keywords", map[string]any{"keyword": "engine fire"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	kw := decode[models.Keyword](t, resp)
	assert.Equal(t, "engine fire", kw.Keyword)
	assert.True(t, kw.IsActive)

	resp = ts.do(t, http.MethodPost, "/api/keywords", map[string]any{"keyword": "engine fire"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", decode[respond.ErrorResponse](t, resp).Category)

	resp = ts.do(t, http.MethodPost, "/api/keywords", map[string]any{"keyword": "   "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid", decode[respond.ErrorResponse](t, resp).Category)

	resp = ts.do(t, http.MethodPatch, "/api/keywords/"+kw.ID, map[string]any{"isActive": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[models.Keyword](t, resp).IsActive)

	active, err := ts.store.GetActiveKeywordTexts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)

	resp = ts.do(t, http.MethodPatch, "/api/keywords/"+kw.ID, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/keywords", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Keyword](t, resp), 1)

	resp = ts.do(t, http.MethodDelete, "/api/keywords/"+kw.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/api/keywords/"+kw.ID, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decode[respond.ErrorResponse](t, resp).Category)
}

func TestCases(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	first, err := ts.store.CreateCase(ctx, models.NewCase{
		SenderEmail: "captain@example.com",
		Subject:     "Engine failure",
		Keywords:    []string{"engine failure"},
	})
	require.NoError(t, err)
	_, err = ts.store.CreateCase(ctx, models.NewCase{
		SenderEmail: "chief@example.com",
		Subject:     "Engine fire",
		Keywords:    []string{"engine fire"},
	})
	require.NoError(t, err)

	resp := ts.do(t, http.MethodGet, "/api/email-cases", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Case](t, resp), 2)

	resp = ts.do(t, http.MethodGet, "/api/email-cases/"+first.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, first.CaseNumber, decode[models.Case](t, resp).CaseNumber)

	resp = ts.do(t, http.MethodGet, "/api/email-cases/missing", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decode[respond.ErrorResponse](t, resp).Category)

	for i := 0; i < 2; i++ {
		resp = ts.do(t, http.MethodPost, "/api/email-cases/"+first.ID+"/complete", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, models.StatusCompleted, decode[models.Case](t, resp).Status)
	}

	resp = ts.do(t, http.MethodGet, "/api/email-cases?status=completed", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	done := decode[[]models.Case](t, resp)
	require.Len(t, done, 1)
	assert.Equal(t, first.ID, done[0].ID)

	resp = ts.do(t, http.MethodGet, "/api/email-cases?status=archived", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[status.Stats](t, resp)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.Completed)
	assert.Equal(t, 1, st.Active)
}

func TestConfigurationRedactsAndKeepsSecrets(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/configuration", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodPut, "/api/configuration", models.Configuration{
		Email:        "ops@example.com",
		IMAPServer:   "imap.example.com",
		IMAPPort:     993,
		Password:     "hunter2",
		OpenAIAPIKey: "sk-test",
		IsActive:     true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decode[models.Configuration](t, resp)
	assert.Equal(t, "********", saved.Password)
	assert.Equal(t, "********", saved.OpenAIAPIKey)

	// send the masked copy back with one field edited
	saved.IMAPPort = 143
	resp = ts.do(t, http.MethodPut, "/api/configuration", saved)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stored, err := ts.store.GetConfiguration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 143, stored.IMAPPort)
	assert.Equal(t, "hunter2", stored.Password)
	assert.Equal(t, "sk-test", stored.OpenAIAPIKey)
	assert.Equal(t, saved.ID, stored.ID)

	resp = ts.do(t, http.MethodGet, "/api/configuration", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "********", decode[models.Configuration](t, resp).Password)
}

func TestMonitorControl(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/email-monitor/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[models.MonitorState](t, resp).IsRunning)

	resp = ts.do(t, http.MethodPost, "/api/email-monitor/start", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", decode[respond.ErrorResponse](t, resp).Category)

	resp = ts.do(t, http.MethodGet, "/api/system/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ov := decode[status.Overview](t, resp)
	assert.True(t, ov.Monitor.IsRunning)
	assert.Equal(t, "0%", ov.System.ResponseRate)

	resp = ts.do(t, http.MethodPost, "/api/email-monitor/poll", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, ts.monitor.polls)

	ts.monitor.cycleErr = fmt.Errorf("list unread: %w", mailbox.ErrNotConnected)
	resp = ts.do(t, http.MethodPost, "/api/email-monitor/poll", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode[respond.ErrorResponse](t, resp)
	assert.Equal(t, "not_connected", body.Category)
	assert.Equal(t, monitor.CategoryNotConnected.Describe(), body.Error)

	resp = ts.do(t, http.MethodPost, "/api/email-monitor/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[models.MonitorState](t, resp).IsRunning)
}

func TestWithoutMonitor(t *testing.T) {
	store := storage.NewMemoryStore()
	defer store.Close()
	srv := httptest.NewServer(NewRouter(Options{Store: store}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/email-monitor/start", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	st, err := http.Get(srv.URL + "/api/system/status")
	require.NoError(t, err)
	defer st.Body.Close()
	assert.Equal(t, http.StatusOK, st.StatusCode)

	errs, err := http.Get(srv.URL + "/api/errors")
	require.NoError(t, err)
	defer errs.Body.Close()
	assert.Equal(t, http.StatusOK, errs.StatusCode)
}

func TestIncidents(t *testing.T) {
	ts := newTestServer(t)
	ts.incidents.incidents = []errorlog.Incident{{
		ID:         "i-1",
		CaseNumber: "VE-2026-001",
		Category:   "send_failure",
		Message:    "smtp down",
		Time:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}}

	resp := ts.do(t, http.MethodGet, "/api/errors?case=VE-2026-001&category=send_failure&since=2026-03-01T00:00:00Z&limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[[]errorlog.Incident](t, resp)
	require.Len(t, got, 1)
	assert.Equal(t, "smtp down", got[0].Message)

	assert.Equal(t, "VE-2026-001", ts.incidents.last.CaseNumber)
	assert.Equal(t, "send_failure", ts.incidents.last.Category)
	assert.Equal(t, 5, ts.incidents.last.Limit)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), ts.incidents.last.Since)

	resp = ts.do(t, http.MethodGet, "/api/errors?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/errors?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["monitorRunning"])

	resp = ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "go_goroutines")
}
