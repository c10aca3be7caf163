package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashish9731/email-responder/internal/api/respond"
	"github.com/ashish9731/email-responder/internal/status"
)

var errNoMonitor = errors.New("email monitor is not available in this process")

// SystemHandler serves the dashboard header and monitor control
type SystemHandler struct {
	facade  *status.Facade
	monitor Monitor
	logger  *slog.Logger
}

func NewSystemHandler(facade *status.Facade, monitor Monitor, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{facade: facade, monitor: monitor, logger: logger}
}

// Health handles GET /healthz. It always answers 200 while the process serves.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if h.monitor != nil {
		resp["monitorRunning"] = h.monitor.Status().IsRunning
	}
	respond.WriteJSON(w, http.StatusOK, resp)
}

func (h *SystemHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ov, err := h.facade.Overview(r.Context())
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, ov)
}

func (h *SystemHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.facade.Stats(r.Context())
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, st)
}

func (h *SystemHandler) StartMonitor(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "not_connected", errNoMonitor.Error())
		return
	}
	if err := h.monitor.Start(r.Context()); err != nil {
		writeErr(w, h.logger, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, h.monitor.Status())
}

func (h *SystemHandler) StopMonitor(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "not_connected", errNoMonitor.Error())
		return
	}
	if err := h.monitor.Stop(r.Context()); err != nil {
		writeErr(w, h.logger, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, h.monitor.Status())
}

// Poll runs one cycle now and answers with the refreshed overview
func (h *SystemHandler) Poll(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "not_connected", errNoMonitor.Error())
		return
	}
	if err := h.monitor.RunCycle(r.Context()); err != nil {
		writeErr(w, h.logger, err)
		return
	}
	h.GetStatus(w, r)
}
