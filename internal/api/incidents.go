package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashish9731/email-responder/internal/api/respond"
	"github.com/ashish9731/email-responder/internal/errorlog"
)

const defaultIncidentLimit = 100

type IncidentHandler struct {
	incidents IncidentReader
	logger    *slog.Logger
}

func NewIncidentHandler(incidents IncidentReader, logger *slog.Logger) *IncidentHandler {
	return &IncidentHandler{incidents: incidents, logger: logger}
}

// ListIncidents handles GET /api/errors?case=&category=&since=&limit=
func (h *IncidentHandler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	if h.incidents == nil {
		respond.WriteJSON(w, http.StatusOK, []errorlog.Incident{})
		return
	}

	q := r.URL.Query()
	filter := errorlog.Filter{
		CaseNumber: q.Get("case"),
		Category:   q.Get("category"),
		Limit:      defaultIncidentLimit,
	}
	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			respond.WriteBadRequest(w, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = since
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respond.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	incidents, err := h.incidents.GetIncidents(filter)
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	if incidents == nil {
		incidents = []errorlog.Incident{}
	}
	respond.WriteJSON(w, http.StatusOK, incidents)
}
