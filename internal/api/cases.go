package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ashish9731/email-responder/internal/api/respond"
	"github.com/ashish9731/email-responder/internal/models"
	"github.com/ashish9731/email-responder/internal/storage"
)

type CaseHandler struct {
	store   storage.Store
	monitor Monitor
	logger  *slog.Logger
}

func NewCaseHandler(store storage.Store, monitor Monitor, logger *slog.Logger) *CaseHandler {
	return &CaseHandler{store: store, monitor: monitor, logger: logger}
}

// ListCases returns cases newest first, optionally filtered by ?status=
func (h *CaseHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := h.store.ListCases(r.Context())
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}

	if s := r.URL.Query().Get("status"); s != "" {
		want := models.CaseStatus(s)
		if !want.Valid() {
			respond.WriteBadRequest(w, "unknown status "+s)
			return
		}
		filtered := make([]models.Case, 0, len(cases))
		for _, c := range cases {
			if c.Status == want {
				filtered = append(filtered, c)
			}
		}
		cases = filtered
	}
	if cases == nil {
		cases = []models.Case{}
	}
	respond.WriteJSON(w, http.StatusOK, cases)
}

func (h *CaseHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.GetCase(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, c)
}

// CompleteCase closes a case. Without a coordinator the store is updated
// directly.
func (h *CaseHandler) CompleteCase(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var (
		c   *models.Case
		err error
	)
	if h.monitor != nil {
		c, err = h.monitor.CompleteCase(r.Context(), id)
	} else {
		c, err = h.store.UpdateCase(r.Context(), id, models.CaseUpdate{Status: models.Ptr(models.StatusCompleted)})
	}
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, c)
}
