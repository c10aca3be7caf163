package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ashish9731/email-responder/internal/api/respond"
	"github.com/ashish9731/email-responder/internal/storage"
)

type KeywordHandler struct {
	store  storage.Store
	logger *slog.Logger
}

func NewKeywordHandler(store storage.Store, logger *slog.Logger) *KeywordHandler {
	return &KeywordHandler{store: store, logger: logger}
}

func (h *KeywordHandler) ListKeywords(w http.ResponseWriter, r *http.Request) {
	keywords, err := h.store.ListKeywords(r.Context())
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, keywords)
}

// CreateKeyword adds a keyword. isActive defaults to true.
func (h *KeywordHandler) CreateKeyword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Keyword  string `json:"keyword"`
		IsActive *bool  `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	kw, err := h.store.AddKeyword(r.Context(), in.Keyword, active)
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	h.logger.Info("keyword added", "keyword", kw.Keyword, "active", kw.IsActive)
	respond.WriteJSON(w, http.StatusCreated, kw)
}

func (h *KeywordHandler) UpdateKeyword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		IsActive *bool `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if in.IsActive == nil {
		respond.WriteBadRequest(w, "isActive is required")
		return
	}

	kw, err := h.store.UpdateKeyword(r.Context(), mux.Vars(r)["id"], *in.IsActive)
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, kw)
}

func (h *KeywordHandler) DeleteKeyword(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.store.RemoveKeyword(r.Context(), id); err != nil {
		writeErr(w, h.logger, err)
		return
	}
	h.logger.Info("keyword removed", "keyword_id", id)
	respond.WriteNoContent(w)
}
