package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashish9731/email-responder/internal/api/respond"
	"github.com/ashish9731/email-responder/internal/models"
	"github.com/ashish9731/email-responder/internal/storage"
)

type ConfigurationHandler struct {
	store  storage.Store
	logger *slog.Logger
}

func NewConfigurationHandler(store storage.Store, logger *slog.Logger) *ConfigurationHandler {
	return &ConfigurationHandler{store: store, logger: logger}
}

// GetConfiguration returns the saved configuration with secrets masked
func (h *ConfigurationHandler) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.GetConfiguration(r.Context())
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, c.Redacted())
}

// SaveConfiguration replaces the configuration. Masked secrets sent back
// unchanged keep their stored value.
func (h *ConfigurationHandler) SaveConfiguration(w http.ResponseWriter, r *http.Request) {
	var in models.Configuration
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}

	prev, err := h.store.GetConfiguration(r.Context())
	switch {
	case err == nil:
		in = in.MergeSecrets(*prev)
	case errors.Is(err, storage.ErrNotFound):
	default:
		writeErr(w, h.logger, err)
		return
	}

	saved, err := h.store.SaveConfiguration(r.Context(), in)
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	h.logger.Info("configuration saved", "email", saved.Email)
	respond.WriteJSON(w, http.StatusOK, saved.Redacted())
}
