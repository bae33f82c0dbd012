package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kbforge/kbforge/internal/core"
)

// ProgressSource exposes the last reported ingestion percentage per
// knowledge base.
type ProgressSource interface {
	Latest(kbID string) (int, bool)
}

// StatusHandler serves the read-only observer endpoints for ingestion state.
// The product UI itself lives elsewhere; this surface exists so dashboards
// and operators can watch jobs progress.
type StatusHandler struct {
	db       core.DbClient
	progress ProgressSource
}

func NewStatusHandler(db core.DbClient, progress ProgressSource) *StatusHandler {
	return &StatusHandler{db: db, progress: progress}
}

// GetStatus returns the knowledge base's metadata map, including ingestStatus,
// timestamps, counts and the last ingestError.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	kbID := chi.URLParam(r, "kbID")

	kb, err := h.db.GetKnowledgeBase(r.Context(), kbID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if kb == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "knowledge base not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":       kb.ID,
		"title":    kb.Title,
		"metadata": kb.Metadata,
	})
}

// GetProgress returns the last reported pages-processed percentage.
func (h *StatusHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	kbID := chi.URLParam(r, "kbID")

	percent, ok := h.progress.Latest(kbID)
	writeJSON(w, http.StatusOK, map[string]any{
		"kbId":     kbID,
		"percent":  percent,
		"reported": ok,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
