package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleDocumentResults returns the stored results of a report by document ID.
func (s *Server) handleDocumentResults(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	stored, err := s.orchestrator.Store().Results(r.Context(), docID)
	if err != nil {
		jsonError(w, "failed to load results: "+err.Error(), http.StatusBadGateway)
		return
	}
	if stored == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

// handleDeleteDocument removes a stored report and its results.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	deleted, err := s.orchestrator.Store().Delete(r.Context(), docID)
	if err != nil {
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusBadGateway)
		return
	}
	if !deleted {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	s.log.Info().Str("doc_id", docID).Msg("document deleted")
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "deleted": true})
}
