package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/dgallion1/qcsr/internal/decoder"
	"github.com/dgallion1/qcsr/internal/extract"
	"github.com/dgallion1/qcsr/internal/srtree"
	"github.com/dgallion1/qcsr/internal/summary"
)

// decodeUpload reads and decodes the uploaded report, writing the error
// response itself on failure.
func (s *Server) decodeUpload(w http.ResponseWriter, r *http.Request) (*srtree.Document, string, bool) {
	filename, data, err := s.readUpload(w, r)
	if err != nil {
		writeUploadError(w, err)
		return nil, "", false
	}
	doc, err := decoder.ReadBytes(data, filename)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return nil, "", false
	}
	return doc, filename, true
}

// extractStatus maps extraction failures to HTTP status codes.
func extractStatus(err error) int {
	var mErr *extract.MalformedNodeError
	var cErr *extract.ClassificationError
	var oErr *extract.MissingObjectError
	switch {
	case errors.As(err, &mErr), errors.As(err, &cErr), errors.As(err, &oErr):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// handleExtract classifies an uploaded report synchronously.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	defer cleanupForm(r)
	doc, filename, ok := s.decodeUpload(w, r)
	if !ok {
		return
	}

	start := time.Now()
	res, err := s.orchestrator.Extractor().Extract(doc)
	s.orchestrator.Stats().Record(time.Since(start))
	if err != nil {
		s.log.Warn().Err(err).Str("filename", filename).Msg("extraction failed")
		jsonError(w, err.Error(), extractStatus(err))
		return
	}

	switch r.URL.Query().Get("format") {
	case "html":
		page, err := summary.HTML(summary.FromDocument(doc, filename, res))
		if err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write(summary.Markdown(summary.FromDocument(doc, filename, res)))
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// handleParams lists the parameters stored in an uploaded report. Object
// values are raw bytes and encode as base64.
func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	defer cleanupForm(r)
	doc, filename, ok := s.decodeUpload(w, r)
	if !ok {
		return
	}

	params, err := extract.ListParams(doc, s.log.With().Str("filename", filename).Logger())
	if err != nil {
		jsonError(w, err.Error(), extractStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"filename": filename,
		"params":   params,
	})
}
