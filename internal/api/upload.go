package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/qcsr/internal/decoder"
)

// uploadError carries the status code for a rejected upload.
type uploadError struct {
	msg  string
	code int
}

func (e *uploadError) Error() string { return e.msg }

func writeUploadError(w http.ResponseWriter, err error) {
	if uErr, ok := err.(*uploadError); ok {
		jsonError(w, uErr.msg, uErr.code)
		return
	}
	jsonError(w, err.Error(), http.StatusBadRequest)
}

// parseForm limits the request body and parses a multipart form.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request, maxFiles int64) error {
	// extra 1MB per file for form overhead
	r.Body = http.MaxBytesReader(w, r.Body, maxFiles*(s.cfg.MaxUploadBytes+1024*1024))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return &uploadError{"invalid multipart form: " + err.Error(), http.StatusBadRequest}
	}
	return nil
}

// readFile reads one uploaded report, enforcing the extension and size limits.
func (s *Server) readFile(fh *multipart.FileHeader) (string, []byte, error) {
	filename := sanitizeFilename(fh.Filename)
	if !decoder.IsSupportedExtension(filename) {
		return filename, nil, &uploadError{fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest}
	}

	f, err := fh.Open()
	if err != nil {
		return filename, nil, &uploadError{"failed to open file", http.StatusInternalServerError}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return filename, nil, &uploadError{"failed to read file", http.StatusInternalServerError}
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return filename, nil, &uploadError{fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge}
	}
	return filename, data, nil
}

// readUpload parses a single-file form under the "file" field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	if err := s.parseForm(w, r, 1); err != nil {
		return "", nil, err
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		return "", nil, &uploadError{"file is required", http.StatusBadRequest}
	}
	return s.readFile(files[0])
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" || name == "_" {
		name = "unnamed"
	}
	return name
}

func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}
