package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"fmconsole/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// defaultUploadBytes bounds a multipart body when no limit is configured
const defaultUploadBytes = 12 << 20

// uploadFile stages one file into a session slot. The body is multipart with the file
// under "file"; the slot comes from the query string.
func (d Dependencies) uploadFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	slot := r.URL.Query().Get("slot")
	if slot == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "slot parameter required", d.Log)
		return
	}

	limit := d.MaxUploadBytes
	if limit <= 0 {
		limit = defaultUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			WriteError(w, http.StatusRequestEntityTooLarge, "file_too_large", storage.ErrFileTooLarge.Error(), d.Log)
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_request", "file part required", d.Log)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(path.Ext(header.Filename))); byExt != "" {
			contentType = byExt
		}
	}

	view, err := d.Sessions.Upload(r.Context(), id, slot, header.Filename, contentType, header.Size, file)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// previewFile streams a staged file to the holder of a valid preview token.
func (d Dependencies) previewFile(w http.ResponseWriter, r *http.Request) {
	object := chi.URLParam(r, "*")
	if d.Previews == nil {
		WriteError(w, http.StatusNotFound, "not_found", "Previews are not available", d.Log)
		return
	}
	granted, err := d.Previews.VerifyPreview(r.URL.Query().Get("token"))
	if err != nil || granted != object {
		WriteError(w, http.StatusForbidden, "invalid_token", storage.ErrBadSignature.Error(), d.Log)
		return
	}

	// objects live under sessions/<session id>/
	parts := strings.SplitN(object, "/", 3)
	if len(parts) != 3 || parts[0] != "sessions" {
		WriteError(w, http.StatusNotFound, "not_found", "File not found", d.Log)
		return
	}

	rc, err := d.Sessions.OpenFile(r.Context(), parts[1], object)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(path.Ext(object)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := io.Copy(w, rc); err != nil {
		d.Log.Warn("Preview copy interrupted", zap.String("object", object), zap.Error(err))
	}
}
