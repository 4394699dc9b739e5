package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"fmconsole/internal/location"
	"fmconsole/internal/model"
	"fmconsole/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OpenSessionRequest struct {
	Kind      model.RecordKind `json:"kind"`
	ID        string           `json:"id"`
	Community string           `json:"community,omitempty"`
}

func (d Dependencies) openSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	if req.Kind == "" || req.ID == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "kind and id are required", d.Log)
		return
	}

	view, err := d.Sessions.Open(r.Context(), req.Kind, req.ID, req.Community)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (d Dependencies) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := d.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (d Dependencies) closeSession(w http.ResponseWriter, r *http.Request) {
	if !d.Sessions.Close(r.Context(), chi.URLParam(r, "id")) {
		writeServiceError(w, service.ErrSessionNotFound, d.Log)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d Dependencies) executeCommand(w http.ResponseWriter, r *http.Request) {
	var cmd service.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil || cmd.Op == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "A command needs an op", d.Log)
		return
	}

	view, err := d.Sessions.Execute(r.Context(), chi.URLParam(r, "id"), cmd)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (d Dependencies) submitSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := d.Sessions.Submit(r.Context(), id)
	if err != nil {
		d.Log.Info("Submission failed", zap.String("session_id", id), zap.Error(err))
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (d Dependencies) peekDraft(w http.ResponseWriter, r *http.Request) {
	info, err := d.Sessions.PeekDraft(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (d Dependencies) saveDraft(w http.ResponseWriter, r *http.Request) {
	view, err := d.Sessions.SaveDraft(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (d Dependencies) listLocations(w http.ResponseWriter, r *http.Request) {
	level, err := location.ParseLevel(chi.URLParam(r, "level"))
	if err != nil {
		WriteError(w, http.StatusNotFound, "unknown_level", err.Error(), d.Log)
		return
	}
	parent := r.URL.Query().Get("parent")
	if parent == "" && level != location.Building {
		WriteError(w, http.StatusBadRequest, "invalid_request", "parent is required below the building level", d.Log)
		return
	}

	opts, err := d.Sessions.LocationOptions(r.Context(), level, parent)
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	if opts == nil {
		opts = []location.Option{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"level":   level.String(),
		"parent":  parent,
		"options": opts,
	})
}

type UpdateReportStatusRequest struct {
	Status string `json:"status"`
}

func (d Dependencies) getReport(w http.ResponseWriter, r *http.Request) {
	view, err := d.Reports.Get(r.Context(), chi.URLParam(r, "community"), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, d.Log)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (d Dependencies) updateReportStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateReportStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", d.Log)
		return
	}
	view, err := d.Reports.UpdateStatus(r.Context(), chi.URLParam(r, "community"), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) || view == nil {
			writeServiceError(w, err, d.Log)
			return
		}
		// the update failed upstream; report the unchanged status alongside the error
		code := service.ErrorCode(err)
		writeJSON(w, statusFor(code), map[string]interface{}{
			"error":   code,
			"code":    code,
			"message": service.ErrorMessage(err),
			"report":  view,
		})
		return
	}
	writeJSON(w, http.StatusOK, view)
}
