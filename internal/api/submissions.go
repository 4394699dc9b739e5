package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"fmconsole/internal/db"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// SubmissionResponse is one audit row as returned to consoles
type SubmissionResponse struct {
	ID         string                 `json:"id"`
	SessionID  string                 `json:"sessionId"`
	RecordKind string                 `json:"recordKind"`
	RecordID   string                 `json:"recordId"`
	Status     string                 `json:"status"`
	Answered   int                    `json:"answered"`
	Negative   int                    `json:"negative"`
	Complaints int                    `json:"complaints"`
	Error      *string                `json:"error,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OperatorID *string                `json:"operatorId,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}

func toSubmissionResponse(s db.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:         s.ID,
		SessionID:  s.SessionID,
		RecordKind: s.RecordKind,
		RecordID:   s.RecordID,
		Status:     s.Status,
		Answered:   s.Answered,
		Negative:   s.Negative,
		Complaints: s.Complaints,
		Error:      s.Error,
		Payload:    s.Payload,
		OperatorID: s.OperatorID,
		CreatedAt:  s.CreatedAt,
	}
}

func (d Dependencies) listSubmissions(w http.ResponseWriter, r *http.Request) {
	if d.Submissions == nil {
		WriteError(w, http.StatusNotImplemented, "audit_disabled", "Submission history is not configured", d.Log)
		return
	}

	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	rows, err := d.Submissions.ListSubmissions(r.Context(), db.ListSubmissionsParams{
		RecordKind: r.URL.Query().Get("kind"),
		RecordID:   r.URL.Query().Get("record"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		d.Log.Error("Failed to list submissions", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "list_failed", "Failed to list submissions", d.Log)
		return
	}

	out := make([]SubmissionResponse, 0, len(rows))
	for _, s := range rows {
		out = append(out, toSubmissionResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":  out,
		"limit":  limit,
		"offset": offset,
	})
}

func (d Dependencies) getSubmission(w http.ResponseWriter, r *http.Request) {
	if d.Submissions == nil {
		WriteError(w, http.StatusNotImplemented, "audit_disabled", "Submission history is not configured", d.Log)
		return
	}
	s, err := d.Submissions.GetSubmissionByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, pgx.ErrNoRows) {
		WriteError(w, http.StatusNotFound, "not_found", "Submission not found", d.Log)
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "get_failed", "Failed to load submission", d.Log)
		return
	}
	writeJSON(w, http.StatusOK, toSubmissionResponse(s))
}
