package api

import (
	"context"
	"io"
	"net/http"

	"fmconsole/internal/auth"
	"fmconsole/internal/db"
	"fmconsole/internal/location"
	"fmconsole/internal/model"
	"fmconsole/internal/service"
	"fmconsole/internal/ws"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Sessions is the session service as used by the HTTP handlers.
// *service.SessionService implements it.
type Sessions interface {
	Open(ctx context.Context, kind model.RecordKind, id, community string) (*service.View, error)
	Get(ctx context.Context, id string) (*service.View, error)
	Execute(ctx context.Context, id string, cmd service.Command) (*service.View, error)
	Submit(ctx context.Context, id string) (*service.View, error)
	Close(ctx context.Context, id string) bool
	Upload(ctx context.Context, id, slot, name, contentType string, size int64, r io.Reader) (*service.View, error)
	OpenFile(ctx context.Context, id, object string) (io.ReadCloser, error)
	PeekDraft(ctx context.Context, id string) (*service.DraftInfo, error)
	SaveDraft(ctx context.Context, id string) (*service.View, error)
	LocationOptions(ctx context.Context, level location.Level, parentID string) ([]location.Option, error)
}

var _ Sessions = (*service.SessionService)(nil)

// Reports moderates community reports outside of a session
type Reports interface {
	Get(ctx context.Context, community, id string) (*service.ReportView, error)
	UpdateStatus(ctx context.Context, community, id, status string) (*service.ReportView, error)
}

// SubmissionLog reads the audit trail. *db.Queries implements it.
type SubmissionLog interface {
	ListSubmissions(ctx context.Context, p db.ListSubmissionsParams) ([]db.Submission, error)
	GetSubmissionByID(ctx context.Context, id string) (db.Submission, error)
}

// PreviewVerifier resolves a signed preview token to the object it grants
type PreviewVerifier interface {
	VerifyPreview(token string) (string, error)
}

type Dependencies struct {
	Sessions    Sessions
	Reports     Reports
	Submissions SubmissionLog
	Previews    PreviewVerifier
	Hub         *ws.Hub
	Auth        *auth.JWTConfig
	Log         *zap.Logger
	// MaxUploadBytes caps multipart bodies; the staging policy still applies per file.
	MaxUploadBytes int64
}

func Routes(d Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger(d.Log))
	if d.Auth != nil {
		r.Use(d.Auth.Middleware)
	}

	// Session endpoints
	r.Post("/sessions", d.openSession)
	r.Get("/sessions/{id}", d.getSession)
	r.Delete("/sessions/{id}", d.closeSession)
	r.Post("/sessions/{id}/commands", d.executeCommand)
	r.Post("/sessions/{id}/files", d.uploadFile)
	r.Post("/sessions/{id}/submit", d.submitSession)
	r.Get("/sessions/{id}/draft", d.peekDraft)
	r.Post("/sessions/{id}/draft", d.saveDraft)

	// Location cascade
	r.Get("/locations/{level}", d.listLocations)

	// Community reports
	r.Get("/reports/{community}/{id}", d.getReport)
	r.Post("/reports/{community}/{id}/status", d.updateReportStatus)

	// Audit trail
	r.Get("/submissions", d.listSubmissions)
	r.Get("/submissions/{id}", d.getSubmission)

	// Staged file previews are authorized by their signed token
	r.Get("/files/*", d.previewFile)

	// WebSocket endpoint
	r.Get("/ws", d.wsHandler)

	return r
}
