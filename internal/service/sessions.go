package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"time"

	"fmconsole/internal/auth"
	"fmconsole/internal/backend"
	"fmconsole/internal/db"
	"fmconsole/internal/draft"
	"fmconsole/internal/location"
	"fmconsole/internal/metrics"
	"fmconsole/internal/model"
	"fmconsole/internal/permit"
	"fmconsole/internal/schema"
	"fmconsole/internal/storage"
	"fmconsole/internal/ticket"
	"fmconsole/internal/wizard"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound = errors.New("session not found or expired")
	ErrNotEditable     = errors.New("session is not editable")
	ErrNoDraft         = errors.New("no saved draft for this task")
	ErrDraftsDisabled  = errors.New("drafts are not configured")
)

// Upstream is the facilities backend as seen by sessions. *backend.Client implements it.
type Upstream interface {
	location.OptionSource
	ReportUpstream
	FetchTask(ctx context.Context, id string) (backend.Record, error)
	SubmitTask(ctx context.Context, payload interface{}) (backend.TaskStats, error)
	FetchPermit(ctx context.Context, id string) (backend.Record, error)
	FetchPermitOfficers(ctx context.Context, id string) (*permit.Officers, error)
	SubmitPermit(ctx context.Context, id string, form url.Values) error
	FetchTicket(ctx context.Context, id string) (backend.Record, error)
	UpdateTicket(ctx context.Context, write func(mw *multipart.Writer) error) (backend.Record, error)
}

var _ Upstream = (*backend.Client)(nil)

// AuditLog records submission attempts. *db.Queries implements it.
type AuditLog interface {
	InsertSubmission(ctx context.Context, p db.InsertSubmissionParams) (db.Submission, error)
}

type EventBus interface {
	PublishSession(sessionID string, event map[string]interface{}) error
}

// Options tune the session cache
type Options struct {
	TTL         time.Duration
	MaxSessions int
	SiteID      string
}

// SessionService owns every live editing session.
type SessionService struct {
	up        Upstream
	locations location.OptionSource
	deriver   *schema.Deriver
	stager    *storage.Stager
	drafts    draft.Store
	audit     AuditLog
	bus       EventBus
	reports   *ReportService
	jobClient JobClient
	metrics   *metrics.Metrics
	sessions  *expirable.LRU[string, *Session]
	ttl       time.Duration
	siteID    string
	log       *zap.Logger
	now       func() time.Time
}

func NewSessionService(up Upstream, deriver *schema.Deriver, stager *storage.Stager, bus EventBus, opts Options, log *zap.Logger) *SessionService {
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1024
	}
	s := &SessionService{
		up:        up,
		locations: up,
		deriver:   deriver,
		stager:    stager,
		bus:       bus,
		reports:   NewReportService(up, log),
		ttl:       opts.TTL,
		siteID:    opts.SiteID,
		log:       log,
		now:       time.Now,
	}
	s.sessions = expirable.NewLRU[string, *Session](opts.MaxSessions, s.evicted, opts.TTL)
	return s
}

// SetJobClient sets the job client for scheduling background jobs
func (s *SessionService) SetJobClient(client JobClient) { s.jobClient = client }

// SetDraftStore enables save_draft and restore_draft
func (s *SessionService) SetDraftStore(store draft.Store) { s.drafts = store }

// SetAuditLog enables the submission audit trail
func (s *SessionService) SetAuditLog(audit AuditLog) { s.audit = audit }

func (s *SessionService) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// SetLocationSource replaces the option source, e.g. with a cached one.
func (s *SessionService) SetLocationSource(src location.OptionSource) { s.locations = src }

func (s *SessionService) Reports() *ReportService { return s.reports }

func (s *SessionService) evicted(id string, _ *Session) {
	if err := s.stager.Purge(context.Background(), id); err != nil {
		s.log.Warn("Failed to purge session files", zap.String("session_id", id), zap.Error(err))
	}
}

func (s *SessionService) newSession(ctx context.Context, kind model.RecordKind, rec model.FormRecord) *Session {
	now := s.now()
	return &Session{
		ID:         ulid.Make().String(),
		Kind:       kind,
		Record:     rec,
		OperatorID: auth.GetOperatorID(ctx),
		token:      auth.UpstreamToken(ctx),
		lifecycle:  newLifecycle(),
		createdAt:  now,
		touched:    now,
	}
}

func (s *SessionService) register(sess *Session) *View {
	s.sessions.Add(sess.ID, sess)
	if s.metrics != nil {
		s.metrics.SessionsOpened.WithLabelValues(string(sess.Kind)).Inc()
	}
	if s.jobClient != nil {
		if err := s.jobClient.ScheduleSessionPurge(sess.ID, s.ttl); err != nil {
			s.log.Warn("Failed to schedule session purge", zap.String("session_id", sess.ID), zap.Error(err))
		}
	}
	s.log.Info("Session opened",
		zap.String("session_id", sess.ID),
		zap.String("kind", string(sess.Kind)),
		zap.String("record_id", sess.Record.ID))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view()
}

// Open dispatches on the record kind. Reports are addressed as "<community>/<id>".
func (s *SessionService) Open(ctx context.Context, kind model.RecordKind, id, community string) (*View, error) {
	switch kind {
	case model.RecordTask:
		return s.OpenTask(ctx, id)
	case model.RecordPermit:
		return s.OpenPermit(ctx, id)
	case model.RecordTicket:
		return s.OpenTicket(ctx, id)
	case model.RecordReport:
		return s.OpenReport(ctx, community, id)
	}
	return nil, &model.ValidationError{Field: "kind", Message: fmt.Sprintf("Unknown record kind: %s", kind)}
}

// OpenTask loads a task occurrence, derives its checklist and builds the wizard.
func (s *SessionService) OpenTask(ctx context.Context, id string) (*View, error) {
	rec, err := s.up.FetchTask(ctx, id)
	if err != nil {
		return nil, err
	}
	checklist := s.deriver.Derive(ctx, rec)
	size := model.WorkflowSizeFromSteps(number(rec["steps"]))

	sess := s.newSession(ctx, model.RecordTask, model.FormRecord{
		Kind:     model.RecordTask,
		ID:       id,
		Title:    TaskName(rec),
		Location: TaskLocation(rec),
		Status:   TaskStatus(rec),
		Raw:      rec,
	})
	sess.checklist = checklist
	sess.wizard = wizard.New(checklist.Questions, size)
	return s.register(sess), nil
}

// OpenPermit loads a permit fill form. ref may be an id or a permit API URL.
func (s *SessionService) OpenPermit(ctx context.Context, ref string) (*View, error) {
	id := permit.ExtractPermitID(ref)
	rec, err := s.up.FetchPermit(ctx, id)
	if err != nil {
		return nil, err
	}
	form, err := permit.Decode(rec)
	if err != nil {
		return nil, &model.ValidationError{Field: "permit", Message: err.Error()}
	}
	officers, err := s.up.FetchPermitOfficers(ctx, id)
	if err != nil {
		s.log.Warn("Failed to load permit officers", zap.String("permit_id", id), zap.Error(err))
	}
	form.ApplyOfficers(officers)

	sess := s.newSession(ctx, model.RecordPermit, model.FormRecord{
		Kind:     model.RecordPermit,
		ID:       id,
		Title:    form.TypeName,
		Location: form.Location,
		Raw:      rec,
	})
	sess.permit = form
	sess.officers = officers
	return s.register(sess), nil
}

// OpenTicket loads a complaint and prefills the location cascade from its names.
func (s *SessionService) OpenTicket(ctx context.Context, id string) (*View, error) {
	rec, err := s.up.FetchTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	form, names, err := ticket.Decode(rec)
	if err != nil {
		return nil, &model.ValidationError{Field: "ticket", Message: err.Error()}
	}

	sel := location.NewSelector(s.locations, s.siteID)
	if err := sel.PrefillByName(ctx, names); err != nil {
		s.log.Warn("Failed to prefill ticket location", zap.String("ticket_id", id), zap.Error(err))
	}
	if sel.Selected(location.Building) != "" {
		form.SetLocation(sel)
	}

	sess := s.newSession(ctx, model.RecordTicket, model.FormRecord{
		Kind:   model.RecordTicket,
		ID:     id,
		Title:  form.Heading,
		Status: text(rec["issue_status"]),
		Raw:    rec,
	})
	sess.ticket = form
	sess.locations = sel
	return s.register(sess), nil
}

func (s *SessionService) OpenReport(ctx context.Context, community, id string) (*View, error) {
	if community == "" {
		return nil, &model.ValidationError{Field: "community", Message: "Community is required for reports"}
	}
	rv, err := s.reports.Get(ctx, community, id)
	if err != nil {
		return nil, err
	}
	sess := s.newSession(ctx, model.RecordReport, model.FormRecord{
		Kind:   model.RecordReport,
		ID:     id,
		Status: rv.Status,
	})
	sess.report = rv
	return s.register(sess), nil
}

// with runs fn holding the session lock. The session's upstream token is used when ctx
// carries none. Other operators' sessions are reported as not found.
func (s *SessionService) with(ctx context.Context, id string, fn func(ctx context.Context, sess *Session) error) (*View, error) {
	sess, ok := s.sessions.Get(id)
	if !ok || !sess.ownedBy(ctx) {
		return nil, ErrSessionNotFound
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if auth.UpstreamToken(ctx) == "" && sess.token != "" {
		ctx = auth.WithUpstreamToken(ctx, sess.token)
	}
	sess.touched = s.now()
	s.sessions.Add(id, sess)

	if err := fn(ctx, sess); err != nil {
		return nil, err
	}
	return sess.view(), nil
}

// Get returns the current view of a session
func (s *SessionService) Get(ctx context.Context, id string) (*View, error) {
	return s.with(ctx, id, func(context.Context, *Session) error { return nil })
}

// Close drops a session and its staged files
func (s *SessionService) Close(ctx context.Context, id string) bool {
	sess, ok := s.sessions.Peek(id)
	if !ok || !sess.ownedBy(ctx) {
		return false
	}
	return s.sessions.Remove(id)
}

// Expire drops a session idle for longer than the TTL. It returns how long to wait before
// checking again when the session is still in use.
func (s *SessionService) Expire(ctx context.Context, id string) (time.Duration, error) {
	sess, ok := s.sessions.Peek(id)
	if !ok {
		return 0, s.stager.Purge(ctx, id)
	}
	sess.mu.Lock()
	idle := s.now().Sub(sess.touched)
	sess.mu.Unlock()
	if idle < s.ttl {
		return s.ttl - idle, nil
	}
	s.sessions.Remove(id)
	return 0, nil
}

// Upload stages a file for the slot and binds it to the session.
// Slots are before_photo, after_photo, question:<id> and ticket.
func (s *SessionService) Upload(ctx context.Context, id, slot, name, contentType string, size int64, r io.Reader) (*View, error) {
	cmd, err := uploadCommand(slot)
	if err != nil {
		return nil, err
	}
	return s.with(ctx, id, func(ctx context.Context, sess *Session) error {
		if !sess.editable() {
			return ErrNotEditable
		}
		att, err := s.stager.Stage(ctx, sess.ID, slot, name, contentType, size, r)
		if err != nil {
			if errors.Is(err, storage.ErrFileTooLarge) || errors.Is(err, storage.ErrFileType) {
				return &model.ValidationError{Field: slot, Message: err.Error()}
			}
			return err
		}
		cmd.file = att
		if err := s.apply(ctx, sess, cmd); err != nil {
			_ = s.stager.Release(ctx, att)
			return err
		}
		return nil
	})
}

// OpenFile returns a staged file of the session for previews. The signed preview link is
// the grant, so anonymous holders pass; a signed-in operator must own the session.
func (s *SessionService) OpenFile(ctx context.Context, id, object string) (io.ReadCloser, error) {
	sess, ok := s.sessions.Peek(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if op := auth.GetOperatorID(ctx); op != "" && !sess.ownedBy(ctx) {
		return nil, ErrSessionNotFound
	}
	prefix := storage.SessionPrefix(id) + "/"
	if len(object) <= len(prefix) || object[:len(prefix)] != prefix {
		return nil, storage.ErrNotFound
	}
	return s.stager.Storage().Get(ctx, object)
}

// LocationOptions lists one level of the cascade
func (s *SessionService) LocationOptions(ctx context.Context, level location.Level, parentID string) ([]location.Option, error) {
	if level == location.Building && parentID == "" {
		parentID = s.siteID
	}
	return s.locations.Options(ctx, level, parentID)
}

func (s *SessionService) publish(sess *Session, event map[string]interface{}) {
	if s.bus == nil {
		return
	}
	event["sessionId"] = sess.ID
	if err := s.bus.PublishSession(sess.ID, event); err != nil {
		s.log.Warn("Failed to publish session event", zap.String("session_id", sess.ID), zap.Error(err))
	}
}
