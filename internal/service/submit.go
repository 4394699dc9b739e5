package service

import (
	"context"
	"io"
	"mime/multipart"

	"fmconsole/internal/auth"
	"fmconsole/internal/db"
	"fmconsole/internal/metrics"
	"fmconsole/internal/model"
	"fmconsole/internal/submission"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Notices shown after a successful submit
const (
	TaskSubmittedNotice   = "Task submitted successfully!"
	PermitSubmittedNotice = "Permit form submitted successfully!"
	TicketUpdatedNotice   = "Ticket updated successfully!"
)

// outcome is what a submit attempt sent and got back. attempted is false when the
// session failed validation before any upstream call.
type outcome struct {
	attempted bool
	payload   map[string]interface{}
	stats     *submissionStats
}

type submissionStats struct {
	answered, negative, complaints int
}

// Submit validates the whole form, sends it upstream and records the attempt. A failure
// returns the session to editing with every answer intact.
func (s *SessionService) Submit(ctx context.Context, id string) (*View, error) {
	var kind model.RecordKind
	v, err := s.with(ctx, id, func(ctx context.Context, sess *Session) error {
		kind = sess.Kind
		if sess.Kind == model.RecordReport {
			return unsupported(sess.Kind, OpSubmit)
		}
		if err := sess.transition(ctx, eventSubmit); err != nil {
			return ErrNotEditable
		}
		sess.notice = ""

		out, err := s.send(ctx, sess)
		var rowID string
		if out.attempted {
			rowID = s.recordAttempt(ctx, sess, out, err)
		}
		if err != nil {
			if rowID != "" {
				s.log.Info("Submission failed",
					zap.String("session_id", sess.ID),
					zap.String("submission_id", rowID),
					zap.Error(err))
			}
			_ = sess.transition(ctx, eventFail)
			s.publish(sess, map[string]interface{}{"type": "session.updated", "op": OpSubmit})
			return err
		}

		sess.submissionID = rowID
		_ = sess.transition(ctx, eventSucceed)
		if sess.Kind == model.RecordTask && s.drafts != nil {
			if err := s.drafts.Delete(ctx, sess.Record.ID); err != nil {
				s.log.Warn("Failed to delete draft", zap.String("task_id", sess.Record.ID), zap.Error(err))
			}
		}
		s.publish(sess, map[string]interface{}{
			"type":         "session.submitted",
			"recordKind":   string(sess.Kind),
			"recordId":     sess.Record.ID,
			"submissionId": sess.submissionID,
		})
		s.log.Info("Session submitted",
			zap.String("session_id", sess.ID),
			zap.String("kind", string(sess.Kind)),
			zap.String("record_id", sess.Record.ID))
		return nil
	})
	if s.metrics != nil && kind != "" {
		s.metrics.Submissions.WithLabelValues(string(kind), metrics.Result(err)).Inc()
		s.metrics.Commands.WithLabelValues(OpSubmit, metrics.Result(err)).Inc()
	}
	return v, err
}

func (s *SessionService) send(ctx context.Context, sess *Session) (outcome, error) {
	switch sess.Kind {
	case model.RecordTask:
		return s.sendTask(ctx, sess)
	case model.RecordPermit:
		return s.sendPermit(ctx, sess)
	case model.RecordTicket:
		return s.sendTicket(ctx, sess)
	}
	return outcome{}, unsupported(sess.Kind, OpSubmit)
}

func (s *SessionService) sendTask(ctx context.Context, sess *Session) (outcome, error) {
	w := sess.wizard
	if err := w.Ready(); err != nil {
		return outcome{}, err
	}
	answers := make(map[string]interface{}, len(w.Questions()))
	for _, q := range w.Questions() {
		a, _ := w.Answer(q.ID)
		answers[q.ID] = a.Values(q.Kind)
	}
	if err := s.deriver.ValidateAnswers(ctx, sess.Record.Raw, answers); err != nil {
		return outcome{}, &model.ValidationError{Field: "answers", Message: err.Error()}
	}

	payload, err := submission.BuildTask(ctx, sess.Record.ID, sess.Record.Raw, w, s.stager, auth.UpstreamToken(ctx))
	if err != nil {
		return outcome{}, err
	}
	audit, err := submission.AuditPayload(sess.Record.ID, w)
	if err != nil {
		return outcome{}, err
	}

	stats, err := s.up.SubmitTask(ctx, payload)
	out := outcome{attempted: true, payload: audit}
	if err != nil {
		return out, err
	}
	out.stats = &submissionStats{stats.QuestionsAttended, stats.NegativeAnswers, stats.ComplaintsRaised}
	sess.stats = &stats
	sess.notice = TaskSubmittedNotice
	return out, nil
}

func (s *SessionService) sendPermit(ctx context.Context, sess *Session) (outcome, error) {
	f := sess.permit
	if err := f.Validate(); err != nil {
		return outcome{}, err
	}
	form := f.Encode()
	out := outcome{attempted: true, payload: map[string]interface{}{
		"permit_id": f.PermitID,
		"variant":   string(f.Variant),
		"fields":    len(form),
	}}
	if err := s.up.SubmitPermit(ctx, sess.Record.ID, form); err != nil {
		return out, err
	}
	sess.notice = PermitSubmittedNotice
	return out, nil
}

func (s *SessionService) sendTicket(ctx context.Context, sess *Session) (outcome, error) {
	f := sess.ticket
	if err := f.Validate(); err != nil {
		return outcome{}, err
	}
	files := make([]string, 0, len(f.Attachments))
	for _, a := range f.Attachments {
		files = append(files, a.Name)
	}
	out := outcome{attempted: true, payload: map[string]interface{}{
		"ticket_id":   f.TicketID,
		"status_id":   f.StatusID,
		"attachments": files,
	}}
	open := func(a *model.Attachment) (io.ReadCloser, error) {
		return s.stager.Storage().Get(ctx, a.Object)
	}
	if _, err := s.up.UpdateTicket(ctx, func(mw *multipart.Writer) error {
		return f.WriteMultipart(mw, open)
	}); err != nil {
		return out, err
	}
	sess.notice = TicketUpdatedNotice
	return out, nil
}

// recordAttempt writes the audit row and returns its id. Audit failures are logged only.
func (s *SessionService) recordAttempt(ctx context.Context, sess *Session, out outcome, sendErr error) string {
	if s.audit == nil {
		return ""
	}
	p := db.InsertSubmissionParams{
		ID:         ulid.Make().String(),
		SessionID:  sess.ID,
		RecordKind: string(sess.Kind),
		RecordID:   sess.Record.ID,
		Status:     model.SubmissionSucceeded,
		Payload:    out.payload,
	}
	if sess.OperatorID != "" {
		op := sess.OperatorID
		p.OperatorID = &op
	}
	if out.stats != nil {
		p.Answered, p.Negative, p.Complaints = out.stats.answered, out.stats.negative, out.stats.complaints
	}
	if sendErr != nil {
		msg := sendErr.Error()
		p.Status, p.Error = model.SubmissionFailed, &msg
	}
	row, err := s.audit.InsertSubmission(ctx, p)
	if err != nil {
		s.log.Warn("Failed to record submission", zap.String("session_id", sess.ID), zap.Error(err))
		return ""
	}
	return row.ID
}
