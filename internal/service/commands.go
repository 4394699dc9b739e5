package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"fmconsole/internal/draft"
	"fmconsole/internal/location"
	"fmconsole/internal/metrics"
	"fmconsole/internal/model"
	"fmconsole/internal/permit"
	"fmconsole/internal/wizard"

	"go.uber.org/zap"
)

// Session command ops
const (
	OpAnswer         = "answer"
	OpToggle         = "toggle"
	OpComment        = "comment"
	OpAttach         = "attach"
	OpPhoto          = "photo"
	OpNext           = "next"
	OpPrevious       = "previous"
	OpGoTo           = "goto"
	OpEdit           = "edit"
	OpUpdate         = "update"
	OpSaveDraft      = "save_draft"
	OpRestoreDraft   = "restore_draft"
	OpSubmit         = "submit"
	OpSelectLocation = "select_location"
	OpPermitFields   = "permit_fields"
	OpCheckpoint     = "checkpoint"
	OpTicketFields   = "ticket_fields"
	OpSetStatus      = "set_status"
)

var ErrUnknownOp = errors.New("unknown command")

// Command is one operator action on a session.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data,omitempty"`

	file *model.Attachment
}

type commandArgs struct {
	Question string `json:"question"`
	Value    string `json:"value"`
	Option   string `json:"option"`
	Comment  string `json:"comment"`
	Kind     string `json:"kind"`
	Step     int    `json:"step"`
	Index    *int   `json:"index"`
	Level    string `json:"level"`
	ID       string `json:"id"`
	Key      string `json:"key"`
	Required bool   `json:"required"`
	Checked  bool   `json:"checked"`
	Status   string `json:"status"`
}

func (c Command) args() (commandArgs, error) {
	var a commandArgs
	if len(c.Data) == 0 {
		return a, nil
	}
	if err := json.Unmarshal(c.Data, &a); err != nil {
		return a, &model.ValidationError{Field: "data", Message: "Invalid command data: " + err.Error()}
	}
	return a, nil
}

func uploadCommand(slot string) (Command, error) {
	switch {
	case slot == string(model.StepBeforePhoto) || slot == string(model.StepAfterPhoto):
		data, _ := json.Marshal(map[string]string{"kind": slot})
		return Command{Op: OpPhoto, Data: data}, nil
	case strings.HasPrefix(slot, "question:"):
		data, _ := json.Marshal(map[string]string{"question": strings.TrimPrefix(slot, "question:")})
		return Command{Op: OpAttach, Data: data}, nil
	case slot == "ticket":
		return Command{Op: OpAttach}, nil
	}
	return Command{}, &model.ValidationError{Field: "slot", Message: "Unknown upload slot: " + slot}
}

// Execute applies one command and returns the new view. Submit is routed to Submit.
func (s *SessionService) Execute(ctx context.Context, id string, cmd Command) (*View, error) {
	if cmd.Op == OpSubmit {
		return s.Submit(ctx, id)
	}
	v, err := s.with(ctx, id, func(ctx context.Context, sess *Session) error {
		if !sess.editable() {
			return ErrNotEditable
		}
		return s.apply(ctx, sess, cmd)
	})
	if s.metrics != nil {
		s.metrics.Commands.WithLabelValues(cmd.Op, metrics.Result(err)).Inc()
	}
	return v, err
}

// apply runs cmd on a locked, editable session.
func (s *SessionService) apply(ctx context.Context, sess *Session, cmd Command) error {
	a, err := cmd.args()
	if err != nil {
		return err
	}
	sess.notice = ""

	switch sess.Kind {
	case model.RecordTask:
		err = s.applyTask(ctx, sess, cmd, a)
	case model.RecordPermit:
		err = s.applyPermit(sess, cmd, a)
	case model.RecordTicket:
		err = s.applyTicket(ctx, sess, cmd, a)
	case model.RecordReport:
		err = s.applyReport(ctx, sess, cmd, a)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownOp, cmd.Op)
	}
	if err != nil {
		return err
	}
	s.publish(sess, map[string]interface{}{"type": "session.updated", "op": cmd.Op})
	return nil
}

func unsupported(kind model.RecordKind, op string) error {
	return fmt.Errorf("%w: %s is not available for %s sessions", ErrUnknownOp, op, kind)
}

func (s *SessionService) applyTask(ctx context.Context, sess *Session, cmd Command, a commandArgs) error {
	w := sess.wizard
	switch cmd.Op {
	case OpAnswer:
		return w.SetValue(a.Question, a.Value)
	case OpToggle:
		return w.Toggle(a.Question, a.Option)
	case OpComment:
		return w.SetComment(a.Question, a.Comment)
	case OpAttach:
		prev, err := w.Attach(a.Question, cmd.file)
		if err != nil {
			return err
		}
		return s.release(ctx, prev)
	case OpPhoto:
		prev, err := w.SetPhoto(model.StepKind(a.Kind), cmd.file)
		if err != nil {
			return err
		}
		return s.release(ctx, prev)
	case OpNext:
		return w.Next()
	case OpPrevious:
		w.Previous()
		return nil
	case OpGoTo:
		return w.GoTo(a.Step)
	case OpEdit:
		return w.Edit(a.Step)
	case OpUpdate:
		notice, err := w.Update()
		if err != nil {
			return err
		}
		sess.notice = notice
		return nil
	case OpSaveDraft:
		return s.saveDraft(ctx, sess)
	case OpRestoreDraft:
		return s.restoreDraft(ctx, sess)
	}
	return unsupported(sess.Kind, cmd.Op)
}

func (s *SessionService) release(ctx context.Context, a *model.Attachment) error {
	if err := s.stager.Release(ctx, a); err != nil {
		s.log.Warn("Failed to release staged file", zap.String("object", a.Object), zap.Error(err))
	}
	return nil
}

func (s *SessionService) saveDraft(ctx context.Context, sess *Session) error {
	if s.drafts == nil {
		return ErrDraftsDisabled
	}
	d := draft.FromWizard(sess.Record.ID, sess.wizard, s.now())
	if err := s.drafts.Save(ctx, d); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	sess.notice = "Draft saved successfully! " + d.Summary(sess.wizard.Questions(), sess.wizard.Size()) + " saved."
	return nil
}

func (s *SessionService) restoreDraft(ctx context.Context, sess *Session) error {
	if s.drafts == nil {
		return ErrDraftsDisabled
	}
	d, found, err := s.drafts.Load(ctx, sess.Record.ID)
	if err != nil {
		return fmt.Errorf("failed to load draft: %w", err)
	}
	if !found {
		return ErrNoDraft
	}
	d.ApplyTo(sess.wizard)
	sess.notice = "Draft restored: " + d.Summary(sess.wizard.Questions(), sess.wizard.Size())
	return nil
}

// DraftInfo describes a saved draft without applying it
type DraftInfo struct {
	Draft   draft.Draft `json:"draft"`
	Summary string      `json:"summary"`
}

// PeekDraft returns the saved draft of a task session.
func (s *SessionService) PeekDraft(ctx context.Context, id string) (*DraftInfo, error) {
	var info *DraftInfo
	_, err := s.with(ctx, id, func(ctx context.Context, sess *Session) error {
		if sess.Kind != model.RecordTask {
			return unsupported(sess.Kind, OpRestoreDraft)
		}
		if s.drafts == nil {
			return ErrDraftsDisabled
		}
		d, found, err := s.drafts.Load(ctx, sess.Record.ID)
		if err != nil {
			return fmt.Errorf("failed to load draft: %w", err)
		}
		if !found {
			return ErrNoDraft
		}
		info = &DraftInfo{Draft: d, Summary: d.Summary(sess.wizard.Questions(), sess.wizard.Size())}
		return nil
	})
	return info, err
}

// SaveDraft is the save_draft command
func (s *SessionService) SaveDraft(ctx context.Context, id string) (*View, error) {
	return s.Execute(ctx, id, Command{Op: OpSaveDraft})
}

func (s *SessionService) applyPermit(sess *Session, cmd Command, a commandArgs) error {
	switch cmd.Op {
	case OpPermitFields:
		return sess.permit.Apply(cmd.Data)
	case OpCheckpoint:
		return sess.permit.SetCheckpoint(a.Key, a.Required, a.Checked)
	}
	return unsupported(sess.Kind, cmd.Op)
}

func (s *SessionService) applyTicket(ctx context.Context, sess *Session, cmd Command, a commandArgs) error {
	f := sess.ticket
	switch cmd.Op {
	case OpTicketFields:
		return f.Apply(cmd.Data)
	case OpSelectLocation:
		level, err := location.ParseLevel(a.Level)
		if err != nil {
			return &model.ValidationError{Field: "level", Message: err.Error()}
		}
		if err := sess.locations.Select(ctx, level, a.ID); err != nil {
			if errors.Is(err, location.ErrUnknownOption) {
				return &model.ValidationError{Field: level.String(), Message: err.Error()}
			}
			return err
		}
		f.SetLocation(sess.locations)
		return nil
	case OpAttach:
		if cmd.file != nil {
			f.Attachments = append(f.Attachments, cmd.file)
			return nil
		}
		if a.Index == nil || *a.Index < 0 || *a.Index >= len(f.Attachments) {
			return &model.ValidationError{Field: "index", Message: "No attachment at that position"}
		}
		removed := f.Attachments[*a.Index]
		f.Attachments = append(f.Attachments[:*a.Index:*a.Index], f.Attachments[*a.Index+1:]...)
		return s.release(ctx, removed)
	}
	return unsupported(sess.Kind, cmd.Op)
}

func (s *SessionService) applyReport(ctx context.Context, sess *Session, cmd Command, a commandArgs) error {
	if cmd.Op != OpSetStatus {
		return unsupported(sess.Kind, cmd.Op)
	}
	rv, err := s.reports.SetStatus(ctx, sess.report, a.Status)
	sess.report = rv
	sess.Record.Status = rv.Status
	return err
}

// IsRejection reports whether err refused the operator's input rather than failed.
func IsRejection(err error) bool {
	var verr *model.ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, wizard.ErrUnknownQuestion) ||
		errors.Is(err, wizard.ErrStepLocked) ||
		errors.Is(err, wizard.ErrStepOutOfRange) ||
		errors.Is(err, wizard.ErrLastStep) ||
		errors.Is(err, wizard.ErrNoPhotoStep) ||
		errors.Is(err, wizard.ErrInvalidOption) ||
		errors.Is(err, wizard.ErrNotMultiChoice) ||
		errors.Is(err, wizard.ErrNotScalar) ||
		errors.Is(err, permit.ErrUnknownCheckpoint) ||
		errors.Is(err, ErrUnknownOp)
}
