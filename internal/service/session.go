package service

import (
	"context"
	"sync"
	"time"

	"fmconsole/internal/auth"
	"fmconsole/internal/backend"
	"fmconsole/internal/location"
	"fmconsole/internal/model"
	"fmconsole/internal/permit"
	"fmconsole/internal/schema"
	"fmconsole/internal/ticket"
	"fmconsole/internal/wizard"

	"github.com/looplab/fsm"
)

// Lifecycle events
const (
	eventSubmit  = "submit"
	eventSucceed = "succeed"
	eventFail    = "fail"
)

func newLifecycle() *fsm.FSM {
	return fsm.NewFSM(
		string(model.SessionEditing),
		fsm.Events{
			{Name: eventSubmit, Src: []string{string(model.SessionEditing)}, Dst: string(model.SessionSubmitting)},
			{Name: eventSucceed, Src: []string{string(model.SessionSubmitting)}, Dst: string(model.SessionSubmitted)},
			{Name: eventFail, Src: []string{string(model.SessionSubmitting)}, Dst: string(model.SessionEditing)},
		},
		fsm.Callbacks{},
	)
}

// Session is one operator editing one upstream record. All fields are guarded by mu.
type Session struct {
	mu sync.Mutex

	ID         string
	Kind       model.RecordKind
	Record     model.FormRecord
	OperatorID string

	token     string
	lifecycle *fsm.FSM

	checklist schema.Checklist
	wizard    *wizard.Wizard
	permit    *permit.Form
	officers  *permit.Officers
	ticket    *ticket.Form
	locations *location.Selector
	report    *ReportView

	notice       string
	stats        *backend.TaskStats
	submissionID string

	createdAt time.Time
	touched   time.Time
}

func (s *Session) status() model.SessionStatus {
	return model.SessionStatus(s.lifecycle.Current())
}

// ownedBy reports whether ctx acts for the operator who opened the session. Sessions
// opened without an operator are shared.
func (s *Session) ownedBy(ctx context.Context) bool {
	return s.OperatorID == "" || auth.GetOperatorID(ctx) == s.OperatorID
}

func (s *Session) editable() bool {
	return s.status() == model.SessionEditing
}

func (s *Session) transition(ctx context.Context, event string) error {
	return s.lifecycle.Event(ctx, event)
}

// TaskView is the wizard state of a task session
type TaskView struct {
	Shape         schema.Shape                         `json:"shape"`
	NoChecklist   bool                                 `json:"noChecklist"`
	Grouped       bool                                 `json:"grouped"`
	WorkflowSize  model.WorkflowSize                   `json:"workflowSize"`
	Questions     []model.ChecklistQuestion            `json:"questions"`
	Sections      []model.Section                      `json:"sections,omitempty"`
	Answers       map[string]model.Answer              `json:"answers"`
	Photos        map[model.StepKind]*model.Attachment `json:"photos"`
	Steps         []model.Step                         `json:"steps"`
	CurrentStep   int                                  `json:"currentStep"`
	PrimaryAction wizard.Action                        `json:"primaryAction"`
	CanProceed    bool                                 `json:"canProceed"`
	EditMode      bool                                 `json:"editMode"`
	Answered      int                                  `json:"answered"`
}

// View is the JSON state returned after every command
type View struct {
	ID           string              `json:"id"`
	Kind         model.RecordKind    `json:"kind"`
	Status       model.SessionStatus `json:"status"`
	Record       model.FormRecord    `json:"record"`
	Task         *TaskView           `json:"task,omitempty"`
	Permit       *permit.Form        `json:"permit,omitempty"`
	Officers     *permit.Officers    `json:"officers,omitempty"`
	Ticket       *ticket.Form        `json:"ticket,omitempty"`
	Locations    *location.State     `json:"locations,omitempty"`
	Report       *ReportView         `json:"report,omitempty"`
	Notice       string              `json:"notice,omitempty"`
	Stats        *backend.TaskStats  `json:"stats,omitempty"`
	SubmissionID string              `json:"submissionId,omitempty"`
}

// view snapshots the session. Callers hold mu.
func (s *Session) view() *View {
	rec := s.Record
	rec.Raw = nil
	v := &View{
		ID:           s.ID,
		Kind:         s.Kind,
		Status:       s.status(),
		Record:       rec,
		Notice:       s.notice,
		Stats:        s.stats,
		SubmissionID: s.submissionID,
	}
	if w := s.wizard; w != nil {
		photos := map[model.StepKind]*model.Attachment{}
		for _, k := range []model.StepKind{model.StepBeforePhoto, model.StepAfterPhoto} {
			if p := w.Photo(k); p != nil {
				photos[k] = p
			}
		}
		v.Task = &TaskView{
			Shape:         s.checklist.Shape,
			NoChecklist:   s.checklist.Empty(),
			Grouped:       s.checklist.Grouped(),
			WorkflowSize:  w.Size(),
			Questions:     w.Questions(),
			Sections:      s.checklist.Sections,
			Answers:       w.Answers(),
			Photos:        photos,
			Steps:         w.Steps(),
			CurrentStep:   w.Current(),
			PrimaryAction: w.PrimaryAction(),
			CanProceed:    w.Validate() == nil,
			EditMode:      w.EditMode(),
			Answered:      w.AnsweredCount(),
		}
	}
	if s.permit != nil {
		f := *s.permit
		v.Permit = &f
		v.Officers = s.officers
	}
	if s.ticket != nil {
		f := *s.ticket
		v.Ticket = &f
	}
	if s.locations != nil {
		st := s.locations.State()
		v.Locations = &st
	}
	if s.report != nil {
		r := *s.report
		v.Report = &r
	}
	return v
}
