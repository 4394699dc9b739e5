// Package draft persists in-progress task answers on demand. Drafts are never synced
// upstream; they are restored only when an operator asks for it.
package draft

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fmconsole/internal/model"
	"fmconsole/internal/wizard"
)

// PhotoSaved marks a photo that existed when the draft was saved. Files do not outlive
// their session, so only the flag is kept.
const PhotoSaved = "saved"

// Draft is one saved snapshot of a task wizard
type Draft struct {
	TaskID         string                  `json:"taskId"`
	Answers        map[string]model.Answer `json:"answers"`
	BeforePhoto    string                  `json:"beforePhoto,omitempty"`
	AfterPhoto     string                  `json:"afterPhoto,omitempty"`
	CurrentStep    int                     `json:"currentStep"`
	CompletedSteps []int                   `json:"completedSteps"`
	SavedAt        time.Time               `json:"savedAt"`
}

// Store saves and loads drafts keyed by task id
type Store interface {
	Save(ctx context.Context, d Draft) error
	Load(ctx context.Context, taskID string) (Draft, bool, error)
	Delete(ctx context.Context, taskID string) error
}

// Key is the storage key of a task's draft
func Key(taskID string) string {
	return "task_draft_" + taskID
}

// FromWizard captures the wizard's progress. Attachments are dropped.
func FromWizard(taskID string, w *wizard.Wizard, now time.Time) Draft {
	s := w.Snapshot()
	d := Draft{
		TaskID:         taskID,
		Answers:        make(map[string]model.Answer, len(s.Answers)),
		CurrentStep:    s.Current,
		CompletedSteps: s.Completed,
		SavedAt:        now.UTC(),
	}
	for id, a := range s.Answers {
		a.Attachment = nil
		d.Answers[id] = a
	}
	if s.Photos[model.StepBeforePhoto] != nil {
		d.BeforePhoto = PhotoSaved
	}
	if s.Photos[model.StepAfterPhoto] != nil {
		d.AfterPhoto = PhotoSaved
	}
	return d
}

// Snapshot converts the draft back into wizard state
func (d Draft) Snapshot() wizard.Snapshot {
	return wizard.Snapshot{
		Answers:   d.Answers,
		Current:   d.CurrentStep,
		Completed: d.CompletedSteps,
	}
}

// Summary lists what the draft holds, e.g. "Before Photo, 3/5 Checklist Items".
func (d Draft) Summary(questions []model.ChecklistQuestion, size model.WorkflowSize) string {
	var items []string
	if size == model.WorkflowMulti {
		if d.BeforePhoto == PhotoSaved {
			items = append(items, "Before Photo")
		}
		if d.AfterPhoto == PhotoSaved {
			items = append(items, "After Photo")
		}
	}
	answered := 0
	for _, q := range questions {
		if d.Answers[q.ID].Filled(q.Kind) {
			answered++
		}
	}
	if answered > 0 {
		items = append(items, fmt.Sprintf("%d/%d Checklist Items", answered, len(questions)))
	}
	if len(items) == 0 {
		return "No data"
	}
	return strings.Join(items, ", ")
}

// ApplyTo restores the draft into w. Photos and attachments staged in the live session are
// kept since the draft holds none.
func (d Draft) ApplyTo(w *wizard.Wizard) {
	cur := w.Snapshot()
	s := d.Snapshot()
	if s.Answers == nil {
		s.Answers = make(map[string]model.Answer)
	}
	s.Photos = cur.Photos
	for id, a := range cur.Answers {
		if a.Attachment == nil {
			continue
		}
		da := s.Answers[id]
		da.Attachment = a.Attachment
		s.Answers[id] = da
	}
	w.Restore(s)
}
