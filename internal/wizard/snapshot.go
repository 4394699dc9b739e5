package wizard

import (
	"sort"

	"fmconsole/internal/model"
)

// Snapshot is the persisted progress of a wizard
type Snapshot struct {
	Answers   map[string]model.Answer              `json:"answers"`
	Photos    map[model.StepKind]*model.Attachment `json:"photos,omitempty"`
	Current   int                                  `json:"currentStep"`
	Completed []int                                `json:"completedSteps"`
}

// Snapshot captures answers, photos and position.
func (w *Wizard) Snapshot() Snapshot {
	s := Snapshot{
		Answers: w.Answers(),
		Photos:  make(map[model.StepKind]*model.Attachment, len(w.photos)),
		Current: w.current,
	}
	for k, a := range w.photos {
		att := *a
		s.Photos[k] = &att
	}
	for n := 1; n <= len(w.defs); n++ {
		if w.completed(n) {
			s.Completed = append(s.Completed, n)
		}
	}
	return s
}

// Restore loads a snapshot. Answers for unknown questions and choices that are no longer
// offered are dropped; the position is clamped to the workflow.
func (w *Wizard) Restore(s Snapshot) {
	for id := range w.answers {
		w.answers[id] = &model.Answer{}
	}
	for id, a := range s.Answers {
		i, ok := w.index[id]
		if !ok {
			continue
		}
		q := w.questions[i]
		restored := model.Answer{Comment: a.Comment, Attachment: a.Attachment}
		switch {
		case q.Kind == model.InputMultiChoice:
			for _, opt := range a.Selected {
				if q.HasOption(opt) {
					restored.Selected = append(restored.Selected, opt)
				}
			}
			sort.Strings(restored.Selected)
		case a.Value == "" || checkScalar(q, a.Value) == nil:
			restored.Value = a.Value
		}
		w.answers[id] = &restored
	}

	w.photos = make(map[model.StepKind]*model.Attachment)
	for k, a := range s.Photos {
		if a != nil && w.HasPhotoStep(k) {
			w.photos[k] = a
		}
	}

	w.passed = make(map[int]bool)
	for _, n := range s.Completed {
		if n >= 1 && n <= len(w.defs) {
			w.passed[n] = true
		}
	}
	w.current = s.Current
	if w.current < 1 {
		w.current = 1
	}
	if w.current > len(w.defs) {
		w.current = len(w.defs)
	}
	w.editMode = false
}

// AnsweredCount returns how many questions have a non-empty value
func (w *Wizard) AnsweredCount() int {
	n := 0
	for _, q := range w.questions {
		if w.answers[q.ID].Filled(q.Kind) {
			n++
		}
	}
	return n
}
