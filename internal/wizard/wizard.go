package wizard

import (
	"errors"
	"fmt"
	"sort"

	"fmconsole/internal/model"
)

var (
	ErrUnknownQuestion = errors.New("unknown question")
	ErrStepLocked      = errors.New("step is not reachable yet")
	ErrStepOutOfRange  = errors.New("step out of range")
	ErrLastStep        = errors.New("already on the last step")
	ErrNoPhotoStep     = errors.New("workflow has no such photo step")
	ErrInvalidOption   = errors.New("option is not allowed for this question")
	ErrNotMultiChoice  = errors.New("question does not accept multiple options")
	ErrNotScalar       = errors.New("question takes a set of options, use toggle")
)

// UpdatedNotice is returned by Update after an edited step is confirmed.
const UpdatedNotice = "Changes updated successfully!"

// Messages shown when a step gate fails.
const (
	MsgBeforePhoto = "Photo Required. Please add a photograph before starting work."
	MsgAfterPhoto  = "Photo Required. Please add a photograph after work."
	msgRequired    = "Required Field. Please answer: %s"
)

// ValidationError names the step and field that blocked a transition.
type ValidationError = model.ValidationError

// Action is the label and behaviour of the primary wizard button.
type Action string

const (
	ActionNext   Action = "next"
	ActionUpdate Action = "update"
	ActionSubmit Action = "submit"
)

type stepDef struct {
	title string
	kind  model.StepKind
}

var (
	singleSteps = []stepDef{
		{"Checkpoint", model.StepCheckpoint},
		{"Preview", model.StepPreview},
	}
	multiSteps = []stepDef{
		{"Before Photo", model.StepBeforePhoto},
		{"Checkpoint", model.StepCheckpoint},
		{"After Photo", model.StepAfterPhoto},
		{"Preview", model.StepPreview},
	}
)

// Wizard owns the answers and step position of one form session. It is not safe for
// concurrent use; callers serialize access per session.
type Wizard struct {
	questions []model.ChecklistQuestion
	index     map[string]int
	size      model.WorkflowSize
	defs      []stepDef
	current   int
	passed    map[int]bool
	editMode  bool
	answers   map[string]*model.Answer
	photos    map[model.StepKind]*model.Attachment
}

// New builds a wizard positioned on step 1 with every answer empty.
func New(questions []model.ChecklistQuestion, size model.WorkflowSize) *Wizard {
	w := &Wizard{
		questions: questions,
		index:     make(map[string]int, len(questions)),
		size:      size,
		defs:      multiSteps,
		current:   1,
		passed:    make(map[int]bool),
		answers:   make(map[string]*model.Answer, len(questions)),
		photos:    make(map[model.StepKind]*model.Attachment),
	}
	if size == model.WorkflowSingle {
		w.defs = singleSteps
	}
	for i, q := range questions {
		w.index[q.ID] = i
		w.answers[q.ID] = &model.Answer{}
	}
	return w
}

func (w *Wizard) Size() model.WorkflowSize { return w.size }

func (w *Wizard) Current() int { return w.current }

func (w *Wizard) EditMode() bool { return w.editMode }

func (w *Wizard) Questions() []model.ChecklistQuestion { return w.questions }

func (w *Wizard) StepCount() int { return len(w.defs) }

func (w *Wizard) Photo(kind model.StepKind) *model.Attachment { return w.photos[kind] }

// Steps derives the step list. Completion is recomputed from the current answers.
func (w *Wizard) Steps() []model.Step {
	steps := make([]model.Step, len(w.defs))
	for i, d := range w.defs {
		n := i + 1
		steps[i] = model.Step{
			Index:     n,
			Title:     d.title,
			Kind:      d.kind,
			Completed: w.completed(n),
			Active:    n == w.current,
		}
	}
	return steps
}

func (w *Wizard) completed(n int) bool {
	return w.passed[n] && w.check(n) == nil
}

// check evaluates the gate of step n.
func (w *Wizard) check(n int) *ValidationError {
	switch w.defs[n-1].kind {
	case model.StepBeforePhoto:
		if w.photos[model.StepBeforePhoto] == nil {
			return &ValidationError{Step: n, Field: string(model.StepBeforePhoto), Message: MsgBeforePhoto}
		}
	case model.StepAfterPhoto:
		if w.photos[model.StepAfterPhoto] == nil {
			return &ValidationError{Step: n, Field: string(model.StepAfterPhoto), Message: MsgAfterPhoto}
		}
	case model.StepCheckpoint:
		for _, q := range w.questions {
			if q.Required && !w.answers[q.ID].Filled(q.Kind) {
				return &ValidationError{Step: n, Field: q.ID, Message: fmt.Sprintf(msgRequired, q.Prompt)}
			}
		}
	}
	return nil
}

// Validate runs the gate of the current step
func (w *Wizard) Validate() error {
	if err := w.check(w.current); err != nil {
		return err
	}
	return nil
}

// Next advances past the current step when its gate holds.
func (w *Wizard) Next() error {
	if w.current >= len(w.defs) {
		return ErrLastStep
	}
	if err := w.check(w.current); err != nil {
		return err
	}
	w.passed[w.current] = true
	w.current++
	return nil
}

// Previous steps back one position.
func (w *Wizard) Previous() {
	if w.current > 1 {
		w.current--
	}
}

// GoTo handles a direct click on step n. Completed steps and the step right after a
// valid current step are reachable. Navigating leaves edit mode.
func (w *Wizard) GoTo(n int) error {
	if n < 1 || n > len(w.defs) {
		return ErrStepOutOfRange
	}
	if n == w.current {
		w.editMode = false
		return nil
	}

	reach := w.current
	for i := 1; i <= len(w.defs); i++ {
		if w.completed(i) && i > reach {
			reach = i
		}
	}
	nextValid := n == w.current+1 && w.check(w.current) == nil
	if n > reach && !nextValid {
		return ErrStepLocked
	}

	for i := 1; i < n; i++ {
		if w.check(i) == nil {
			w.passed[i] = true
		}
	}
	w.editMode = false
	w.current = n
	return nil
}

// Edit jumps back to an earlier step and switches the primary action to update.
func (w *Wizard) Edit(n int) error {
	if n < 1 || n > len(w.defs) {
		return ErrStepOutOfRange
	}
	if n >= w.current {
		return ErrStepLocked
	}
	w.current = n
	w.editMode = true
	return nil
}

// Update confirms an edited step. It gates like Next, leaves edit mode and returns the
// confirmation notice.
func (w *Wizard) Update() (string, error) {
	if err := w.check(w.current); err != nil {
		return "", err
	}
	w.passed[w.current] = true
	if w.current < len(w.defs) {
		w.current++
	}
	w.editMode = false
	return UpdatedNotice, nil
}

// PrimaryAction reports what the main button does at the current position
func (w *Wizard) PrimaryAction() Action {
	switch {
	case w.editMode:
		return ActionUpdate
	case w.current == len(w.defs):
		return ActionSubmit
	default:
		return ActionNext
	}
}

// Ready re-runs every gate in order and returns the first failure.
func (w *Wizard) Ready() error {
	for n := 1; n <= len(w.defs); n++ {
		if err := w.check(n); err != nil {
			return err
		}
	}
	return nil
}

// HasPhotoStep reports whether the workflow includes the given photo step
func (w *Wizard) HasPhotoStep(kind model.StepKind) bool {
	for _, d := range w.defs {
		if d.kind == kind && (kind == model.StepBeforePhoto || kind == model.StepAfterPhoto) {
			return true
		}
	}
	return false
}

// SetPhoto stages the before or after photo. A nil attachment clears it and the
// previous one is returned so the caller can release it.
func (w *Wizard) SetPhoto(kind model.StepKind, a *model.Attachment) (*model.Attachment, error) {
	if !w.HasPhotoStep(kind) {
		return nil, ErrNoPhotoStep
	}
	prev := w.photos[kind]
	if a == nil {
		delete(w.photos, kind)
	} else {
		w.photos[kind] = a
	}
	return prev, nil
}

func (w *Wizard) lookup(id string) (model.ChecklistQuestion, *model.Answer, error) {
	i, ok := w.index[id]
	if !ok {
		return model.ChecklistQuestion{}, nil, fmt.Errorf("%w: %s", ErrUnknownQuestion, id)
	}
	return w.questions[i], w.answers[id], nil
}

// Answer returns a copy of the answer for id
func (w *Wizard) Answer(id string) (model.Answer, error) {
	_, a, err := w.lookup(id)
	if err != nil {
		return model.Answer{}, err
	}
	return cloneAnswer(*a), nil
}

// Answers returns a copy of every answer keyed by question id
func (w *Wizard) Answers() map[string]model.Answer {
	out := make(map[string]model.Answer, len(w.answers))
	for id, a := range w.answers {
		out[id] = cloneAnswer(*a)
	}
	return out
}

// SetValue sets a scalar answer. Choice values must be one of the options; an empty
// value clears the answer.
func (w *Wizard) SetValue(id, value string) error {
	q, a, err := w.lookup(id)
	if err != nil {
		return err
	}
	if q.Kind == model.InputMultiChoice {
		return ErrNotScalar
	}
	if value != "" {
		if err := checkScalar(q, value); err != nil {
			return err
		}
	}
	a.Value = value
	return nil
}

// Toggle adds option to a multi-choice answer or removes it when already selected.
func (w *Wizard) Toggle(id, option string) error {
	q, a, err := w.lookup(id)
	if err != nil {
		return err
	}
	if q.Kind != model.InputMultiChoice {
		return ErrNotMultiChoice
	}
	if !q.HasOption(option) {
		return fmt.Errorf("%w: %s", ErrInvalidOption, option)
	}

	for i, s := range a.Selected {
		if s == option {
			a.Selected = append(a.Selected[:i:i], a.Selected[i+1:]...)
			if len(a.Selected) == 0 {
				a.Selected = nil
			}
			return nil
		}
	}
	a.Selected = append(a.Selected, option)
	sort.Strings(a.Selected)
	return nil
}

// SetComment sets the free-text comment of a question
func (w *Wizard) SetComment(id, comment string) error {
	_, a, err := w.lookup(id)
	if err != nil {
		return err
	}
	a.Comment = comment
	return nil
}

// Attach replaces the single attachment of a question and returns the previous one.
func (w *Wizard) Attach(id string, att *model.Attachment) (*model.Attachment, error) {
	_, a, err := w.lookup(id)
	if err != nil {
		return nil, err
	}
	prev := a.Attachment
	a.Attachment = att
	return prev, nil
}

// Detach removes and returns the attachment of a question
func (w *Wizard) Detach(id string) (*model.Attachment, error) {
	return w.Attach(id, nil)
}

func cloneAnswer(a model.Answer) model.Answer {
	if a.Selected != nil {
		a.Selected = append([]string(nil), a.Selected...)
	}
	if a.Attachment != nil {
		att := *a.Attachment
		a.Attachment = &att
	}
	return a
}
