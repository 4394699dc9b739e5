package model

import "strings"

// RecordKind identifies the upstream record a session edits
type RecordKind string

const (
	RecordTask   RecordKind = "task"
	RecordPermit RecordKind = "permit"
	RecordTicket RecordKind = "ticket"
	RecordReport RecordKind = "report"
)

// InputKind is the normalized input type of a checklist question
type InputKind string

const (
	InputSingleChoice InputKind = "single_choice"
	InputMultiChoice  InputKind = "multi_choice"
	InputFreeText     InputKind = "free_text"
	InputNumeric      InputKind = "numeric"
	InputDate         InputKind = "date"
)

// IsChoice reports whether the kind carries a fixed option list
func (k InputKind) IsChoice() bool {
	return k == InputSingleChoice || k == InputMultiChoice
}

// ChecklistQuestion is one normalized question derived from a record.
type ChecklistQuestion struct {
	ID           string    `json:"id"`
	Prompt       string    `json:"prompt"`
	Kind         InputKind `json:"kind"`
	Required     bool      `json:"required"`
	Options      []string  `json:"options,omitempty"`
	GroupID      string    `json:"groupId,omitempty"`
	GroupName    string    `json:"groupName,omitempty"`
	SubGroupID   string    `json:"subGroupId,omitempty"`
	SubGroupName string    `json:"subGroupName,omitempty"`
}

// HasOption reports whether label is one of the allowed options
func (q ChecklistQuestion) HasOption(label string) bool {
	for _, o := range q.Options {
		if o == label {
			return true
		}
	}
	return false
}

// Section groups questions for sectioned rendering
type Section struct {
	Key          string              `json:"key"`
	GroupID      string              `json:"groupId"`
	GroupName    string              `json:"groupName"`
	SubGroupID   string              `json:"subGroupId"`
	SubGroupName string              `json:"subGroupName"`
	Questions    []ChecklistQuestion `json:"questions"`
}

// Attachment references a staged file. Nothing is uploaded upstream until submission.
type Attachment struct {
	Name       string `json:"name"`
	MIME       string `json:"mime"`
	Size       int64  `json:"size"`
	Object     string `json:"object"`
	SHA256     string `json:"sha256,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// Answer holds a question's value, comment and attachment
type Answer struct {
	Value      string      `json:"value,omitempty"`
	Selected   []string    `json:"selected,omitempty"`
	Comment    string      `json:"comment,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Filled reports whether the answer value counts as non-empty for kind.
// Comments and attachments never satisfy a required question.
func (a Answer) Filled(kind InputKind) bool {
	if kind == InputMultiChoice {
		return len(a.Selected) > 0
	}
	return strings.TrimSpace(a.Value) != ""
}

// Values returns the answer as a list, the shape the upstream expects
func (a Answer) Values(kind InputKind) []string {
	if kind == InputMultiChoice {
		if len(a.Selected) == 0 {
			return []string{""}
		}
		out := make([]string, len(a.Selected))
		copy(out, a.Selected)
		return out
	}
	return []string{a.Value}
}

// ValidationError is a field-specific rejection raised before any upstream call. Step is
// zero for forms without steps.
type ValidationError struct {
	Step    int    `json:"step,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string { return e.Message }

// StepKind is the gate type of a wizard step
type StepKind string

const (
	StepBeforePhoto StepKind = "before_photo"
	StepCheckpoint  StepKind = "checkpoint"
	StepAfterPhoto  StepKind = "after_photo"
	StepPreview     StepKind = "preview"
)

// Step is a derived view of one wizard position
type Step struct {
	Index     int      `json:"index"`
	Title     string   `json:"title"`
	Kind      StepKind `json:"kind"`
	Completed bool     `json:"completed"`
	Active    bool     `json:"active"`
}

// WorkflowSize selects the step sequence
type WorkflowSize string

const (
	WorkflowSingle WorkflowSize = "single"
	WorkflowMulti  WorkflowSize = "multi"
)

// WorkflowSizeFromSteps maps the record's step count to a workflow size
func WorkflowSizeFromSteps(steps int) WorkflowSize {
	if steps == 1 {
		return WorkflowSingle
	}
	return WorkflowMulti
}

// SessionStatus represents the lifecycle state of an editing session
type SessionStatus string

const (
	SessionEditing    SessionStatus = "editing"
	SessionSubmitting SessionStatus = "submitting"
	SessionSubmitted  SessionStatus = "submitted"
)

// FormRecord is the upstream record being edited
type FormRecord struct {
	Kind     RecordKind             `json:"kind"`
	ID       string                 `json:"id"`
	Title    string                 `json:"title,omitempty"`
	Location string                 `json:"location,omitempty"`
	Status   string                 `json:"status,omitempty"`
	Raw      map[string]interface{} `json:"raw,omitempty"`
}

// Submission is an audit row for one submit attempt
type Submission struct {
	ID         string                 `json:"id"`
	SessionID  string                 `json:"sessionId"`
	RecordKind RecordKind             `json:"recordKind"`
	RecordID   string                 `json:"recordId"`
	Status     string                 `json:"status"`
	Answered   int                    `json:"answered"`
	Negative   int                    `json:"negative"`
	Complaints int                    `json:"complaints"`
	Error      *string                `json:"error,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	CreatedAt  string                 `json:"createdAt,omitempty"`
}

// Submission statuses
const (
	SubmissionSucceeded = "SUCCEEDED"
	SubmissionFailed    = "FAILED"
)
