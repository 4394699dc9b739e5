// Package submission assembles the outbound task submission from a finished wizard.
package submission

import (
	"context"
	"fmt"
	"strings"

	"fmconsole/internal/model"
	"fmconsole/internal/storage"
	"fmconsole/internal/wizard"
)

// Fixed identifiers the task endpoint expects
const (
	ResponseOf   = "Pms::Asset"
	OccurrenceOf = "Pms::AssetTaskOccurrence"
	// DefaultRating is sent for every answer; the console has no rating input.
	DefaultRating = "Good"
)

// Encoder turns a staged attachment into raw base64.
type Encoder interface {
	Encode(ctx context.Context, a *model.Attachment) (string, error)
}

// QuestResponse identifies the occurrence being answered
type QuestResponse struct {
	OccurrenceOf   string `json:"occurrence_of"`
	OccurrenceOfID string `json:"occurrence_of_id"`
	ResponseOf     string `json:"response_of"`
	ResponseOfID   string `json:"response_of_id"`
	FirstName      string `json:"first_name"`
}

// QuestionData is the answer to one checklist question
type QuestionData struct {
	QName       string   `json:"qname"`
	Comment     string   `json:"comment"`
	Value       []string `json:"value"`
	Rating      string   `json:"rating"`
	Attachments []string `json:"attachments"`
}

// TaskPayload is the JSON body of a task submission.
type TaskPayload struct {
	ResponseOfID       string         `json:"response_of_id"`
	ResponseOf         string         `json:"response_of"`
	OccurrenceOf       string         `json:"occurrence_of"`
	OccurrenceOfID     string         `json:"occurrence_of_id"`
	OfflineMobile      string         `json:"offlinemobile"`
	FirstName          string         `json:"first_name"`
	AssetQuestResponse QuestResponse  `json:"asset_quest_response"`
	Data               []QuestionData `json:"data"`
	Attachments        []string       `json:"attachments"`
	BeforeAttachment   string         `json:"bef_sub_attachment"`
	AfterAttachment    string         `json:"aft_sub_attachment"`
	MobileSubmit       string         `json:"mobile_submit"`
	Token              string         `json:"token"`
}

// BuildTask validates every step and assembles the payload for occurrence id. Nothing is
// encoded when a required answer or photo is missing.
func BuildTask(ctx context.Context, occurrenceID string, record map[string]interface{}, w *wizard.Wizard, enc Encoder, token string) (*TaskPayload, error) {
	if err := w.Ready(); err != nil {
		return nil, err
	}

	name := AssignedUserName(record)
	p := &TaskPayload{
		ResponseOf:     ResponseOf,
		OccurrenceOf:   OccurrenceOf,
		OccurrenceOfID: occurrenceID,
		OfflineMobile:  "true",
		FirstName:      name,
		AssetQuestResponse: QuestResponse{
			OccurrenceOf:   OccurrenceOf,
			OccurrenceOfID: occurrenceID,
			ResponseOf:     ResponseOf,
			FirstName:      name,
		},
		Data:         make([]QuestionData, 0, len(w.Questions())),
		Attachments:  []string{},
		MobileSubmit: "true",
		Token:        token,
	}

	for _, q := range w.Questions() {
		a, _ := w.Answer(q.ID)
		d := QuestionData{
			QName:       q.ID,
			Comment:     a.Comment,
			Value:       a.Values(q.Kind),
			Rating:      DefaultRating,
			Attachments: []string{},
		}
		if a.Attachment != nil {
			b64, err := enc.Encode(ctx, a.Attachment)
			if err != nil {
				return nil, fmt.Errorf("failed to encode attachment for %s: %w", q.ID, err)
			}
			d.Attachments = append(d.Attachments, b64)
		}
		p.Data = append(p.Data, d)
	}

	var err error
	if p.BeforeAttachment, err = enc.Encode(ctx, w.Photo(model.StepBeforePhoto)); err != nil {
		return nil, fmt.Errorf("failed to encode before photo: %w", err)
	}
	if p.AfterAttachment, err = enc.Encode(ctx, w.Photo(model.StepAfterPhoto)); err != nil {
		return nil, fmt.Errorf("failed to encode after photo: %w", err)
	}
	return p, nil
}

// AssignedUserName picks the first assignee, then the legacy task_details fields.
func AssignedUserName(record map[string]interface{}) string {
	if s, _ := record["assigned_to_name"].(string); strings.TrimSpace(s) != "" {
		return strings.TrimSpace(strings.Split(s, ",")[0])
	}
	details, _ := record["task_details"].(map[string]interface{})
	for _, k := range []string{"assigned_to", "created_by"} {
		if s, _ := details[k].(string); strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return "User"
}

// AuditPayload describes a submission for the audit log without any file bodies.
func AuditPayload(occurrenceID string, w *wizard.Wizard) (map[string]interface{}, error) {
	answers := make(map[string]interface{}, len(w.Questions()))
	files := map[string]*model.Attachment{
		string(model.StepBeforePhoto): w.Photo(model.StepBeforePhoto),
		string(model.StepAfterPhoto):  w.Photo(model.StepAfterPhoto),
	}
	for _, q := range w.Questions() {
		a, _ := w.Answer(q.ID)
		answers[q.ID] = a.Values(q.Kind)
		if a.Attachment != nil {
			files["question:"+q.ID] = a.Attachment
		}
	}
	described, err := storage.DescribeFiles(files)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"occurrence_of_id": occurrenceID,
		"answers":          answers,
		"files":            described,
	}, nil
}
