package schema

import (
	"fmt"

	"fmconsole/internal/model"
)

const (
	ungrouped     = "ungrouped"
	ungroupedName = "Ungrouped"
)

var defaultChoices = []string{"Yes", "No"}

// kindFor maps an upstream field type to an input kind. The legacy shape only knows
// radio and checkbox groups.
func kindFor(t string, legacy bool) model.InputKind {
	switch t {
	case "radio-group":
		return model.InputSingleChoice
	case "checkbox-group":
		return model.InputMultiChoice
	}
	if legacy {
		return model.InputFreeText
	}
	switch t {
	case "select":
		return model.InputSingleChoice
	case "number":
		return model.InputNumeric
	case "date":
		return model.InputDate
	}
	return model.InputFreeText
}

func toQuestion(r rawQuestion, fallbackID string, ordinal int, legacy bool) model.ChecklistQuestion {
	q := model.ChecklistQuestion{
		ID:       string(r.Name),
		Prompt:   string(r.Label),
		Kind:     kindFor(string(r.Type), legacy),
		Required: bool(r.Required),
	}
	if q.ID == "" {
		q.ID = fallbackID
	}
	if q.Prompt == "" {
		q.Prompt = string(r.Hint)
	}
	if q.Prompt == "" {
		q.Prompt = fmt.Sprintf("Question %d", ordinal)
	}
	if q.Kind.IsChoice() {
		for _, v := range r.Values {
			if v != "" {
				q.Options = append(q.Options, string(v))
			}
		}
		if len(q.Options) == 0 && q.Kind == model.InputSingleChoice {
			q.Options = append([]string(nil), defaultChoices...)
		}
	}
	return q
}

func normalizeFlat(record map[string]interface{}) ([]model.ChecklistQuestion, []model.Section, error) {
	var rec flatRecord
	if err := decodeRecord(record, &rec); err != nil {
		return nil, nil, err
	}

	questions := make([]model.ChecklistQuestion, 0, len(rec.Questions))
	grouped := false
	for i, r := range rec.Questions {
		q := toQuestion(r, fmt.Sprintf("question_%d", i), i+1, false)
		if r.GroupID != "" || r.SubGroupID != "" {
			grouped = true
		}
		q.GroupID, q.SubGroupID = orUngrouped(string(r.GroupID)), orUngrouped(string(r.SubGroupID))
		q.GroupName = string(r.GroupName)
		if q.GroupName == "" {
			q.GroupName = ungroupedName
		}
		q.SubGroupName = string(r.SubGroupName)
		questions = append(questions, q)
	}

	if !grouped {
		for i := range questions {
			questions[i].GroupID, questions[i].GroupName = "", ""
			questions[i].SubGroupID, questions[i].SubGroupName = "", ""
		}
		return questions, nil, nil
	}
	return questions, buildSections(questions), nil
}

func normalizeGrouped(record map[string]interface{}) ([]model.ChecklistQuestion, []model.Section, error) {
	var rec groupedRecord
	if err := decodeRecord(record, &rec); err != nil {
		return nil, nil, err
	}

	var questions []model.ChecklistQuestion
	for _, g := range rec.Groups {
		groupName := string(g.GroupName)
		if groupName == "" {
			groupName = ungroupedName
		}
		for _, sg := range g.SubGroups {
			for i, r := range sg.Questions {
				fallback := fmt.Sprintf("grouped_%s_%s_%d", g.GroupID, sg.SubGroupID, i)
				q := toQuestion(r, fallback, len(questions)+1, false)
				q.GroupID = orUngrouped(string(g.GroupID))
				q.SubGroupID = orUngrouped(string(sg.SubGroupID))
				q.GroupName = groupName
				q.SubGroupName = string(sg.SubGroupName)
				questions = append(questions, q)
			}
		}
	}
	return questions, buildSections(questions), nil
}

func normalizeLegacy(record map[string]interface{}) ([]model.ChecklistQuestion, []model.Section, error) {
	var rec legacyRecord
	if err := decodeRecord(record, &rec); err != nil {
		return nil, nil, err
	}

	questions := make([]model.ChecklistQuestion, 0, len(rec.Activity.Resp))
	for i, r := range rec.Activity.Resp {
		questions = append(questions, toQuestion(r, fmt.Sprintf("item_%d", i), i+1, true))
	}
	return questions, nil, nil
}

// buildSections keys questions by (group, sub-group) in first-appearance order.
func buildSections(questions []model.ChecklistQuestion) []model.Section {
	var sections []model.Section
	index := make(map[string]int)
	for _, q := range questions {
		k := q.GroupID + "_" + q.SubGroupID
		i, ok := index[k]
		if !ok {
			i = len(sections)
			index[k] = i
			sections = append(sections, model.Section{
				Key:          k,
				GroupID:      q.GroupID,
				GroupName:    q.GroupName,
				SubGroupID:   q.SubGroupID,
				SubGroupName: q.SubGroupName,
			})
		}
		sections[i].Questions = append(sections[i].Questions, q)
	}
	return sections
}

func orUngrouped(s string) string {
	if s == "" {
		return ungrouped
	}
	return s
}
