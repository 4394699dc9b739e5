package schema

import (
	"context"
	"encoding/json"
	"testing"

	"fmconsole/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeriver(t *testing.T) *Deriver {
	t.Helper()
	d, err := NewDeriver(NewCompilerWithCache(16))
	require.NoError(t, err)
	return d
}

func record(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestDerive_FlatShape(t *testing.T) {
	d := newDeriver(t)
	rec := record(t, `{
		"checklist_questions": [
			{"name": "q_fire", "label": "Extinguisher present?", "type": "radio-group", "required": "true",
			 "values": [{"label": "Yes", "value": "yes"}, {"label": "No", "value": "no"}]},
			{"name": "q_parts", "hint": "Parts replaced", "type": "checkbox-group", "required": true,
			 "values": ["Filter", "Belt"]},
			{"type": "number"},
			{"name": "q_due", "label": "Next service", "type": "date"},
			{"name": "q_site", "label": "Site", "type": "select"},
			{"name": "q_note", "label": "Notes", "type": "textarea", "values": ["ignored"]}
		],
		"activity": {"resp": [{"name": "old"}]}
	}`)

	c := d.Derive(context.Background(), rec)
	assert.Equal(t, ShapeFlat, c.Shape)
	require.Len(t, c.Questions, 6)
	assert.False(t, c.Grouped())

	q := c.Questions
	assert.Equal(t, model.ChecklistQuestion{
		ID: "q_fire", Prompt: "Extinguisher present?", Kind: model.InputSingleChoice,
		Required: true, Options: []string{"Yes", "No"},
	}, q[0])
	assert.Equal(t, "Parts replaced", q[1].Prompt)
	assert.Equal(t, model.InputMultiChoice, q[1].Kind)
	assert.Equal(t, []string{"Filter", "Belt"}, q[1].Options)
	assert.True(t, q[1].Required)

	assert.Equal(t, "question_2", q[2].ID)
	assert.Equal(t, "Question 3", q[2].Prompt)
	assert.Equal(t, model.InputNumeric, q[2].Kind)

	assert.Equal(t, model.InputDate, q[3].Kind)
	assert.Equal(t, []string{"Yes", "No"}, q[4].Options, "select without values defaults to Yes/No")
	assert.Equal(t, model.InputFreeText, q[5].Kind)
	assert.Empty(t, q[5].Options)
}

func TestDerive_FlatShapeWithGroups(t *testing.T) {
	d := newDeriver(t)
	rec := record(t, `{
		"checklist_questions": [
			{"name": "a", "label": "A", "group_id": 7, "sub_group_id": 1, "group_name": "Pumps", "sub_group_name": "Seals"},
			{"name": "b", "label": "B"},
			{"name": "c", "label": "C", "group_id": 7, "sub_group_id": 1}
		]
	}`)

	c := d.Derive(context.Background(), rec)
	require.True(t, c.Grouped())
	require.Len(t, c.Sections, 2)

	assert.Equal(t, "7_1", c.Sections[0].Key)
	assert.Equal(t, "Pumps", c.Sections[0].GroupName)
	assert.Equal(t, "Seals", c.Sections[0].SubGroupName)
	assert.Len(t, c.Sections[0].Questions, 2)

	assert.Equal(t, "ungrouped_ungrouped", c.Sections[1].Key)
	assert.Equal(t, "Ungrouped", c.Sections[1].GroupName)
	assert.Equal(t, "", c.Sections[1].SubGroupName)
}

func TestDerive_GroupedShape(t *testing.T) {
	d := newDeriver(t)
	rec := record(t, `{
		"grouped_questions": [
			{"group_id": 1, "group_name": "Electrical", "sub_groups": [
				{"sub_group_id": 10, "sub_group_name": "Panel", "questions": [
					{"name": "panel_ok", "label": "Panel OK?", "type": "radio-group", "required": true},
					{"label": "Voltage", "type": "number"}
				]}
			]},
			{"group_id": 2, "sub_groups": [
				{"sub_group_id": 20, "questions": [{"type": "text"}]}
			]}
		]
	}`)

	c := d.Derive(context.Background(), rec)
	assert.Equal(t, ShapeGrouped, c.Shape)
	require.Len(t, c.Questions, 3)
	assert.Equal(t, "grouped_1_10_1", c.Questions[1].ID)
	assert.Equal(t, "grouped_2_20_0", c.Questions[2].ID)
	assert.Equal(t, "Question 3", c.Questions[2].Prompt)

	require.Len(t, c.Sections, 2)
	assert.Equal(t, "Electrical", c.Sections[0].GroupName)
	assert.Equal(t, "Ungrouped", c.Sections[1].GroupName)
}

func TestDerive_LegacyShape(t *testing.T) {
	d := newDeriver(t)
	rec := record(t, `{
		"activity": {"resp": [
			{"name": "r1", "label": "Oil level", "type": "radio-group", "values": ["Ok", "Low"]},
			{"label": "Reading", "type": "number"},
			{"label": "Site", "type": "select"}
		]}
	}`)

	c := d.Derive(context.Background(), rec)
	assert.Equal(t, ShapeLegacy, c.Shape)
	require.Len(t, c.Questions, 3)
	assert.Equal(t, []string{"Ok", "Low"}, c.Questions[0].Options)
	assert.Equal(t, "item_1", c.Questions[1].ID)
	assert.Equal(t, model.InputFreeText, c.Questions[1].Kind, "legacy shape has no numeric kind")
	assert.Equal(t, model.InputFreeText, c.Questions[2].Kind)
}

func TestDerive_NoChecklist(t *testing.T) {
	d := newDeriver(t)

	for _, raw := range []string{
		`{}`,
		`{"checklist_questions": []}`,
		`{"checklist_questions": "nope"}`,
		`{"activity": {"resp": null}}`,
	} {
		c := d.Derive(context.Background(), record(t, raw))
		assert.Equal(t, ShapeNone, c.Shape, raw)
		assert.True(t, c.Empty(), raw)
		assert.NotNil(t, c.Questions)
	}
}

func TestDerive_EmptyFlatFallsBackToGrouped(t *testing.T) {
	d := newDeriver(t)
	rec := record(t, `{
		"checklist_questions": [],
		"grouped_questions": [{"group_id": 1, "sub_groups": [{"sub_group_id": 2, "questions": [{"name": "x"}]}]}]
	}`)

	assert.Equal(t, ShapeGrouped, d.Sniff(context.Background(), rec))
	c := d.Derive(context.Background(), rec)
	require.Len(t, c.Questions, 1)
	assert.Equal(t, "x", c.Questions[0].ID)
}

func TestValidateAnswers(t *testing.T) {
	d := newDeriver(t)
	rec := record(t, `{"answer_schema": {"type": "object", "required": ["q1"]}}`)

	assert.NoError(t, d.ValidateAnswers(context.Background(), rec, map[string]interface{}{"q1": "x"}))
	assert.Error(t, d.ValidateAnswers(context.Background(), rec, map[string]interface{}{}))
	assert.NoError(t, d.ValidateAnswers(context.Background(), record(t, `{}`), nil))
}
