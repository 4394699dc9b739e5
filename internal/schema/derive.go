package schema

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"

	"fmconsole/internal/model"
)

//go:embed shapes/*.json
var shapesFS embed.FS

// Shape names the historical checklist layout a record uses.
type Shape string

const (
	ShapeNone    Shape = "none"
	ShapeFlat    Shape = "flat"
	ShapeGrouped Shape = "grouped"
	ShapeLegacy  Shape = "legacy"
)

// Checklist is the normalized result of Derive. An empty question list means no checklist
// is available for the record.
type Checklist struct {
	Shape     Shape                     `json:"shape"`
	Questions []model.ChecklistQuestion `json:"questions"`
	Sections  []model.Section           `json:"sections,omitempty"`
}

// Empty reports whether the record carried no recognizable checklist
func (c Checklist) Empty() bool { return len(c.Questions) == 0 }

// Grouped reports whether the checklist should render in sections
func (c Checklist) Grouped() bool { return len(c.Sections) > 0 }

type normalizer func(record map[string]interface{}) ([]model.ChecklistQuestion, []model.Section, error)

type variant struct {
	shape     Shape
	schema    map[string]interface{}
	normalize normalizer
}

// Deriver sniffs a record's shape and normalizes its checklist.
type Deriver struct {
	comp     *Compiler
	variants []variant
}

// NewDeriver loads the shape schemas in priority order, newest first.
func NewDeriver(comp *Compiler) (*Deriver, error) {
	d := &Deriver{comp: comp}
	order := []struct {
		shape Shape
		fn    normalizer
	}{
		{ShapeFlat, normalizeFlat},
		{ShapeGrouped, normalizeGrouped},
		{ShapeLegacy, normalizeLegacy},
	}
	for _, o := range order {
		raw, err := shapesFS.ReadFile("shapes/" + string(o.shape) + ".json")
		if err != nil {
			return nil, fmt.Errorf("failed to read shape %s: %w", o.shape, err)
		}
		var s map[string]interface{}
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("failed to parse shape %s: %w", o.shape, err)
		}
		if err := comp.Prepare(context.Background(), s); err != nil {
			return nil, fmt.Errorf("failed to compile shape %s: %w", o.shape, err)
		}
		d.variants = append(d.variants, variant{shape: o.shape, schema: s, normalize: o.fn})
	}
	return d, nil
}

// Sniff returns the highest-priority shape the record matches
func (d *Deriver) Sniff(ctx context.Context, record map[string]interface{}) Shape {
	for _, v := range d.variants {
		if d.comp.Matches(ctx, v.schema, record) {
			return v.shape
		}
	}
	return ShapeNone
}

// Derive normalizes the record's checklist. A shape whose payload cannot be decoded falls
// through to the next older shape.
func (d *Deriver) Derive(ctx context.Context, record map[string]interface{}) Checklist {
	for _, v := range d.variants {
		if !d.comp.Matches(ctx, v.schema, record) {
			continue
		}
		questions, sections, err := v.normalize(record)
		if err != nil || len(questions) == 0 {
			continue
		}
		return Checklist{Shape: v.shape, Questions: questions, Sections: sections}
	}
	return Checklist{Shape: ShapeNone, Questions: []model.ChecklistQuestion{}}
}

// ValidateAnswers checks answers against the record's optional answer_schema.
func (d *Deriver) ValidateAnswers(ctx context.Context, record map[string]interface{}, answers map[string]interface{}) error {
	s, ok := record["answer_schema"].(map[string]interface{})
	if !ok {
		return nil
	}
	return d.comp.Validate(ctx, s, answers)
}
