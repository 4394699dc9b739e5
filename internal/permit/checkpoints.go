package permit

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed checkpoints.yaml
var catalogYAML []byte

// Checkpoint is one safety check of a permit. Param1 and Param2 name the wire fields for
// the required and checked flags; checkpoints without them use the nested check_points form.
type Checkpoint struct {
	Key         string `json:"key" yaml:"key"`
	Description string `json:"description" yaml:"description"`
	Required    bool   `json:"required" yaml:"-"`
	Checked     bool   `json:"checked" yaml:"-"`
	Param1      string `json:"param1,omitempty" yaml:"-"`
	Param2      string `json:"param2,omitempty" yaml:"-"`
}

type catalog struct {
	Hazardous []Checkpoint `yaml:"hazardous"`
}

var defaultCatalog = mustLoadCatalog(catalogYAML)

func mustLoadCatalog(b []byte) catalog {
	var c catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		panic(fmt.Sprintf("permit: bad checkpoint catalog: %v", err))
	}
	for i := range c.Hazardous {
		c.Hazardous[i].Param1 = c.Hazardous[i].Key + "_req_or_not"
		c.Hazardous[i].Param2 = c.Hazardous[i].Key + "_chk"
	}
	return c
}

// HazardousDefaults returns a fresh copy of the hazardous checkpoint catalog.
func HazardousDefaults() []Checkpoint {
	out := make([]Checkpoint, len(defaultCatalog.Hazardous))
	copy(out, defaultCatalog.Hazardous)
	return out
}

// apiCheckpoints reads the parameterized safety_checkpoints list of a fill form.
func apiCheckpoints(list []interface{}) []Checkpoint {
	out := make([]Checkpoint, 0, len(list))
	for i, item := range list {
		m, _ := item.(map[string]interface{})
		out = append(out, Checkpoint{
			Key:         fmt.Sprintf("checkpoint_%d", i),
			Description: str(m["label"]),
			Required:    str(m["required"]) == "Req",
			Checked:     isChecked(m["checked"]),
			Param1:      str(m["parameter1"]),
			Param2:      str(m["parameter2"]),
		})
	}
	return out
}

// hazardousCheckpoints overlays the stored check_points answers onto the catalog.
func hazardousCheckpoints(stored map[string]interface{}) []Checkpoint {
	cps := HazardousDefaults()
	for i := range cps {
		m, _ := stored[cps[i].Key].(map[string]interface{})
		if m == nil {
			continue
		}
		cps[i].Required = str(m["required"]) == "Req"
		cps[i].Checked = isChecked(m["checked"])
	}
	return cps
}

// standardCheckpoints reads nested Yes/No check_points in key order.
func standardCheckpoints(stored map[string]interface{}) []Checkpoint {
	keys := make([]string, 0, len(stored))
	for k := range stored {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Checkpoint, 0, len(keys))
	for _, k := range keys {
		m, _ := stored[k].(map[string]interface{})
		if m == nil {
			continue
		}
		out = append(out, Checkpoint{
			Key:         k,
			Description: str(m["label"]),
			Required:    yes(m["required"]),
			Checked:     yes(m["checked"]),
		})
	}
	return out
}

func isChecked(v interface{}) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return str(v) == "Checked"
}
