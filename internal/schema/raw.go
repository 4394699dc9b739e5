package schema

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// flexString accepts a JSON string, number or bool and keeps its text form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexString(strconv.FormatBool(v))
	return nil
}

// flexBool is true for JSON true and the string "true".
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		// objects and arrays are not a required marker
		*f = false
		return nil
	}
	*f = s == "true"
	return nil
}

// rawOption is either a bare label or an object with label, value or name.
type rawOption string

func (o *rawOption) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var obj struct {
			Label flexString `json:"label"`
			Value flexString `json:"value"`
			Name  flexString `json:"name"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		switch {
		case obj.Label != "":
			*o = rawOption(obj.Label)
		case obj.Value != "":
			*o = rawOption(obj.Value)
		default:
			*o = rawOption(obj.Name)
		}
		return nil
	}
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	*o = rawOption(s)
	return nil
}

type rawQuestion struct {
	Name         flexString  `json:"name"`
	Label        flexString  `json:"label"`
	Hint         flexString  `json:"hint"`
	Type         flexString  `json:"type"`
	Required     flexBool    `json:"required"`
	Values       []rawOption `json:"values"`
	GroupID      flexString  `json:"group_id"`
	SubGroupID   flexString  `json:"sub_group_id"`
	GroupName    flexString  `json:"group_name"`
	SubGroupName flexString  `json:"sub_group_name"`
}

type rawSubGroup struct {
	SubGroupID   flexString    `json:"sub_group_id"`
	SubGroupName flexString    `json:"sub_group_name"`
	Questions    []rawQuestion `json:"questions"`
}

type rawGroup struct {
	GroupID   flexString    `json:"group_id"`
	GroupName flexString    `json:"group_name"`
	SubGroups []rawSubGroup `json:"sub_groups"`
}

// flatRecord, groupedRecord and legacyRecord are the three historical payload shapes.
type flatRecord struct {
	Questions []rawQuestion `json:"checklist_questions"`
}

type groupedRecord struct {
	Groups []rawGroup `json:"grouped_questions"`
}

type legacyRecord struct {
	Activity struct {
		Resp []rawQuestion `json:"resp"`
	} `json:"activity"`
}

// decodeRecord re-decodes a generic record into one of the typed shapes.
func decodeRecord(record map[string]interface{}, out interface{}) error {
	b, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
