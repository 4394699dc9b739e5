// Package permit implements the permit fill form. Standard permits and hazardous material
// permits share one canonical form; the variant picks decoding, required fields and the
// wire encoding once at load time.
package permit

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"fmconsole/internal/model"
)

// HazardousPermitType is the permit_type that selects the hazardous variant.
const HazardousPermitType = "Loading, Unloading Hazardous Material Work"

// Variant names a permit form schema
type Variant string

const (
	VariantStandard  Variant = "standard"
	VariantHazardous Variant = "hazardous"
)

// Utilities the company provides to the contractor
type Utilities struct {
	Water      bool `json:"water"`
	Electrical bool `json:"electrical"`
	Air        bool `json:"air"`
}

// GasTests records which gas tests were conducted
type GasTests struct {
	Hydrocarbons bool `json:"hydrocarbons"`
	H2S          bool `json:"h2s"`
	Oxygen       bool `json:"oxygen"`
	Others       bool `json:"others"`
}

// Hazard holds the fields only the hazardous variant carries.
type Hazard struct {
	JobSafetyAnalysisAttached string   `json:"jobSafetyAnalysisAttached"`
	RiskAssessmentNumber      string   `json:"riskAssessmentNumber"`
	VehicleEntryRequired      bool     `json:"vehicleEntryRequired"`
	GasTests                  GasTests `json:"gasTests"`
	GasTestRepeatAfter        string   `json:"gasTestRepeatAfter"`
	ContinuousGasMonitoring   bool     `json:"continuousGasMonitoring"`
	WorksiteExaminationBy     string   `json:"worksiteExaminationBy"`
	SimultaneousOperation     bool     `json:"simultaneousOperation"`
	OperationDetail           string   `json:"operationDetail"`
	IsolationRequired         string   `json:"isolationRequired"`
	TagOutDetailsElectrical   string   `json:"tagOutDetailsElectrical"`
	IsolationDoneBy           string   `json:"isolationDoneBy"`
	DeisolationDoneBy         string   `json:"deisolationDoneBy"`
	PermissionToContractor    string   `json:"permissionToContractor"`
}

// Form is the canonical fill form. Yes/no fields are plain bools; the wire spelling is
// chosen by Encode.
type Form struct {
	Variant  Variant `json:"variant"`
	PermitID string  `json:"permitId"`
	TypeName string  `json:"typeName"`

	JobDescription string `json:"jobDescription"`
	Location       string `json:"location"`
	InitiatedBy    string `json:"initiatedBy"`
	Contractor     string `json:"contractor"`
	Manpower       int    `json:"manpower"`

	JobSafetyAnalysisRequired bool      `json:"jobSafetyAnalysisRequired"`
	EmergencyContactName      string    `json:"emergencyContactName"`
	EmergencyContactNumber    string    `json:"emergencyContactNumber"`
	MSDSAvailable             bool      `json:"msdsAvailable"`
	ChemicalName              string    `json:"chemicalName"`
	StorageRequired           bool      `json:"storageRequired"`
	AreaAllocated             string    `json:"areaAllocated"`
	SimultaneousOperations    bool      `json:"simultaneousOperations"`
	OperationDetail           string    `json:"operationDetail"`
	PPEsProvided              bool      `json:"ppesProvided"`
	Utilities                 Utilities `json:"utilities"`
	EnergyIsolationRequired   bool      `json:"energyIsolationRequired"`
	TagOutDetails             string    `json:"tagOutDetails"`
	EnergyIsolationDoneBy     string    `json:"energyIsolationDoneBy"`
	EnergyDeisolationDoneBy   string    `json:"energyDeisolationDoneBy"`

	Checkpoints []Checkpoint `json:"checkpoints"`

	SupervisorName   string `json:"supervisorName"`
	SupervisorNumber string `json:"supervisorNumber"`
	IssuerID         string `json:"issuerId"`
	SafetyOfficerID  string `json:"safetyOfficerId"`

	Hazard *Hazard `json:"hazard,omitempty"`
}

// Hazardous reports whether the form uses the hazardous material schema
func (f *Form) Hazardous() bool { return f.Variant == VariantHazardous }

var (
	permitURLPattern = regexp.MustCompile(`/permits/(\d+)\.json$`)
	trailingIDJSON   = regexp.MustCompile(`(\d+)\.json$`)
)

// ExtractPermitID returns the numeric id of a permit reference, which may be a bare id or
// an API URL ending in /permits/<n>.json.
func ExtractPermitID(ref string) string {
	if !strings.Contains(ref, ".json") {
		return ref
	}
	if m := permitURLPattern.FindStringSubmatch(ref); m != nil {
		return m[1]
	}
	if m := trailingIDJSON.FindStringSubmatch(ref); m != nil {
		return m[1]
	}
	return ref
}

// Decode reads a fill_form response, either wrapped in pms_permit or bare, into a Form.
func Decode(record map[string]interface{}) (*Form, error) {
	p := record
	if inner, ok := record["pms_permit"].(map[string]interface{}); ok {
		p = inner
	}
	if p == nil {
		return nil, fmt.Errorf("permit record is empty")
	}

	f := &Form{Variant: VariantStandard}
	if str(p["permit_type"]) == HazardousPermitType {
		f.Variant = VariantHazardous
	}

	f.PermitID = str(p["permit_id"])
	f.TypeName = firstNonEmpty(str(p["permit_type_name"]), str(p["permit_type"]), "-")
	f.JobDescription = str(p["permit_for"])
	f.Location = str(p["location_details"])
	f.InitiatedBy = str(obj(p, "initiator")["full_name"])
	f.Contractor = str(obj(p, "contractor")["name"])
	f.Manpower = num(p["manpower_count"])

	resp := obj(obj(p, "permit_form"), "resp_json")
	variantFor(f.Variant).decode(f, resp)

	f.JobSafetyAnalysisRequired = yes(resp["job_safety_analysis_required"])
	f.EmergencyContactName = str(resp["emergency_contact_name"])
	f.EmergencyContactNumber = str(resp["emergency_contact_number"])
	f.MSDSAvailable = yes(resp["msds_available_for_chemical_use"])
	f.ChemicalName = str(resp["specify_the_name"])
	f.StorageRequired = yes(resp["contractor_storage_place_required"])
	f.AreaAllocated = str(resp["area_allocated"])
	f.SimultaneousOperations = yes(resp["any_simultaneous_operations"])
	f.OperationDetail = str(resp["specify_the_operation"])
	f.EnergyIsolationRequired = yes(resp["energy_isolation_required"])
	f.TagOutDetails = str(resp["tag_out_details"])
	f.EnergyIsolationDoneBy = str(resp["energy_isolation_done_by"])
	f.EnergyDeisolationDoneBy = str(resp["energy_deisolation_done_by"])
	f.SupervisorName = str(resp["contract_supervisor_name"])
	f.SupervisorNumber = str(resp["contract_supervisor_number"])

	if list, ok := p["safety_checkpoints"].([]interface{}); ok {
		f.Checkpoints = apiCheckpoints(list)
	} else if f.Hazardous() {
		f.Checkpoints = hazardousCheckpoints(obj(resp, "check_points"))
	} else {
		f.Checkpoints = standardCheckpoints(obj(resp, "check_points"))
	}
	return f, nil
}

type requirement struct {
	field string
	label string
	when  func(f *Form) bool
	value func(f *Form) string
}

var commonRequirements = []requirement{
	{field: "emergency_contact_name", label: "Emergency Contact Name", value: func(f *Form) string { return f.EmergencyContactName }},
	{field: "emergency_contact_number", label: "Emergency Contact Number", value: func(f *Form) string { return f.EmergencyContactNumber }},
	{field: "contract_supervisor_name", label: "Contractor Supervisor Name", value: func(f *Form) string { return f.SupervisorName }},
	{field: "contract_supervisor_number", label: "Contractor Supervisor Contact", value: func(f *Form) string { return f.SupervisorNumber }},
	{
		field: "specify_the_name", label: "Chemical Name",
		when:  func(f *Form) bool { return f.MSDSAvailable },
		value: func(f *Form) string { return f.ChemicalName },
	},
	{
		field: "area_allocated", label: "Area Allocated",
		when:  func(f *Form) bool { return f.StorageRequired },
		value: func(f *Form) string { return f.AreaAllocated },
	},
}

// Validate returns a field-specific error for the first missing required field.
func (f *Form) Validate() error {
	reqs := append(append([]requirement{}, commonRequirements...), variantFor(f.Variant).requirements()...)
	for _, r := range reqs {
		if r.when != nil && !r.when(f) {
			continue
		}
		if strings.TrimSpace(r.value(f)) == "" {
			return &model.ValidationError{Field: r.field, Message: "Required Field. Please fill in: " + r.label}
		}
	}
	return nil
}

var ErrUnknownCheckpoint = errors.New("unknown checkpoint")

// Apply overlays a JSON patch of form fields. The variant, permit id and checkpoint list
// cannot be changed this way.
func (f *Form) Apply(patch json.RawMessage) error {
	next := *f
	next.Checkpoints = nil
	if f.Hazard != nil {
		h := *f.Hazard
		next.Hazard = &h
	}
	if err := json.Unmarshal(patch, &next); err != nil {
		return &model.ValidationError{Field: "form", Message: "Invalid permit form data: " + err.Error()}
	}
	next.Variant, next.PermitID, next.TypeName = f.Variant, f.PermitID, f.TypeName
	next.Checkpoints = f.Checkpoints
	if !next.Hazardous() {
		next.Hazard = nil
	}
	*f = next
	return nil
}

// SetCheckpoint updates the flags of one checkpoint by key.
func (f *Form) SetCheckpoint(key string, required, checked bool) error {
	for i := range f.Checkpoints {
		if f.Checkpoints[i].Key == key {
			f.Checkpoints[i].Required = required
			f.Checkpoints[i].Checked = checked
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownCheckpoint, key)
}

// Person is a selectable permit issuer or safety officer
type Person struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
}

func (p *Person) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID     interface{} `json:"id"`
		Name   string      `json:"name"`
		Mobile interface{} `json:"mobile"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.ID, p.Name, p.Mobile = str(raw.ID), raw.Name, str(raw.Mobile)
	return nil
}

// Officers is the issuer and safety officer lookup of a permit.
type Officers struct {
	Issuers               []Person `json:"permit_issuers"`
	SelectedIssuer        *Person  `json:"selected_issuer"`
	SafetyOfficers        []Person `json:"permit_safety_officers"`
	SelectedSafetyOfficer *Person  `json:"selected_safety_officer"`
}

// ApplyOfficers preselects the issuer and safety officer the upstream already assigned.
func (f *Form) ApplyOfficers(o *Officers) {
	if o == nil {
		return
	}
	if o.SelectedIssuer != nil && f.IssuerID == "" {
		f.IssuerID = o.SelectedIssuer.ID
	}
	if o.SelectedSafetyOfficer != nil && f.SafetyOfficerID == "" {
		f.SafetyOfficerID = o.SelectedSafetyOfficer.ID
	}
}

func obj(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]interface{})
	return v
}

func str(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func num(v interface{}) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	}
	return 0
}

// yes decodes the loose yes/no spellings of the standard variant.
func yes(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "true", "1":
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
