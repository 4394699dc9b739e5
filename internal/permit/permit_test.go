package permit

import (
	"encoding/json"
	"errors"
	"testing"

	"fmconsole/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSON(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

const hazardousFillForm = `{
  "pms_permit": {
    "permit_id": "11780",
    "permit_type": "Loading, Unloading Hazardous Material Work",
    "permit_for": "Unload diesel",
    "initiator": {"full_name": "Asha Rao"},
    "manpower_count": 4,
    "permit_form": {"resp_json": {
      "emergency_contact_name": "Control Room",
      "emergency_contact_number": "100",
      "contract_supervisor_name": "R. Iyer",
      "contract_supervisor_number": "98200",
      "risk_assessment_number": "RA-7",
      "permission_is_given_to_contractor": "Granted",
      "gas_testing_conducted_for_hydrocarbons": "1",
      "gas_testing_conducted_for_h2o": "1",
      "gas_testing_conducted_for_oxygen": "0",
      "utilities_provided_by_company": {"water_supply": "1", "air_supply": "0"},
      "ppes_provided": "Yes",
      "check_points": {"firefighting_team": {"required": "Req", "checked": "Checked"}}
    }}
  }
}`

const standardFillForm = `{
  "permit_type": "Hot Work",
  "permit_type_name": "Hot Work Permit",
  "permit_form": {"resp_json": {
    "emergency_contact_name": "Control Room",
    "emergency_contact_number": "100",
    "contract_supervisor_name": "R. Iyer",
    "contract_supervisor_number": "98200",
    "msds_available_for_chemical_use": "Yes",
    "specify_the_name": "Acetylene",
    "necessary_ppes_provided": true,
    "utilities_to_be_provided_by_company": {"water_supply": "Water Supply", "air_supply": "Air Supply"},
    "check_points": {"fire_extinguisher": {"required": "Yes", "checked": true}}
  }},
  "safety_checkpoints": [
    {"label": "Area barricaded", "required": "Req", "checked": "Not Checked", "parameter1": "barricade_req", "parameter2": "barricade_chk"}
  ]
}`

func TestDecode_Hazardous(t *testing.T) {
	f, err := Decode(decodeJSON(t, hazardousFillForm))
	require.NoError(t, err)

	assert.Equal(t, VariantHazardous, f.Variant)
	assert.True(t, f.Hazardous())
	assert.Equal(t, "11780", f.PermitID)
	assert.Equal(t, HazardousPermitType, f.TypeName)
	assert.Equal(t, 4, f.Manpower)
	assert.True(t, f.PPEsProvided)
	assert.Equal(t, Utilities{Water: true}, f.Utilities)

	require.NotNil(t, f.Hazard)
	assert.Equal(t, GasTests{Hydrocarbons: true, H2S: true}, f.Hazard.GasTests)
	assert.Equal(t, "RA-7", f.Hazard.RiskAssessmentNumber)

	require.Len(t, f.Checkpoints, 8)
	assert.Equal(t, "combustible_flammable_material_removed", f.Checkpoints[0].Key)
	assert.Equal(t, "combustible_flammable_material_removed_req_or_not", f.Checkpoints[0].Param1)
	ff := f.Checkpoints[1]
	assert.Equal(t, "firefighting_team", ff.Key)
	assert.True(t, ff.Required)
	assert.True(t, ff.Checked)
}

func TestDecode_StandardUsesApiCheckpoints(t *testing.T) {
	f, err := Decode(decodeJSON(t, standardFillForm))
	require.NoError(t, err)

	assert.Equal(t, VariantStandard, f.Variant)
	assert.Nil(t, f.Hazard)
	assert.Equal(t, "Hot Work Permit", f.TypeName)
	assert.True(t, f.MSDSAvailable)
	assert.True(t, f.PPEsProvided)
	assert.Equal(t, Utilities{Water: true, Air: true}, f.Utilities)

	require.Len(t, f.Checkpoints, 1)
	assert.Equal(t, "barricade_req", f.Checkpoints[0].Param1)
	assert.True(t, f.Checkpoints[0].Required)
	assert.False(t, f.Checkpoints[0].Checked)
}

func TestEncode_HazardousWireSpellings(t *testing.T) {
	f, err := Decode(decodeJSON(t, hazardousFillForm))
	require.NoError(t, err)

	v := f.Encode()
	assert.Equal(t, "true", v.Get("pms_permit_form[form_submitted]"))
	assert.Equal(t, "1", v.Get("pms_permit_form[gas_testing_conducted_for_h2s]"))
	assert.Equal(t, "0", v.Get("pms_permit_form[gas_testing_conducted_for_oxygen]"))
	assert.Equal(t, "Yes", v.Get("pms_permit_form[ppes_provided]"))
	assert.Equal(t, "1", v.Get("pms_permit_form[utilities_provided_by_company_water_supply]"))
	_, sentAir := v["pms_permit_form[utilities_provided_by_company_air_supply]"]
	assert.False(t, sentAir)
	assert.Empty(t, v["pms_permit_form[utilities_to_be_provided_by_company2]"])

	assert.Equal(t, "Req", v.Get("pms_permit_form[firefighting_team_req_or_not]"))
	assert.Equal(t, "Checked", v.Get("pms_permit_form[firefighting_team_chk]"))
	assert.Equal(t, "Not Req", v.Get("pms_permit_form[close_supervision_req_or_not]"))
	assert.Equal(t, "Not Checked", v.Get("pms_permit_form[close_supervision_chk]"))
}

func TestEncode_StandardWireSpellings(t *testing.T) {
	f, err := Decode(decodeJSON(t, standardFillForm))
	require.NoError(t, err)

	v := f.Encode()
	assert.Equal(t, "Yes", v.Get("pms_permit_form[msds_available_for_chemical_use]"))
	assert.Equal(t, "No", v.Get("pms_permit_form[contractor_storage_place_required]"))
	assert.Equal(t, []string{"Water Supply"}, v["pms_permit_form[utilities_to_be_provided_by_company2]"])
	assert.Equal(t, []string{"Air Supply"}, v["pms_permit_form[utilities_to_be_provided_by_company3]"])
	assert.Empty(t, v.Get("pms_permit_form[gas_testing_conducted_for_h2s]"))
	assert.Equal(t, "Req", v.Get("pms_permit_form[barricade_req]"))
	assert.Equal(t, "Not Checked", v.Get("pms_permit_form[barricade_chk]"))
}

func TestEncode_NestedCheckpointsWithoutParameters(t *testing.T) {
	f := &Form{Variant: VariantStandard, Checkpoints: []Checkpoint{{Key: "fire_extinguisher", Required: true}}}
	v := f.Encode()
	assert.Equal(t, "Yes", v.Get("pms_permit_form[check_points][fire_extinguisher][required]"))
	assert.Equal(t, "No", v.Get("pms_permit_form[check_points][fire_extinguisher][checked]"))
}

func TestValidate(t *testing.T) {
	f, err := Decode(decodeJSON(t, standardFillForm))
	require.NoError(t, err)
	require.NoError(t, f.Validate())

	f.ChemicalName = " "
	err = f.Validate()
	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "specify_the_name", verr.Field)

	f.MSDSAvailable = false
	require.NoError(t, f.Validate())

	f.SimultaneousOperations = true
	err = f.Validate()
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "specify_the_operation", verr.Field)
}

func TestValidate_HazardousExtras(t *testing.T) {
	f, err := Decode(decodeJSON(t, hazardousFillForm))
	require.NoError(t, err)
	require.NoError(t, f.Validate())

	f.Hazard.PermissionToContractor = ""
	err = f.Validate()
	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "permission_is_given_to_contractor", verr.Field)

	f.EmergencyContactName = ""
	require.True(t, errors.As(f.Validate(), &verr))
	assert.Equal(t, "emergency_contact_name", verr.Field)
}

func TestApply(t *testing.T) {
	f, err := Decode(decodeJSON(t, hazardousFillForm))
	require.NoError(t, err)

	require.NoError(t, f.Apply(json.RawMessage(`{"variant":"standard","storageRequired":true,"areaAllocated":"Yard 2","hazard":{"vehicleEntryRequired":true},"checkpoints":[]}`)))
	assert.Equal(t, VariantHazardous, f.Variant)
	assert.True(t, f.StorageRequired)
	assert.Equal(t, "Yard 2", f.AreaAllocated)
	assert.True(t, f.Hazard.VehicleEntryRequired)
	assert.Equal(t, "RA-7", f.Hazard.RiskAssessmentNumber)
	assert.Len(t, f.Checkpoints, 8)

	assert.Error(t, f.Apply(json.RawMessage(`{"storageRequired":"maybe"}`)))
	assert.Equal(t, "Yard 2", f.AreaAllocated)
}

func TestSetCheckpoint(t *testing.T) {
	f := &Form{Variant: VariantHazardous, Checkpoints: HazardousDefaults()}
	require.NoError(t, f.SetCheckpoint("cylinders_upright", true, true))
	assert.Equal(t, "Checked", f.Encode().Get("pms_permit_form[cylinders_upright_chk]"))
	assert.ErrorIs(t, f.SetCheckpoint("nope", true, false), ErrUnknownCheckpoint)

	// the catalog copy is not shared
	assert.False(t, HazardousDefaults()[4].Checked)
}

func TestExtractPermitID(t *testing.T) {
	assert.Equal(t, "11780", ExtractPermitID("fm-uat-api.example.com/pms/permits/11780.json"))
	assert.Equal(t, "42", ExtractPermitID("things/42.json"))
	assert.Equal(t, "991", ExtractPermitID("991"))
}

func TestOfficers(t *testing.T) {
	var o Officers
	require.NoError(t, json.Unmarshal([]byte(`{
	  "permit_issuers": [{"id": 7, "name": "Issuer", "mobile": 98}],
	  "selected_issuer": {"id": 7, "name": "Issuer"},
	  "permit_safety_officers": [],
	  "selected_safety_officer": null
	}`), &o))
	assert.Equal(t, "98", o.Issuers[0].Mobile)

	f := &Form{}
	f.ApplyOfficers(&o)
	assert.Equal(t, "7", f.IssuerID)
	assert.Empty(t, f.SafetyOfficerID)
}
