package permit

import "net/url"

func field(name string) string { return "pms_permit_form[" + name + "]" }

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func oneZero(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Encode renders the form as the urlencoded body of update_submit_form. Only here do the
// canonical bools turn into the variant's wire spellings.
func (f *Form) Encode() url.Values {
	v := url.Values{}
	v.Set(field("form_submitted"), "true")
	v.Set(field("job_safety_analysis_required"), yesNo(f.JobSafetyAnalysisRequired))
	v.Set(field("emergency_contact_name"), f.EmergencyContactName)
	v.Set(field("emergency_contact_number"), f.EmergencyContactNumber)
	v.Set(field("msds_available_for_chemical_use"), yesNo(f.MSDSAvailable))
	v.Set(field("specify_the_name"), f.ChemicalName)
	v.Set(field("contractor_storage_place_required"), yesNo(f.StorageRequired))
	v.Set(field("area_allocated"), f.AreaAllocated)
	v.Set(field("any_simultaneous_operations"), yesNo(f.SimultaneousOperations))
	v.Set(field("specify_the_operation"), f.OperationDetail)
	v.Set(field("necessary_ppes_provided"), yesNo(f.PPEsProvided))

	variantFor(f.Variant).encode(f, v)

	v.Set(field("energy_isolation_required"), yesNo(f.EnergyIsolationRequired))
	v.Set(field("tag_out_details"), f.TagOutDetails)
	v.Set(field("energy_isolation_done_by"), f.EnergyIsolationDoneBy)
	v.Set(field("energy_deisolation_done_by"), f.EnergyDeisolationDoneBy)

	for _, cp := range f.Checkpoints {
		if cp.Param1 != "" && cp.Param2 != "" {
			req, chk := "Not Req", "Not Checked"
			if cp.Required {
				req = "Req"
			}
			if cp.Checked {
				chk = "Checked"
			}
			v.Set(field(cp.Param1), req)
			v.Set(field(cp.Param2), chk)
			continue
		}
		v.Set("pms_permit_form[check_points]["+cp.Key+"][required]", yesNo(cp.Required))
		v.Set("pms_permit_form[check_points]["+cp.Key+"][checked]", yesNo(cp.Checked))
	}

	v.Set(field("contract_supervisor_name"), f.SupervisorName)
	v.Set(field("contract_supervisor_number"), f.SupervisorNumber)
	v.Set(field("permit_issuer_id"), f.IssuerID)
	v.Set(field("safety_officer_id"), f.SafetyOfficerID)
	return v
}
