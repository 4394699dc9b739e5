package permit

import "net/url"

// variant carries everything that differs between permit schemas.
type variant interface {
	decode(f *Form, resp map[string]interface{})
	encode(f *Form, v url.Values)
	requirements() []requirement
}

func variantFor(v Variant) variant {
	if v == VariantHazardous {
		return hazardous{}
	}
	return standard{}
}

type standard struct{}

func (standard) decode(f *Form, resp map[string]interface{}) {
	f.PPEsProvided = yes(resp["necessary_ppes_provided"])
	u := obj(resp, "utilities_to_be_provided_by_company")
	f.Utilities = Utilities{
		Water:      str(u["water_supply"]) == "Water Supply",
		Electrical: str(u["electrical_supply"]) == "Electrical Supply",
		Air:        str(u["air_supply"]) == "Air Supply",
	}
}

func (standard) encode(f *Form, v url.Values) {
	if f.Utilities.Water {
		v.Add(field("utilities_to_be_provided_by_company2"), "Water Supply")
	}
	if f.Utilities.Electrical {
		v.Add(field("utilities_to_be_provided_by_company2"), "Electrical Supply")
	}
	if f.Utilities.Air {
		v.Add(field("utilities_to_be_provided_by_company3"), "Air Supply")
	}
}

func (standard) requirements() []requirement {
	return []requirement{{
		field: "specify_the_operation", label: "Operation Detail",
		when:  func(f *Form) bool { return f.SimultaneousOperations },
		value: func(f *Form) string { return f.OperationDetail },
	}}
}

type hazardous struct{}

func (hazardous) decode(f *Form, resp map[string]interface{}) {
	f.PPEsProvided = yes(resp["ppes_provided"])
	u := obj(resp, "utilities_provided_by_company")
	f.Utilities = Utilities{
		Water:      str(u["water_supply"]) == "1",
		Electrical: str(u["electrical_supply"]) == "1",
		Air:        str(u["air_supply"]) == "1",
	}
	f.Hazard = &Hazard{
		JobSafetyAnalysisAttached: str(resp["job_safety_analysis_attached"]),
		RiskAssessmentNumber:      str(resp["risk_assessment_number"]),
		VehicleEntryRequired:      yes(resp["vehicle_entry_required"]),
		GasTests: GasTests{
			Hydrocarbons: str(resp["gas_testing_conducted_for_hydrocarbons"]) == "1",
			// stored under an h2o key upstream
			H2S:    str(resp["gas_testing_conducted_for_h2o"]) == "1",
			Oxygen: str(resp["gas_testing_conducted_for_oxygen"]) == "1",
			Others: str(resp["gas_testing_conducted_for_others"]) == "1",
		},
		GasTestRepeatAfter:      str(resp["gas_test_to_be_repeated_after"]),
		ContinuousGasMonitoring: yes(resp["continuous_gas_monitoring_required"]),
		WorksiteExaminationBy:   str(resp["worksite_examination_by"]),
		SimultaneousOperation:   yes(resp["any_simultaneous_operation"]),
		OperationDetail:         str(resp["if_yes_specify_the_operation"]),
		IsolationRequired:       str(resp["isolation_required_electrical_mechanical"]),
		TagOutDetailsElectrical: str(resp["tag_out_details_electrical"]),
		IsolationDoneBy:         str(resp["energy_isolation_done_by_electrical"]),
		DeisolationDoneBy:       str(resp["energy_de_isolation_done_by_electrical"]),
		PermissionToContractor:  str(resp["permission_is_given_to_contractor"]),
	}
}

func (hazardous) encode(f *Form, v url.Values) {
	h := f.Hazard
	if h == nil {
		h = &Hazard{}
	}
	v.Set(field("job_safety_analysis_attached"), h.JobSafetyAnalysisAttached)
	v.Set(field("risk_assessment_number"), h.RiskAssessmentNumber)
	v.Set(field("vehicle_entry_required"), yesNo(h.VehicleEntryRequired))
	v.Set(field("gas_testing_conducted_for_hydrocarbons"), oneZero(h.GasTests.Hydrocarbons))
	v.Set(field("gas_testing_conducted_for_h2s"), oneZero(h.GasTests.H2S))
	v.Set(field("gas_testing_conducted_for_oxygen"), oneZero(h.GasTests.Oxygen))
	v.Set(field("gas_testing_conducted_for_others"), oneZero(h.GasTests.Others))
	v.Set(field("gas_test_to_be_repeated_after"), h.GasTestRepeatAfter)
	v.Set(field("continuous_gas_monitoring_required"), yesNo(h.ContinuousGasMonitoring))
	v.Set(field("worksite_examination_by"), firstNonEmpty(h.WorksiteExaminationBy, "No"))
	v.Set(field("any_simultaneous_operation"), yesNo(h.SimultaneousOperation))
	v.Set(field("if_yes_specify_the_operation"), h.OperationDetail)
	v.Set(field("ppes_provided"), yesNo(f.PPEsProvided))
	v.Set(field("isolation_required_electrical_mechanical"), h.IsolationRequired)
	v.Set(field("tag_out_details_electrical"), h.TagOutDetailsElectrical)
	v.Set(field("energy_isolation_done_by_electrical"), h.IsolationDoneBy)
	v.Set(field("energy_de_isolation_done_by_electrical"), h.DeisolationDoneBy)
	v.Set(field("permission_is_given_to_contractor"), h.PermissionToContractor)

	if f.Utilities.Water {
		v.Set(field("utilities_provided_by_company_water_supply"), "1")
	}
	if f.Utilities.Electrical {
		// upstream spelling
		v.Set(field("utilities_provided_by_company_elecrical_supply"), "1")
	}
	if f.Utilities.Air {
		v.Set(field("utilities_provided_by_company_air_supply"), "1")
	}
}

func (hazardous) requirements() []requirement {
	hz := func(f *Form) *Hazard {
		if f.Hazard == nil {
			return &Hazard{}
		}
		return f.Hazard
	}
	return []requirement{
		{field: "risk_assessment_number", label: "Risk Assessment Number", value: func(f *Form) string { return hz(f).RiskAssessmentNumber }},
		{field: "permission_is_given_to_contractor", label: "Permission Given To Contractor", value: func(f *Form) string { return hz(f).PermissionToContractor }},
		{
			field: "if_yes_specify_the_operation", label: "Operation Detail",
			when:  func(f *Form) bool { return hz(f).SimultaneousOperation },
			value: func(f *Form) string { return hz(f).OperationDetail },
		},
	}
}
