package backend

import (
	"net/url"
	"strings"
)

// Endpoints are path templates relative to the upstream base URL. Placeholders in braces
// are path-escaped on render.
type Endpoints struct {
	Task           string `mapstructure:"task"`
	SubmitTask     string `mapstructure:"submit-task"`
	Permit         string `mapstructure:"permit"`
	PermitOfficers string `mapstructure:"permit-officers"`
	SubmitPermit   string `mapstructure:"submit-permit"`
	Ticket         string `mapstructure:"ticket"`
	UpdateTicket   string `mapstructure:"update-ticket"`
	Report         string `mapstructure:"report"`
	ReportStatus   string `mapstructure:"report-status"`
	Buildings      string `mapstructure:"buildings"`
	SiteBuildings  string `mapstructure:"site-buildings"`
	Wings          string `mapstructure:"wings"`
	Areas          string `mapstructure:"areas"`
	Floors         string `mapstructure:"floors"`
	Rooms          string `mapstructure:"rooms"`
}

// DefaultEndpoints returns the paths the facilities backend serves.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Task:           "/pms/asset_task_occurrences/{id}.json",
		SubmitTask:     "/pms/asset_quest_responses.json",
		Permit:         "/pms/permits/{id}/fill_form.json",
		PermitOfficers: "/pms/permits/{id}/issue_and_safety_officer.json",
		SubmitPermit:   "/pms/permits/{id}/update_submit_form.json",
		Ticket:         "/pms/admin/complaints/{id}.json",
		UpdateTicket:   "/pms/complaint_logs.json",
		Report:         "/communities/{community}/report_detail.json",
		ReportStatus:   "/communities/{community}/update_report_status.json",
		Buildings:      "/pms/buildings.json",
		SiteBuildings:  "/pms/sites/{site}/buildings.json",
		Wings:          "/pms/wings.json",
		Areas:          "/pms/areas.json",
		Floors:         "/pms/floors.json",
		Rooms:          "/pms/rooms.json",
	}
}

// WithDefaults fills empty templates from DefaultEndpoints
func (e Endpoints) WithDefaults() Endpoints {
	d := DefaultEndpoints()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&e.Task, d.Task)
	fill(&e.SubmitTask, d.SubmitTask)
	fill(&e.Permit, d.Permit)
	fill(&e.PermitOfficers, d.PermitOfficers)
	fill(&e.SubmitPermit, d.SubmitPermit)
	fill(&e.Ticket, d.Ticket)
	fill(&e.UpdateTicket, d.UpdateTicket)
	fill(&e.Report, d.Report)
	fill(&e.ReportStatus, d.ReportStatus)
	fill(&e.Buildings, d.Buildings)
	fill(&e.SiteBuildings, d.SiteBuildings)
	fill(&e.Wings, d.Wings)
	fill(&e.Areas, d.Areas)
	fill(&e.Floors, d.Floors)
	fill(&e.Rooms, d.Rooms)
	return e
}

func render(tpl string, params map[string]string) string {
	if len(params) == 0 {
		return tpl
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", url.PathEscape(v))
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}
