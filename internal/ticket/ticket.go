// Package ticket implements the helpdesk ticket edit form.
package ticket

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"fmconsole/internal/location"
	"fmconsole/internal/model"
)

// Checklist types a ticket can be associated with
const (
	ChecklistAsset   = "Asset"
	ChecklistService = "Service"
)

// Location holds the selected location ids of a ticket
type Location struct {
	Building string `json:"building"`
	Wing     string `json:"wing"`
	Area     string `json:"area"`
	Floor    string `json:"floor"`
	Room     string `json:"room"`
}

// Form is the editable part of a complaint.
type Form struct {
	TicketID     string `json:"ticketId"`
	TicketNumber string `json:"ticketNumber"`
	Heading      string `json:"heading"`

	StatusID string `json:"statusId"`
	AssignTo string `json:"assignTo"`
	Priority string `json:"priority"`
	Comment  string `json:"comment"`

	ComplaintType     string `json:"complaintType"`
	PersonID          string `json:"personId"`
	SupplierID        string `json:"supplierId"`
	ReviewDate        string `json:"reviewDate"`
	CategoryTypeID    string `json:"categoryTypeId"`
	SubCategoryID     string `json:"subCategoryId"`
	ProactiveReactive string `json:"proactiveReactive"`
	ExternalPriority  string `json:"externalPriority"`
	ModeID            string `json:"modeId"`
	Severity          string `json:"severity"`
	ReferenceNumber   string `json:"referenceNumber"`
	ServiceType       string `json:"serviceType"`
	IssueRelatedTo    string `json:"issueRelatedTo"`

	PreventiveAction string `json:"preventiveAction"`
	CorrectiveAction string `json:"correctiveAction"`
	Correction       string `json:"correction"`
	ShortTermImpact  string `json:"shortTermImpact"`
	LongTermImpact   string `json:"longTermImpact"`

	RootCauseTemplates  []string `json:"rootCauseTemplates"`
	PreventiveTemplates []string `json:"preventiveTemplates"`
	CorrectiveTemplates []string `json:"correctiveTemplates"`
	ShortTermTemplates  []string `json:"shortTermTemplates"`
	LongTermTemplates   []string `json:"longTermTemplates"`

	CostInvolved bool `json:"costInvolved"`

	Location Location `json:"location"`

	ChecklistType string `json:"checklistType"`
	AssetID       string `json:"assetId"`
	ServiceID     string `json:"serviceId"`

	Attachments []*model.Attachment `json:"attachments,omitempty"`
}

// Decode reads a complaint detail into a Form. The ticket carries location names rather
// than ids; they are returned for Selector.PrefillByName.
func Decode(record map[string]interface{}) (*Form, [5]string, error) {
	var names [5]string
	if record == nil {
		return nil, names, fmt.Errorf("ticket record is empty")
	}
	s := func(k string) string { return str(record[k]) }

	f := &Form{
		TicketID:          s("id"),
		TicketNumber:      s("ticket_number"),
		Heading:           s("heading"),
		StatusID:          s("complaint_status_id"),
		AssignTo:          s("assigned_to"),
		Priority:          s("priority"),
		Comment:           s("comment"),
		ComplaintType:     s("issue_type"),
		PersonID:          s("person_id"),
		SupplierID:        s("supplier_id"),
		ReviewDate:        NormalizeDate(s("review_tracking")),
		CategoryTypeID:    s("category_type_id"),
		SubCategoryID:     s("sub_category_id"),
		ProactiveReactive: s("proactive_reactive"),
		ExternalPriority:  s("external_priority"),
		ModeID:            s("complaint_mode_id"),
		Severity:          s("severity"),
		ReferenceNumber:   s("reference_number"),
		ServiceType:       s("service_type"),
		IssueRelatedTo:    s("issue_related_to"),
		PreventiveAction:  s("preventive_action"),
		CorrectiveAction:  s("corrective_action"),
		Correction:        s("correction"),
		ShortTermImpact:   s("short_term_impact"),
		LongTermImpact:    s("impact"),

		RootCauseTemplates:  strs(record["rca_template_ids"]),
		PreventiveTemplates: strs(record["preventive_action_template_ids"]),
		CorrectiveTemplates: strs(record["corrective_action_template_ids"]),
		ShortTermTemplates:  strs(record["short_term_impact_template_ids"]),
		LongTermTemplates:   strs(record["long_term_impact_template_ids"]),

		Location: Location{Floor: s("floor_id"), Room: s("room_id")},
	}

	switch s("asset_service") {
	case ChecklistAsset:
		f.ChecklistType, f.AssetID = ChecklistAsset, s("asset_or_service_id")
	case ChecklistService:
		f.ChecklistType, f.ServiceID = ChecklistService, s("asset_or_service_id")
	}

	names = [5]string{s("building_name"), s("wing_name"), s("area_name"), s("floor_name"), s("room_name")}
	return f, names, nil
}

// NormalizeDate turns DD/MM/YYYY and ISO timestamps into YYYY-MM-DD.
func NormalizeDate(d string) string {
	switch {
	case strings.Contains(d, "/"):
		parts := strings.Split(d, "/")
		if len(parts) != 3 {
			return d
		}
		return fmt.Sprintf("%s-%s-%s", parts[2], pad2(parts[1]), pad2(parts[0]))
	case strings.Contains(d, "T"):
		return strings.SplitN(d, "T", 2)[0]
	}
	return d
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// SetLocation copies the cascade selections into the form
func (f *Form) SetLocation(sel *location.Selector) {
	f.Location = Location{
		Building: sel.Selected(location.Building),
		Wing:     sel.Selected(location.Wing),
		Area:     sel.Selected(location.Area),
		Floor:    sel.Selected(location.Floor),
		Room:     sel.Selected(location.Room),
	}
}

// Apply overlays a JSON patch of form fields. Ticket identity, location and attachments
// are managed by their own commands.
func (f *Form) Apply(patch json.RawMessage) error {
	next := *f
	next.Attachments = nil
	if err := json.Unmarshal(patch, &next); err != nil {
		return &model.ValidationError{Field: "form", Message: "Invalid ticket form data: " + err.Error()}
	}
	if next.ChecklistType != "" && next.ChecklistType != ChecklistAsset && next.ChecklistType != ChecklistService {
		return &model.ValidationError{Field: "checklistType", Message: "Checklist type must be Asset or Service"}
	}
	next.TicketID, next.TicketNumber = f.TicketID, f.TicketNumber
	next.Location = f.Location
	next.Attachments = f.Attachments
	*f = next
	return nil
}

// Validate checks the fields required before an update is sent.
func (f *Form) Validate() error {
	if strings.TrimSpace(f.StatusID) == "" {
		return &model.ValidationError{Field: "complaint_status_id", Message: "Required Field. Please select a status"}
	}
	return nil
}

// Fields renders every non-file multipart field of the update.
func (f *Form) Fields() url.Values {
	v := url.Values{}
	v.Set("complaint_log[complaint_id]", f.TicketID)
	v.Set("complaint_log[society_staff_type]", "User")
	v.Set("complaint_log[status_reason]", "")
	v.Set("complaint_log[expected_date]", "")
	v.Set("complaint_log[complaint_status_id]", f.StatusID)
	v.Set("complaint_log[assigned_to]", f.AssignTo)
	v.Set("complaint_log[priority]", f.Priority)
	v.Set("complaint_log[comment]", f.Comment)
	v.Set("save_and_show_detail", "true")
	v.Set("custom_redirect", "/pms/admin/complaints/"+f.TicketID)

	v.Set("complaint[complaint_type]", f.ComplaintType)
	v.Set("complaint[preventive_action]", f.PreventiveAction)
	v.Set("complaint[person_id]", f.PersonID)
	v.Set("complaint[supplier_id]", f.SupplierID)
	v.Set("complaint[review_tracking_date]", f.ReviewDate)
	v.Set("complaint[category_type_id]", f.CategoryTypeID)
	v.Set("complaint[proactive_reactive]", f.ProactiveReactive)
	v.Set("complaint[sub_category_id]", f.SubCategoryID)
	v.Set("complaint[external_priority]", f.ExternalPriority)
	v.Set("complaint[complaint_mode_id]", f.ModeID)
	v.Set("complaint[severity]", f.Severity)

	for key, ids := range map[string][]string{
		"root_cause[template_ids][]":        f.RootCauseTemplates,
		"preventive_action[template_ids][]": f.PreventiveTemplates,
		"corrective_action[template_ids][]": f.CorrectiveTemplates,
		"short_term_impact[template_ids][]": f.ShortTermTemplates,
		"long_term_impact[template_ids][]":  f.LongTermTemplates,
	} {
		for _, id := range ids {
			v.Add(key, id)
		}
	}

	v.Set("complaint[short_term_impact]", f.ShortTermImpact)
	v.Set("complaint[correction]", f.Correction)
	v.Set("complaint[impact]", f.LongTermImpact)
	v.Set("complaint[reference_number]", f.ReferenceNumber)
	v.Set("complaint[corrective_action]", f.CorrectiveAction)
	v.Set("complaint[service_type]", f.ServiceType)
	v.Set("complaint[issue_related_to]", f.IssueRelatedTo)
	v.Set("complaint[cost_involved]", strconv.FormatBool(f.CostInvolved))

	setIf := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	setIf("complaint[area_id]", f.Location.Area)
	setIf("complaint[tower_id]", f.Location.Building)
	setIf("complaint[wing_id]", f.Location.Wing)
	setIf("complaint[floor_id]", f.Location.Floor)
	setIf("complaint[room_id]", f.Location.Room)

	switch f.ChecklistType {
	case ChecklistAsset:
		v.Set("checklist_type", ChecklistAsset)
		v.Set("asset_id", f.AssetID)
		v.Set("service_id", "")
		v.Set("complaint_comment", "")
	case ChecklistService:
		v.Set("checklist_type", ChecklistService)
		v.Set("asset_id", "")
		v.Set("service_id", f.ServiceID)
		v.Set("complaint_comment", "")
	default:
		v.Set("checklist_type", "")
		v.Set("asset_id", "")
		v.Set("service_id", "")
	}
	return v
}

// Opener reads a staged attachment
type Opener func(a *model.Attachment) (io.ReadCloser, error)

// WriteMultipart writes the fields and every attachment as attachments[] parts.
func (f *Form) WriteMultipart(mw *multipart.Writer, open Opener) error {
	for k, vals := range f.Fields() {
		for _, val := range vals {
			if err := mw.WriteField(k, val); err != nil {
				return err
			}
		}
	}
	for _, a := range f.Attachments {
		if err := writeFile(mw, a, open); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(mw *multipart.Writer, a *model.Attachment, open Opener) error {
	rc, err := open(a)
	if err != nil {
		return fmt.Errorf("failed to open attachment %s: %w", a.Name, err)
	}
	defer rc.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachments[]"; filename=%q`, a.Name))
	ct := a.MIME
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, rc)
	return err
}

func str(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func strs(v interface{}) []string {
	list, _ := v.([]interface{})
	if len(list) == 0 {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, x := range list {
		out = append(out, str(x))
	}
	return out
}
