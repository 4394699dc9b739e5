package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"

	"fmconsole/internal/location"
	"fmconsole/internal/permit"
)

// Record is an upstream JSON object
type Record = map[string]interface{}

// TaskStats are the counters the task endpoint returns on success
type TaskStats struct {
	QuestionsAttended int `json:"question_attended_count"`
	NegativeAnswers   int `json:"negative_answers_count"`
	ComplaintsRaised  int `json:"complaints_count"`
}

// FetchTask loads a task occurrence with its embedded checklist.
func (c *Client) FetchTask(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := c.do(ctx, "task", http.MethodGet, render(c.Endpoints.Task, map[string]string{"id": id}), nil, nil, &rec)
	return rec, err
}

// SubmitTask posts a task payload. The "not available" application error is rewritten to
// the operator-facing explanation.
func (c *Client) SubmitTask(ctx context.Context, payload interface{}) (TaskStats, error) {
	var stats TaskStats
	err := c.do(ctx, "submit_task", http.MethodPost, c.Endpoints.SubmitTask, nil, jsonBody{payload}, &stats)
	var e *Error
	if errors.As(err, &e) && e.Kind == KindApplication && e.Message == upstreamUnavailable {
		e.Message = MsgTaskUnavailable
	}
	return stats, err
}

// FetchPermit loads a permit fill form.
func (c *Client) FetchPermit(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := c.do(ctx, "permit", http.MethodGet, render(c.Endpoints.Permit, map[string]string{"id": permit.ExtractPermitID(id)}), nil, nil, &rec)
	return rec, err
}

func (c *Client) FetchPermitOfficers(ctx context.Context, id string) (*permit.Officers, error) {
	var o permit.Officers
	err := c.do(ctx, "permit_officers", http.MethodGet, render(c.Endpoints.PermitOfficers, map[string]string{"id": permit.ExtractPermitID(id)}), nil, nil, &o)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// SubmitPermit sends the urlencoded fill form.
func (c *Client) SubmitPermit(ctx context.Context, id string, form url.Values) error {
	path := render(c.Endpoints.SubmitPermit, map[string]string{"id": permit.ExtractPermitID(id)})
	return c.do(ctx, "submit_permit", http.MethodPut, path, nil, formBody{form}, nil)
}

func (c *Client) FetchTicket(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := c.do(ctx, "ticket", http.MethodGet, render(c.Endpoints.Ticket, map[string]string{"id": id}), nil, nil, &rec)
	return rec, err
}

// UpdateTicket posts the multipart ticket update written by write.
func (c *Client) UpdateTicket(ctx context.Context, write func(mw *multipart.Writer) error) (Record, error) {
	var rec Record
	err := c.do(ctx, "update_ticket", http.MethodPost, c.Endpoints.UpdateTicket, nil, multipartBody{write}, &rec)
	return rec, err
}

// FetchReport returns the report object of a community report detail.
func (c *Client) FetchReport(ctx context.Context, community, id string) (Record, error) {
	var resp struct {
		Report Record `json:"report"`
	}
	path := render(c.Endpoints.Report, map[string]string{"community": community})
	if err := c.do(ctx, "report", http.MethodGet, path, url.Values{"report_id": {id}}, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Report == nil {
		return nil, applicationError(http.StatusOK, 0, "Report not found")
	}
	return resp.Report, nil
}

// UpdateReportStatus moderates a community report. The upstream takes it as a GET.
func (c *Client) UpdateReportStatus(ctx context.Context, community, id, status string) error {
	var resp struct {
		Success *bool `json:"success"`
	}
	path := render(c.Endpoints.ReportStatus, map[string]string{"community": community})
	if err := c.do(ctx, "report_status", http.MethodGet, path, url.Values{"report_id": {id}, "status": {status}}, nil, &resp); err != nil {
		return err
	}
	if resp.Success != nil && !*resp.Success {
		return applicationError(http.StatusOK, 0, "Failed to update report status")
	}
	return nil
}

var (
	parentParam = map[location.Level]string{
		location.Wing:  "building_id",
		location.Area:  "wing_id",
		location.Floor: "area_id",
		location.Room:  "floor_id",
	}
	listKeys = map[location.Level][]string{
		location.Building: {"pms_buildings", "buildings"},
		location.Wing:     {"wings"},
		location.Area:     {"areas"},
		location.Floor:    {"floors"},
		location.Room:     {"rooms"},
	}
)

// Options implements location.OptionSource. Buildings are scoped by site; every other
// level by its parent id.
func (c *Client) Options(ctx context.Context, level location.Level, parentID string) ([]location.Option, error) {
	var path string
	var query url.Values
	switch level {
	case location.Building:
		site := parentID
		if site == "" {
			site = c.SiteID
		}
		if site != "" {
			path = render(c.Endpoints.SiteBuildings, map[string]string{"site": site})
		} else {
			path = c.Endpoints.Buildings
		}
	case location.Wing:
		path = c.Endpoints.Wings
	case location.Area:
		path = c.Endpoints.Areas
	case location.Floor:
		path = c.Endpoints.Floors
	case location.Room:
		path = c.Endpoints.Rooms
	default:
		return nil, fmt.Errorf("%w: %d", location.ErrUnknownLevel, int(level))
	}
	if p, ok := parentParam[level]; ok && parentID != "" {
		query = url.Values{p: {parentID}}
	}

	var raw json.RawMessage
	if err := c.do(ctx, level.String()+"s", http.MethodGet, path, query, nil, &raw); err != nil {
		return nil, err
	}
	return unwrapOptions(raw, listKeys[level])
}

func unwrapOptions(raw json.RawMessage, keys []string) ([]location.Option, error) {
	var opts []location.Option
	if err := json.Unmarshal(raw, &opts); err == nil {
		return opts, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, applicationError(http.StatusOK, 0, "Unexpected response from server")
	}
	for _, k := range keys {
		if list, ok := wrapped[k]; ok {
			if err := json.Unmarshal(list, &opts); err != nil {
				return nil, applicationError(http.StatusOK, 0, "Unexpected response from server")
			}
			return opts, nil
		}
	}
	return []location.Option{}, nil
}
