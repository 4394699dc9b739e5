package service

import (
	"context"

	"fmconsole/internal/backend"
	"fmconsole/internal/model"

	"go.uber.org/zap"
)

// Moderation statuses of a community report, in workflow order.
var ReportStatuses = []string{"under_review", "action_in_progress", "resolved", "closed"}

var reportStatusLabels = map[string]string{
	"under_review":       "Under Review",
	"action_in_progress": "In Progress",
	"resolved":           "Resolved",
	"closed":             "Closed",
}

const defaultReportStatus = "under_review"

// StatusLabel returns the display label, or the raw status when it is not a known one.
func StatusLabel(status string) string {
	if l, ok := reportStatusLabels[status]; ok {
		return l
	}
	return status
}

// ReportView is a community report with its moderation status
type ReportView struct {
	Community   string         `json:"community"`
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	StatusLabel string         `json:"statusLabel"`
	Statuses    []string       `json:"statuses"`
	Detail      backend.Record `json:"detail"`
}

// ReportUpstream is the part of the backend reports need
type ReportUpstream interface {
	FetchReport(ctx context.Context, community, id string) (backend.Record, error)
	UpdateReportStatus(ctx context.Context, community, id, status string) error
}

type ReportService struct {
	up  ReportUpstream
	log *zap.Logger
}

func NewReportService(up ReportUpstream, log *zap.Logger) *ReportService {
	return &ReportService{up: up, log: log}
}

func (r *ReportService) Get(ctx context.Context, community, id string) (*ReportView, error) {
	rec, err := r.up.FetchReport(ctx, community, id)
	if err != nil {
		return nil, err
	}
	return newReportView(community, id, rec), nil
}

func newReportView(community, id string, rec backend.Record) *ReportView {
	status := text(rec["status"])
	if status == "" {
		status = defaultReportStatus
	}
	return &ReportView{
		Community:   community,
		ID:          id,
		Status:      status,
		StatusLabel: StatusLabel(status),
		Statuses:    ReportStatuses,
		Detail:      rec,
	}
}

// SetStatus moderates the report held by current. On an upstream failure current is
// returned unchanged together with the error; on success the detail is reloaded.
func (r *ReportService) SetStatus(ctx context.Context, current *ReportView, status string) (*ReportView, error) {
	if err := validateStatus(status); err != nil {
		return current, err
	}
	if err := r.up.UpdateReportStatus(ctx, current.Community, current.ID, status); err != nil {
		r.log.Warn("Report status update failed",
			zap.String("report_id", current.ID), zap.String("status", status), zap.Error(err))
		return current, err
	}

	updated, err := r.Get(ctx, current.Community, current.ID)
	if err != nil {
		r.log.Warn("Failed to reload report", zap.String("report_id", current.ID), zap.Error(err))
		next := *current
		next.Status, next.StatusLabel = status, StatusLabel(status)
		return &next, nil
	}
	return updated, nil
}

// UpdateStatus loads the report and moderates it.
func (r *ReportService) UpdateStatus(ctx context.Context, community, id, status string) (*ReportView, error) {
	if err := validateStatus(status); err != nil {
		return nil, err
	}
	current, err := r.Get(ctx, community, id)
	if err != nil {
		return nil, err
	}
	return r.SetStatus(ctx, current, status)
}

func validateStatus(status string) error {
	if _, ok := reportStatusLabels[status]; !ok {
		return &model.ValidationError{Field: "status", Message: "Unknown report status: " + status}
	}
	return nil
}
