package service

import (
	"fmt"
	"strconv"
	"strings"
)

// TaskName is the heading of a task occurrence
func TaskName(record map[string]interface{}) string {
	if s := text(record["checklist"]); s != "" {
		return s
	}
	if s := text(nested(record, "task_details")["task_name"]); s != "" {
		return s
	}
	return "Task Submission"
}

var locationParts = []struct{ key, label string }{
	{"site", "Site"},
	{"building", "Building"},
	{"wing", "Wing"},
	{"floor", "Floor"},
	{"area", "Area"},
	{"room", "Room"},
}

// TaskLocation prefers the asset path and falls back to the labelled legacy location,
// skipping NA parts.
func TaskLocation(record map[string]interface{}) string {
	if s := text(record["asset_path"]); s != "" {
		return s
	}
	loc := nested(nested(record, "task_details"), "location")
	if loc == nil {
		return "Location not available"
	}
	var parts []string
	for _, p := range locationParts {
		if v := text(loc[p.key]); v != "" && v != "NA" {
			parts = append(parts, p.label+": "+v)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " / ")
	}
	if s := text(loc["full_location"]); s != "" {
		return s
	}
	return "Location not available"
}

func TaskStatus(record map[string]interface{}) string {
	if s := text(record["task_status"]); s != "" {
		return s
	}
	if s := text(nested(nested(record, "task_details"), "status")["display_name"]); s != "" {
		return s
	}
	return "Unknown Status"
}

func nested(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]interface{})
	return v
}

func text(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func number(v interface{}) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(t))
		return n
	}
	return 0
}
