package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fmconsole/internal/config"
	"fmconsole/internal/model"
	"fmconsole/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const flatTask = `{
  "steps": 1,
  "checklist": "Pump inspection",
  "asset_path": "Tower A / Pump Room",
  "task_status": "Open",
  "checklist_questions": [
    {"name": "q_valve", "label": "Is the valve closed?", "type": "radio-group", "required": true, "values": ["Yes", "No"]}
  ]
}`

func TestInspectTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/pms/asset_task_occurrences/101.json":
			_, _ = w.Write([]byte(flatTask))
		default:
			_, _ = w.Write([]byte(`{"steps": 3, "task_status": "Open"}`))
		}
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{Upstream: config.Upstream{BaseURL: srv.URL, Token: "service-token", Timeout: 2 * time.Second}}
	deriver, err := schema.NewDeriver(schema.NewCompilerWithCache(16))
	require.NoError(t, err)
	client := newUpstream(cfg, zap.NewNop())

	got, err := inspectTask(context.Background(), client, deriver, "101")
	require.NoError(t, err)
	assert.Equal(t, "Pump inspection", got.Name)
	assert.Equal(t, model.WorkflowSingle, got.Workflow)
	assert.Equal(t, schema.ShapeFlat, got.Shape)
	assert.Equal(t, schema.ShapeFlat, got.Matched)
	assert.False(t, got.Empty)
	assert.False(t, got.Grouped)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "q_valve", got.Items[0].ID)

	none, err := inspectTask(context.Background(), client, deriver, "102")
	require.NoError(t, err)
	assert.True(t, none.Empty)
	assert.Equal(t, schema.ShapeNone, none.Shape)
	assert.Equal(t, model.WorkflowMulti, none.Workflow)
}
