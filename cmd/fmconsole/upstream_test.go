package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fmconsole/internal/backend"
	"fmconsole/internal/config"
	"fmconsole/internal/location"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewUpstream_ScopesBuildingsToConfiguredSite(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{{"id": 1, "name": "Tower A"}})
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{Upstream: config.Upstream{
		BaseURL:   srv.URL,
		Token:     "service-token",
		Timeout:   2 * time.Second,
		SiteID:    "55",
		Endpoints: backend.DefaultEndpoints(),
	}}
	c := newUpstream(cfg, zap.NewNop())
	assert.Equal(t, "55", c.SiteID)

	opts, err := c.Options(context.Background(), location.Building, "")
	require.NoError(t, err)
	assert.Equal(t, []location.Option{{ID: "1", Name: "Tower A"}}, opts)
	assert.Equal(t, []string{"/pms/sites/55/buildings.json"}, paths)
}
