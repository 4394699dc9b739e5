package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	require.NoError(t, Init(v, ""))

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, 30*time.Second, c.Upstream.Timeout)
	assert.Equal(t, float64(10), c.Storage.MaxFileMB)
	assert.Equal(t, 2*time.Hour, c.Session.TTL)
	assert.Equal(t, 1024, c.Session.Max)
	assert.Equal(t, DraftRedis, c.Draft.Backend)
	assert.Equal(t, 7*24*time.Hour, c.Draft.TTL)
	assert.Equal(t, "/pms/asset_task_occurrences/{id}.json", c.Upstream.Endpoints.Task)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FMCONSOLE_UPSTREAM_BASE_URL", "api.example.com")
	t.Setenv("FMCONSOLE_DRAFT_BACKEND", "sqlite")
	t.Setenv("FMCONSOLE_UPSTREAM_ENDPOINTS_UPDATE_TICKET", "/pms/complaints/update.json")
	t.Setenv("FMCONSOLE_SESSION_TTL", "45m")

	v := viper.New()
	require.NoError(t, Init(v, ""))
	c, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "api.example.com", c.Upstream.BaseURL)
	assert.Equal(t, DraftSQLite, c.Draft.Backend)
	assert.Equal(t, "/pms/complaints/update.json", c.Upstream.Endpoints.UpdateTicket)
	assert.Equal(t, 45*time.Minute, c.Session.TTL)
}

func TestLoad_File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "fmconsole.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
addr: ":9090"
upstream:
  site-id: "12"
  endpoints:
    rooms: /pms/custom_rooms.json
storage:
  max-file-mb: 5
`), 0o644))

	v := viper.New()
	require.NoError(t, Init(v, file))
	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.Addr)
	assert.Equal(t, "12", c.Upstream.SiteID)
	assert.Equal(t, "/pms/custom_rooms.json", c.Upstream.Endpoints.Rooms)
	assert.Equal(t, "/pms/wings.json", c.Upstream.Endpoints.Wings)
	assert.Equal(t, float64(5), c.Storage.MaxFileMB)
}

func TestValidate(t *testing.T) {
	v := viper.New()
	require.NoError(t, Init(v, ""))
	v.Set("draft.backend", "memcache")
	v.Set("session.max", 0)

	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "draft.backend")
	assert.Contains(t, err.Error(), "session.max")
}
