package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, cfg *JWTConfig, req *http.Request) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()
	var seen *http.Request
	h := cfg.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestMiddleware_ClaimsAndUpstreamToken(t *testing.T) {
	cfg := NewJWTConfig("secret")
	tok, err := cfg.Sign("op-1", "site-9", "claim-token", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	_, seen := capture(t, cfg, req)
	require.NotNil(t, seen)
	assert.Equal(t, "op-1", GetOperatorID(seen.Context()))
	assert.Equal(t, "site-9", GetSiteID(seen.Context()))
	assert.Equal(t, "claim-token", UpstreamToken(seen.Context()))

	req.Header.Set(UpstreamTokenHeader, "header-token")
	_, seen = capture(t, cfg, req)
	assert.Equal(t, "header-token", UpstreamToken(seen.Context()))
}

func TestMiddleware_RejectsBadTokens(t *testing.T) {
	cfg := NewJWTConfig("secret")
	other, err := NewJWTConfig("other").Sign("op-1", "", "", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	rec, seen := capture(t, cfg, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, seen)

	req.Header.Set("Authorization", "Token abc")
	rec, _ = capture(t, cfg, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_AnonymousAndDevHeader(t *testing.T) {
	cfg := NewJWTConfig("")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, seen := capture(t, cfg, req)
	require.NotNil(t, seen)
	assert.Empty(t, GetOperatorID(seen.Context()))

	req.Header.Set("X-Operator-ID", "dev")
	req.Header.Set(UpstreamTokenHeader, "t")
	_, seen = capture(t, cfg, req)
	assert.Equal(t, "dev", GetOperatorID(seen.Context()))
	assert.Equal(t, "t", UpstreamToken(seen.Context()))
}
