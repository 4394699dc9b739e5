package main

import (
	"fmconsole/internal/backend"
	"fmconsole/internal/config"

	"go.uber.org/zap"
)

func newUpstream(cfg *config.Config, log *zap.Logger) *backend.Client {
	c := backend.New(cfg.Upstream.BaseURL, cfg.Upstream.Token, cfg.Upstream.Timeout, cfg.Upstream.Endpoints, log)
	c.SiteID = cfg.Upstream.SiteID
	return c
}
