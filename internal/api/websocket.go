package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"fmconsole/internal/auth"
	"fmconsole/internal/ws"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: sameOrigin,
}

// sameOrigin accepts non-browser clients and browsers on the serving host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (d Dependencies) wsHandler(w http.ResponseWriter, r *http.Request) {
	if d.Hub == nil {
		d.Log.Error("WebSocket hub not initialized")
		http.Error(w, "WebSocket hub not initialized", http.StatusInternalServerError)
		return
	}

	// Browsers cannot set headers on upgrades; accept the operator token as a query param.
	ctx := r.Context()
	if token := r.URL.Query().Get("token"); token != "" && d.Auth != nil && auth.GetOperatorID(ctx) == "" {
		claimsCtx, err := d.Auth.ContextFromToken(ctx, token)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		ctx = claimsCtx
	}
	operatorID := auth.GetOperatorID(ctx)
	if operatorID == "" {
		operatorID = "anonymous"
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.Log.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	wsConn := ws.NewConn(context.WithoutCancel(ctx), conn, d.Hub, operatorID)
	d.Hub.Register(wsConn)
	d.Log.Info("WebSocket connected", zap.String("operator", operatorID), zap.String("conn", wsConn.ID()))

	go wsConn.WritePump()
	go wsConn.ReadPump()
}
