package ws

import (
	"context"
	"encoding/json"
	"errors"

	"fmconsole/internal/model"
	"fmconsole/internal/service"

	"go.uber.org/zap"
)

// Sessions is the part of the session service reachable over WebSocket.
// *service.SessionService implements it.
type Sessions interface {
	Open(ctx context.Context, kind model.RecordKind, id, community string) (*service.View, error)
	Get(ctx context.Context, id string) (*service.View, error)
	Execute(ctx context.Context, id string, cmd service.Command) (*service.View, error)
	Close(ctx context.Context, id string) bool
}

var _ Sessions = (*service.SessionService)(nil)

// CommandHandler handles WebSocket commands
type CommandHandler struct {
	sessions Sessions
	log      *zap.Logger
}

func NewCommandHandler(sessions Sessions, log *zap.Logger) *CommandHandler {
	return &CommandHandler{
		sessions: sessions,
		log:      log,
	}
}

// HandleCommand processes a WebSocket command. Session commands carry
// {"op": "exec", "data": {"sessionId": ..., "command": {"op": ..., "data": ...}}}.
func (h *CommandHandler) HandleCommand(ctx context.Context, conn *Conn, cmd map[string]interface{}) {
	op, _ := cmd["op"].(string)
	data, _ := cmd["data"].(map[string]interface{})
	msgID, _ := cmd["id"].(string)

	switch op {
	case "open":
		h.handleOpen(ctx, conn, msgID, data)
	case "get":
		h.handleGet(ctx, conn, msgID, data)
	case "exec":
		h.handleExec(ctx, conn, msgID, data)
	case "close":
		h.handleClose(ctx, conn, msgID, data)
	default:
		h.sendError(conn, msgID, "unknown_command", "Unknown command: "+op)
	}
}

func (h *CommandHandler) handleOpen(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}) {
	kind, _ := data["kind"].(string)
	id, _ := data["id"].(string)
	community, _ := data["community"].(string)
	if kind == "" || id == "" {
		h.sendError(conn, msgID, "invalid_input", "kind and id required")
		return
	}

	view, err := h.sessions.Open(ctx, model.RecordKind(kind), id, community)
	if err != nil {
		h.sendFailure(conn, msgID, err)
		return
	}
	conn.hub.Subscribe(conn, ChannelPrefix+view.ID)
	h.sendView(conn, msgID, view)
}

func (h *CommandHandler) handleGet(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}) {
	sessionID, _ := data["sessionId"].(string)
	if sessionID == "" {
		h.sendError(conn, msgID, "invalid_input", "sessionId required")
		return
	}
	view, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		h.sendFailure(conn, msgID, err)
		return
	}
	h.sendView(conn, msgID, view)
}

func (h *CommandHandler) handleExec(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}) {
	sessionID, _ := data["sessionId"].(string)
	raw, ok := data["command"]
	if sessionID == "" || !ok {
		h.sendError(conn, msgID, "invalid_input", "sessionId and command required")
		return
	}

	b, err := json.Marshal(raw)
	if err != nil {
		h.sendError(conn, msgID, "invalid_input", "command is not valid JSON")
		return
	}
	var cmd service.Command
	if err := json.Unmarshal(b, &cmd); err != nil || cmd.Op == "" {
		h.sendError(conn, msgID, "invalid_input", "command.op required")
		return
	}

	view, err := h.sessions.Execute(ctx, sessionID, cmd)
	if err != nil {
		h.sendFailure(conn, msgID, err)
		return
	}
	h.sendView(conn, msgID, view)
}

func (h *CommandHandler) handleClose(ctx context.Context, conn *Conn, msgID string, data map[string]interface{}) {
	sessionID, _ := data["sessionId"].(string)
	if sessionID == "" {
		h.sendError(conn, msgID, "invalid_input", "sessionId required")
		return
	}
	conn.hub.Unsubscribe(conn, ChannelPrefix+sessionID)
	closed := h.sessions.Close(ctx, sessionID)
	h.sendResponse(conn, msgID, map[string]interface{}{
		"type": "response",
		"data": map[string]bool{"closed": closed},
	})
}

func (h *CommandHandler) sendView(conn *Conn, msgID string, view *service.View) {
	h.sendResponse(conn, msgID, map[string]interface{}{
		"type": "response",
		"data": view,
	})
}

// sendFailure reports a service error. Field rejections carry the offending field.
func (h *CommandHandler) sendFailure(conn *Conn, msgID string, err error) {
	code := service.ErrorCode(err)
	if code == service.CodeInternal {
		h.log.Error("Session command failed", zap.String("conn", conn.id), zap.Error(err))
	}
	msg := map[string]interface{}{
		"type":    "error",
		"code":    code,
		"message": service.ErrorMessage(err),
	}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		msg["field"] = verr.Field
		if verr.Step > 0 {
			msg["step"] = verr.Step
		}
	}
	h.sendResponse(conn, msgID, msg)
}

func (h *CommandHandler) sendResponse(conn *Conn, msgID string, response map[string]interface{}) {
	if msgID != "" {
		response["id"] = msgID
	}
	if !conn.sendJSON(response) {
		h.log.Warn("Failed to send response, channel full")
	}
}

func (h *CommandHandler) sendError(conn *Conn, msgID, code, message string) {
	err := map[string]interface{}{
		"type":    "error",
		"code":    code,
		"message": message,
	}
	if msgID != "" {
		err["id"] = msgID
	}
	if !conn.sendJSON(err) {
		h.log.Warn("Failed to send error, channel full")
	}
}
