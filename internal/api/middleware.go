package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"fmconsole/internal/model"
	"fmconsole/internal/service"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Step    int    `json:"step,omitempty"`
}

// WriteError writes a standardized error response
func WriteError(w http.ResponseWriter, code int, errCode, message string, log *zap.Logger) {
	if code >= http.StatusInternalServerError {
		log.Error("API error", zap.String("code", errCode), zap.String("message", message))
	} else {
		log.Debug("API rejection", zap.String("code", errCode), zap.String("message", message))
	}
	writeJSON(w, code, ErrorResponse{Error: errCode, Code: errCode, Message: message})
}

// statusFor maps a service error code to an HTTP status
func statusFor(code string) int {
	switch code {
	case service.CodeValidation:
		return http.StatusUnprocessableEntity
	case service.CodeNotFound, service.CodeNoDraft:
		return http.StatusNotFound
	case service.CodeNotEditable, service.CodeUpstream:
		return http.StatusConflict
	case service.CodeDrafts:
		return http.StatusNotImplemented
	case service.CodeAuth:
		return http.StatusUnauthorized
	case service.CodeUnavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeServiceError classifies err and writes it. Validation failures name the field.
func writeServiceError(w http.ResponseWriter, err error, log *zap.Logger) {
	code := service.ErrorCode(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		log.Error("API error", zap.String("code", code), zap.Error(err))
	}
	resp := ErrorResponse{Error: code, Code: code, Message: service.ErrorMessage(err)}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		resp.Field, resp.Step = verr.Field, verr.Step
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Timeout bounds request handling. WebSocket upgrades are passed through untouched.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		timed := middleware.Timeout(d)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timed.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs HTTP requests and responses
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip wrapping for WebSocket upgrades - they need direct access to ResponseWriter
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			log.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
