package service

import (
	"errors"

	"fmconsole/internal/backend"
	"fmconsole/internal/location"
	"fmconsole/internal/storage"
)

// Error codes reported to consoles
const (
	CodeValidation  = "validation_failed"
	CodeNotFound    = "not_found"
	CodeNotEditable = "not_editable"
	CodeNoDraft     = "no_draft"
	CodeDrafts      = "drafts_disabled"
	CodeUpstream    = "upstream_error"
	CodeAuth        = "upstream_auth"
	CodeUnavailable = "upstream_unavailable"
	CodeInternal    = "internal_error"
)

// ErrorCode classifies err for API and WebSocket replies.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case IsRejection(err), errors.Is(err, location.ErrUnknownLevel), errors.Is(err, location.ErrUnknownOption):
		return CodeValidation
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrBadSignature):
		return CodeNotFound
	case errors.Is(err, ErrNoDraft):
		return CodeNoDraft
	case errors.Is(err, ErrNotEditable):
		return CodeNotEditable
	case errors.Is(err, ErrDraftsDisabled):
		return CodeDrafts
	case errors.Is(err, backend.ErrAuth):
		return CodeAuth
	case errors.Is(err, backend.ErrTransport):
		return CodeUnavailable
	case errors.Is(err, backend.ErrApplication):
		return CodeUpstream
	}
	return CodeInternal
}

// ErrorMessage is the operator-facing text of err. Internal failures are not echoed.
func ErrorMessage(err error) string {
	if ErrorCode(err) == CodeInternal {
		return "Something went wrong. Please try again."
	}
	return err.Error()
}
