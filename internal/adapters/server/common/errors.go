package common

import (
	"errors"

	"github.com/evanschultz/cadence/internal/app"
	"github.com/evanschultz/cadence/internal/domain"
)

// Error codes shared by the HTTP and MCP surfaces.
const (
	CodeInvalidRequest    = "invalid_request"
	CodeValidationFailed  = "validation_failed"
	CodeNotFound          = "not_found"
	CodeAlreadyCompleted  = "already_completed"
	CodePostponementLimit = "postponement_limit"
	CodeBlocked           = "blocked"
	CodeInvalidTransition = "invalid_transition"
	CodeInternal          = "internal_error"
)

// ErrorInfo is the transport-neutral description of one failure.
type ErrorInfo struct {
	Code    string
	Message string
	Context map[string]any
}

// DescribeError classifies err into a stable code plus structured context.
func DescribeError(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{Code: CodeInternal, Message: "unknown error"}
	}
	info := ErrorInfo{Message: err.Error()}

	var validation *domain.ValidationError
	var limit *domain.PostponementLimitError
	var blocked *domain.BlockedError
	switch {
	case errors.As(err, &validation):
		info.Code = CodeValidationFailed
		info.Context = map[string]any{"violations": validation.Violations}
	case errors.As(err, &limit):
		info.Code = CodePostponementLimit
		info.Context = map[string]any{"item_id": limit.ItemID, "count": limit.Count, "max": limit.Max}
	case errors.As(err, &blocked):
		info.Code = CodeBlocked
		info.Context = map[string]any{"item_id": blocked.ItemID, "blocker_ids": blocked.BlockerIDs}
	case errors.Is(err, ErrNotFound), errors.Is(err, app.ErrNotFound):
		info.Code = CodeNotFound
	case errors.Is(err, domain.ErrAlreadyCompleted):
		info.Code = CodeAlreadyCompleted
	case errors.Is(err, domain.ErrPostponementLimit):
		info.Code = CodePostponementLimit
	case errors.Is(err, domain.ErrBlocked):
		info.Code = CodeBlocked
	case errors.Is(err, domain.ErrInvalidTransition):
		info.Code = CodeInvalidTransition
	case errors.Is(err, domain.ErrValidation):
		info.Code = CodeValidationFailed
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, domain.ErrInvalidID), errors.Is(err, app.ErrInvalidSnapshot):
		info.Code = CodeInvalidRequest
	default:
		info.Code = CodeInternal
	}
	return info
}
