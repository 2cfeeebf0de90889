package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/refund-management/internal"
	"github.com/frahmantamala/refund-management/pkg/logger"
)

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes an error response for failures that never reached the service.
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	h.WriteAppError(w, &internal.AppError{
		Type:       internal.ErrorTypeValidation,
		Code:       internal.ErrCodeValidationFailed,
		Message:    message,
		StatusCode: status,
	})
}

func (h *BaseHandler) WriteAppError(w http.ResponseWriter, appErr *internal.AppError) {
	status, body := appErr.ToHTTPResponse()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	h.WriteJSON(w, status, body)
}

// HandleServiceError maps a service error onto its HTTP status. Errors that
// are not *internal.AppError are hidden behind a generic internal error.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, err error) {
	if appErr, ok := internal.IsAppError(err); ok {
		if appErr.StatusCode >= http.StatusInternalServerError {
			h.Logger.Error("service error", "code", appErr.Code, "error", err)
		}
		h.WriteAppError(w, appErr)
		return
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		h.Logger.Warn("operation timed out", "error", err)
		h.WriteAppError(w, &internal.AppError{
			Type:       internal.ErrorTypeUnavailable,
			Code:       internal.ErrCodeInternal,
			Message:    "Operation timed out",
			StatusCode: http.StatusGatewayTimeout,
		})
	case errors.Is(err, context.Canceled):
		h.Logger.Warn("request cancelled", "error", err)
		h.WriteAppError(w, &internal.AppError{
			Type:       internal.ErrorTypeInternal,
			Code:       internal.ErrCodeInternal,
			Message:    "Request cancelled",
			StatusCode: 499,
		})
	default:
		h.Logger.Error("unexpected error", "error", err)
		h.WriteAppError(w, internal.NewInternalError("Internal server error", err))
	}
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return ""
	}
	return authHeader[7:]
}
