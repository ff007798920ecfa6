package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/normaq/clientbook/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable category
	Message string `json:"message"` // human-readable description
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; logging is all that's left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and a category name.
// The message comes from the AppError and never contains hashes or
// secrets; anything untyped collapses to a generic 500.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrAuthentication):
			status = http.StatusUnauthorized // 401
			errorType = "authentication_error"
		case errors.Is(err, apperror.ErrAuthorization):
			status = http.StatusForbidden // 403
			errorType = "authorization_error"
		case errors.Is(err, apperror.ErrValidation),
			errors.Is(err, apperror.ErrInvalidEmailDomain),
			errors.Is(err, apperror.ErrColumnNotFound):
			status = http.StatusBadRequest // 400
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotFound),
			errors.Is(err, apperror.ErrUnknownAccount):
			status = http.StatusNotFound // 404
			errorType = "not_found"
		case errors.Is(err, apperror.ErrDuplicateAccount),
			errors.Is(err, apperror.ErrLastAccount):
			status = http.StatusConflict // 409
			errorType = "conflict"
		case errors.Is(err, apperror.ErrSourceUnavailable):
			status = http.StatusBadGateway // 502
			errorType = "source_unavailable"
		case errors.Is(err, apperror.ErrCorruptStore):
			status = http.StatusInternalServerError
			errorType = "corrupt_store"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "an internal error occurred",
	})
}
