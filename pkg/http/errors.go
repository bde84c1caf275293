package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/restgate/internal/models"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes v as a JSON body with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	// Log encoding errors but don't expose them to client
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, message)
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message)
}

// WriteSecurityError translates err into the response for its class,
// independent of the route that produced it. Unclassified faults are logged
// and answered with a bare 500.
func WriteSecurityError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var authzErr *models.AuthorizationError
	var validationErr *models.ValidationError

	switch {
	case errors.Is(err, models.ErrNotAuthenticated):
		logger.Info("unauthorized", slog.String("reason", "not_authenticated"))
		WriteUnauthorized(w, models.ErrNotAuthenticated.Error())
	case errors.Is(err, models.ErrAuthenticationFailed):
		logger.Info("unauthorized", slog.String("reason", "authentication_failed"))
		WriteUnauthorized(w, models.ErrAuthenticationFailed.Error())
	case errors.As(err, &authzErr):
		logger.Info("forbidden",
			slog.String("required_role", string(authzErr.Required)),
			slog.String("role", string(authzErr.Actual)))
		WriteForbidden(w, authzErr.Error())
	case errors.Is(err, models.ErrForbidden):
		logger.Info("forbidden", slog.String("error", err.Error()))
		WriteForbidden(w, err.Error())
	case errors.As(err, &validationErr):
		logger.Info("bad request", slog.String("error", validationErr.Message))
		WriteBadRequest(w, validationErr.Message)
	case errors.Is(err, models.ErrMalformedRequest):
		WriteBadRequest(w, models.ErrMalformedRequest.Error())
	case errors.Is(err, models.ErrBadRequest):
		WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrNotFound):
		WriteNotFound(w, models.ErrNotFound.Error())
	case errors.Is(err, models.ErrConflict):
		WriteConflict(w, models.ErrConflict.Error())
	default:
		logger.Error("unexpected error while handling request", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}
