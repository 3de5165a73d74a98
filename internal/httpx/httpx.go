// Package httpx holds the JSON response and error mapping helpers shared by
// the API handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/zaymazone/marketplace/internal/domain"
)

const maxBodyBytes = 1 << 20

func WriteJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	WriteJSON(w, logger, status, map[string]string{"error": message})
}

// Decode reads a JSON body of at most 1 MiB into dst.
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &domain.ValidationError{Message: "invalid request body"}
	}
	return nil
}

// StatusFor maps a domain error onto an HTTP status code.
func StatusFor(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing text for err. Internal failures never
// leak their detail.
func Message(err error) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, domain.ErrDuplicateEmail):
		return "user already exists"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient stock"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid status transition"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return domain.ErrInvalidCredentials.Error()
	case errors.Is(err, domain.ErrForbidden):
		return "not authorized"
	case errors.Is(err, domain.ErrNotFound):
		return "not found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "internal server error"
	}
}

// Fail answers with the status for err. notFound replaces the generic 404
// text, and 500s are logged with msg and args.
func Fail(w http.ResponseWriter, logger *slog.Logger, err error, notFound, msg string, args ...any) {
	status := StatusFor(err)
	switch status {
	case http.StatusInternalServerError:
		logger.Error(msg, append(args, "error", err)...)
		WriteError(w, logger, status, Message(err))
	case http.StatusNotFound:
		WriteError(w, logger, status, notFound)
	default:
		WriteError(w, logger, status, Message(err))
	}
}

// ParseLimit reads a positive limit. Empty means def; values above ceiling are capped.
func ParseLimit(raw string, def, ceiling int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, domain.Invalid("limit", "must be a positive integer")
	}
	if n > ceiling {
		n = ceiling
	}
	return n, nil
}

// PathID returns the named path value or a validation error when it is blank.
func PathID(r *http.Request, name string) (string, error) {
	id := r.PathValue(name)
	if id == "" {
		return "", domain.Invalid(name, "is required")
	}
	return id, nil
}
