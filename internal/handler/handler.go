// Package handler implements the JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dukerupert/manutenzioni/internal/backup"
	"github.com/dukerupert/manutenzioni/internal/cost"
	"github.com/dukerupert/manutenzioni/internal/csvimport"
	"github.com/dukerupert/manutenzioni/internal/report"
	"github.com/dukerupert/manutenzioni/internal/storage"
	"github.com/dukerupert/manutenzioni/internal/task"
)

const maxJSONBody = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseIDParam returns the named path value when it is a UUID.
func parseIDParam(r *http.Request, name string) (string, error) {
	id := r.PathValue(name)
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("invalid %s %q", name, id)
	}
	return id, nil
}

// decodeJSON reads a JSON body into dst and validates its struct tags. The
// returned error is safe to show to the client.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid JSON")
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	msgs := make([]string, 0, len(ves))
	for _, fe := range ves {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "uuid":
			msgs = append(msgs, field+" must be a valid id")
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// isConstraint reports whether err is a SQLite constraint violation, such
// as deleting a house that still has tasks.
func isConstraint(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, task.ErrNotFound), errors.Is(err, task.ErrImageNotFound):
		return http.StatusNotFound
	case errors.Is(err, task.ErrInvalidTransition), errors.Is(err, backup.ErrRunning):
		return http.StatusConflict
	case errors.Is(err, storage.ErrDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, task.ErrImageTooLarge), errors.Is(err, csvimport.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, task.ErrInvalid), errors.Is(err, task.ErrNotImage),
		errors.Is(err, cost.ErrInvalid), errors.Is(err, cost.ErrNegative),
		errors.Is(err, report.ErrInvalidRange),
		errors.Is(err, csvimport.ErrMissingHeader), errors.Is(err, csvimport.ErrEmptyFile):
		return http.StatusBadRequest
	case errors.Is(err, report.ErrNoTasks):
		return http.StatusNotFound
	case isConstraint(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status statusFor picks. Server errors are logged
// and replaced with fallback so internals do not leak.
func fail(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(fallback, "error", err)
		writeError(w, status, fallback)
		return
	}
	writeError(w, status, err.Error())
}

// optional trims s and returns nil when it is empty.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
