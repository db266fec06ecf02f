package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/kazna/internal/rollover"
	"github.com/dukerupert/kazna/internal/store"
	"github.com/dukerupert/kazna/internal/treasury"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 16

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// writeServiceError maps command errors onto HTTP statuses. Unexpected
// errors are logged and hidden behind a generic message.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	var verr *treasury.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Message, "field": verr.Field})
	case errors.Is(err, treasury.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, treasury.ErrConflict), errors.Is(err, store.ErrVersionConflict):
		writeError(w, http.StatusConflict, treasury.ErrConflict.Error())
	case errors.Is(err, treasury.ErrConfirmationRequired), errors.Is(err, rollover.ErrConfirmationRequired):
		writeError(w, http.StatusPreconditionRequired, "confirmation required")
	default:
		logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}
