// Package respond maps domain errors onto HTTP status codes so every
// handler package reports failures the same way.
package respond

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"glazing-backend/internal/storage"
)

type errorBody struct {
	Error string `json:"error"`
}

// Err writes the HTTP failure for a domain error. validationCode is the
// code used for validation failures, 400 on most endpoints and 422 on the
// create/enum ones.
func Err(w http.ResponseWriter, r *http.Request, log *slog.Logger, op string, err error, validationCode int) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case storage.IsValidation(err):
		writeError(w, r, validationCode, err.Error())
	case storage.IsConflict(err):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrVersionConflict):
		writeError(w, r, http.StatusConflict, "record was modified concurrently, retry")
	default:
		log.Error("request failed", slog.String("op", op), slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	render.Status(r, code)
	render.JSON(w, r, errorBody{Error: msg})
}
