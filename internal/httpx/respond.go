package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/wearagain/thriftmarket/internal/apperr"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates the apperr taxonomy into the HTTP contract.
// Conflicts map to 400 like the rest of the validation family; internals
// are logged and never leak details to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var code int
	switch {
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrConflict):
		code = http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		code = http.StatusNotFound
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// decodeValid decodes the body into req and runs struct validation.
func decodeValid(r *http.Request, req any) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return fmt.Errorf("%w: malformed JSON body", apperr.ErrValidation)
	}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return nil
}
