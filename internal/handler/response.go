package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"portal-agent/internal/middleware"
	"portal-agent/pkg/errors"
	"portal-agent/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// maxRequestBytes caps request bodies of the control API
const maxRequestBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, r *http.Request, err error, log *logger.Logger) {
	middleware.WriteError(w, r, err, log)
}

// decodeJSON reads a JSON request body into v
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewValidationError("Invalid request body", map[string]interface{}{"reason": err.Error()})
	}
	return nil
}

// intParam reads a positive integer URL parameter
func intParam(r *http.Request, name string) (int, error) {
	value, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || value <= 0 {
		return 0, errors.NewValidationError("Invalid "+name, nil)
	}
	return value, nil
}
