// Package shared holds response helpers used by every HTTP handler so error
// envelopes and JSON encoding stay consistent across the transport layer.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "consentdesk/pkg/domain-errors"
)

// errorResponse is the JSON error envelope. Fields is present only for
// validation errors: one message per violated field.
type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WriteError translates a domain error into an HTTP response. Unrecognized
// errors become opaque 500s so internals never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		WriteJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   string(dErrors.CodeInternal),
			Message: "internal error",
		})
		return
	}
	WriteJSON(w, dErrors.ToHTTPStatus(de.Code), errorResponse{
		Error:   string(de.Code),
		Message: de.Message,
		Fields:  de.Fields,
	})
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
