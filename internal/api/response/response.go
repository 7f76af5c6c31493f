// Package response renders the API's JSON bodies. Every endpoint, including
// error paths, answers with a JSON object so webhook callers and operator
// tooling never have to sniff content types.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// ErrorResponse is the error body shape shared by all endpoints. Details
// carries field-level validation errors or an underlying error string.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// RespondJSON writes data as JSON with the given status code. A nil data
// writes only the status, which is how 204 No Content is sent. Encoding
// errors are logged; the status line has already gone out by then.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logrus.WithError(err).Error("failed to encode JSON response")
		}
	}
}

// RespondError writes an ErrorResponse. message is the stable,
// user-facing description; details may hold an error string, a map of
// field errors, or nil.
func RespondError(w http.ResponseWriter, status int, message string, details interface{}) {
	RespondJSON(w, status, ErrorResponse{
		Error:   message,
		Details: details,
	})
}
