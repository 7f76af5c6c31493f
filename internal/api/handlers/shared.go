package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/openequity/Settlement-Backend/internal/money"
)

// respondJSON sends a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Failed to encode JSON: %v", err)
		}
	}
}

// parseJSON decodes a request body into the given request type. Unknown
// fields are rejected so typos surface as 400s instead of silent zeroes.
func parseJSON[T any](r *http.Request) (T, error) {
	var req T
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(&req)
	return req, err
}

// fmtAmount renders a cent amount as a two-decimal dollar string for
// response bodies ("2500000.00").
func fmtAmount(m money.Money) string {
	return m.Decimal().StringFixed(2)
}
