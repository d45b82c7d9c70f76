// Package handlers contains the HTTP surface of aspen-engine.
//
// Error policy: a resource that does not exist and a resource the caller
// holds no grant for both surface as 404, so responses never leak whether a
// row exists. 403 is reserved for category-level denials (an authenticated
// user whose role forbids the operation as such).
package handlers

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the standard JSON error envelope.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorResponse writes a JSON error response with the given status code.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(ErrorBody{Error: errorCode, Message: message})
}

// JSONResponse writes a JSON response with the given status code.
func JSONResponse(w http.ResponseWriter, statusCode int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(body)
}
