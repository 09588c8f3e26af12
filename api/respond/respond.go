// Package respond writes JSON responses for the HTTP handlers.
package respond

import (
	"encoding/json"
	"net/http"
)

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Result is the {success, message} envelope used by mutating endpoints.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Fail writes a {success:false} envelope.
func Fail(w http.ResponseWriter, code int, msg string) {
	JSON(w, code, Result{Message: msg})
}

// Error writes an {error} body.
func Error(w http.ResponseWriter, code int, msg string) {
	JSON(w, code, map[string]string{"error": msg})
}
