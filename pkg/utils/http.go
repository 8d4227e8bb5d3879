// Package utils holds the small HTTP helpers shared by every handler.
package utils

import (
	"encoding/json"
	"net/http"
)

// maxBodyBytes caps request bodies; every consumer payload here is a small
// JSON object.
const maxBodyBytes = 1 << 20

// errorBody is the uniform error envelope the handlers return.
type errorBody struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// JSONError writes the error envelope with the given status code.
func JSONError(w http.ResponseWriter, status int, message string) {
	_ = JSONWrite(w, status, errorBody{Error: message, Code: status})
}

// JSONWrite writes v as JSON with the given status code. A zero status
// leaves the implicit 200 to the first body write.
func JSONWrite(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	return json.NewEncoder(w).Encode(v)
}

// DecodeJSON reads the request body into dst, capped at maxBodyBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}
