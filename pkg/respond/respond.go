package respond

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorBody is the envelope every non-2xx JSON response uses.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON writes v with the given status. Encode failures happen after the
// header is out, so they can only be logged.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Printf("failed to encode json response: %v", err)
	}
}

// Error writes msg wrapped in the standard error envelope.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorBody{Error: msg})
}
