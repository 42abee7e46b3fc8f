package utils

import (
	"encoding/json"
	"net/http"
)

// JSON encodes payload as the response body under the given status. A nil
// payload sends the status alone.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// JSONError reports a failure in the {"error": message} envelope every
// handler here uses.
func JSONError(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
