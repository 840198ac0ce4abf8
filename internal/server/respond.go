package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"cardroom/internal/server/storage"
)

func writeData(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": v})
}

func writeResults(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"results": v})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"message": msg},
	})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	writeError(w, http.StatusInternalServerError, "Internal error.")
}

// currentUser reads the caller's identity. Auth proper lives in front of
// this service; here the id header is taken at face value.
func currentUser(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}
