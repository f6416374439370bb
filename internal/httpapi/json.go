package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chatvault/chatvault/internal/jobs"
	"github.com/chatvault/chatvault/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusForError maps a store/jobs error onto the taxonomy in
// spec.md §7: not_found -> 404, conflict -> 409, invalid_input -> 400,
// everything else -> 500 (store_error).
func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, jobs.ErrInvalidPattern):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err.Error())
}
