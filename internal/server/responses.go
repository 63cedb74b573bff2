package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"ktp-verify/internal/pipeline"
	"ktp-verify/internal/repository"
)

// errorResponse is the JSON envelope for every non-2xx outcome.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError centralizes domain error translation to HTTP responses so the
// handlers stay thin.
func writeError(w http.ResponseWriter, err error) {
	var inputErr *pipeline.InputError
	switch {
	case errors.As(err, &inputErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "input_rejected", Detail: inputErr.Reason})
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
	}
}

func badRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Detail: detail})
}
