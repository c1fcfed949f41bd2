package api

import (
	"encoding/json"
	"net/http"

	"github.com/sirusiru/radish-engine/internal/log"
)

// errorBody is the JSON envelope for failed requests.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Machine-readable error codes shared with the chat widget.
const (
	codeBadRequest    = "BAD_REQUEST"
	codeNotFound      = "NOT_FOUND"
	codeConflict      = "CONFLICT"
	codeInternalError = "INTERNAL_ERROR"
)

func writeJSON(w http.ResponseWriter, logger log.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger log.Logger, status int, code, message string) {
	writeJSON(w, logger, status, errorBody{Error: message, Code: code})
}
