package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirusiru/radish-engine/internal/conversation"
	"github.com/sirusiru/radish-engine/internal/dialogue"
)

// TurnHandler processes one chat turn. *dialogue.Manager satisfies it.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req dialogue.Request) (*dialogue.Response, error)
}

// chatRequest is the wire shape of POST /api/chat. Query is the legacy
// alias for Message kept for older widget builds; it is resolved here and
// nowhere else.
type chatRequest struct {
	Message        string            `json:"message"`
	Query          string            `json:"query"`
	ConversationID string            `json:"conversation_id"`
	UserID         string            `json:"user_id"`
	Selection      string            `json:"selection"`
	FormData       map[string]string `json:"form_data"`
	CustomerInfo   map[string]string `json:"customer_info"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, codeBadRequest, "invalid JSON request body")
		return
	}

	message := body.Message
	if message == "" {
		message = body.Query
	}

	resp, err := s.turns.HandleTurn(r.Context(), dialogue.Request{
		Message:        message,
		ConversationID: body.ConversationID,
		UserID:         body.UserID,
		Selection:      body.Selection,
		FormData:       body.FormData,
		CustomerInfo:   body.CustomerInfo,
	})
	if err != nil {
		s.writeTurnError(w, err)
		return
	}

	writeJSON(w, s.logger, http.StatusOK, resp)
}

func (s *Server) writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dialogue.ErrEmptyInput):
		writeError(w, s.logger, http.StatusBadRequest, codeBadRequest, "message text is required for the current step")
	case errors.Is(err, conversation.ErrNotFound):
		writeError(w, s.logger, http.StatusNotFound, codeNotFound, "conversation not found")
	case errors.Is(err, conversation.ErrConflict):
		writeError(w, s.logger, http.StatusConflict, codeConflict, "conversation was updated concurrently, please retry")
	default:
		s.logger.Error("turn failed", "error", err)
		writeError(w, s.logger, http.StatusInternalServerError, codeInternalError, "internal server error")
	}
}
