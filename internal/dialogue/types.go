// Package dialogue orchestrates the questionnaire: it loads the
// conversation, dispatches on its state, calls the classification,
// candidate, retrieval and judgement services as the state demands, and
// persists the outcome before answering.
package dialogue

import (
	"github.com/sirusiru/radish-engine/internal/conversation"
	"github.com/sirusiru/radish-engine/internal/knowledge"
)

// Request is one inbound turn. The transport layer normalizes legacy field
// names before constructing it; business logic only sees Message.
type Request struct {
	Message        string            `json:"message"`
	ConversationID string            `json:"conversation_id,omitempty"`
	UserID         string            `json:"user_id,omitempty"`
	Selection      string            `json:"selection,omitempty"`
	FormData       map[string]string `json:"form_data,omitempty"`
	CustomerInfo   map[string]string `json:"customer_info,omitempty"`
}

// ResponseType tells the client how to render the answer.
type ResponseType string

const (
	TypeQuestion     ResponseType = "question"
	TypeResult       ResponseType = "result"
	TypeConfirmation ResponseType = "confirmation"
	TypeError        ResponseType = "error"
	TypeSymptom      ResponseType = "symptom"
	TypeDisease      ResponseType = "disease"
	TypeForm         ResponseType = "form"
)

// Input kinds the client should present next.
const (
	InputText      = "text"
	InputSelection = "selection"
	InputForm      = "form"
)

// Option is one selectable choice.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Response is the structured answer for one turn. Answer is always
// non-empty, even on degraded paths.
type Response struct {
	Answer          string                   `json:"answer"`
	ConversationID  string                   `json:"conversation_id"`
	State           conversation.State       `json:"state"`
	DiseaseDetected string                   `json:"disease_detected,omitempty"`
	ConfidenceScore float64                  `json:"confidence_score"`
	Sources         []knowledge.SearchResult `json:"sources"`
	Type            ResponseType             `json:"type"`
	Options         []Option                 `json:"options,omitempty"`
	RequiresInput   string                   `json:"requires_input,omitempty"`
	FormFields      []FormField              `json:"form_fields,omitempty"`
}

// maxSources caps how many retrieval results are echoed back per turn.
const maxSources = 3

// topSources returns up to maxSources results for the response payload.
func topSources(results []knowledge.SearchResult) []knowledge.SearchResult {
	if len(results) > maxSources {
		return results[:maxSources]
	}
	return results
}

// confidenceBand maps a top cosine score onto the coarse confidence scale
// shown to the caller. No results means zero confidence.
func confidenceBand(results []knowledge.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	score := results[0].Score
	switch {
	case score >= 0.9:
		return 1.0
	case score >= 0.8:
		return 0.9
	case score >= 0.6:
		return 0.7
	case score >= 0.4:
		return 0.5
	default:
		return 0.3
	}
}
