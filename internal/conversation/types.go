// Package conversation persists the questionnaire dialogue: its state
// machine position, the data collected so far, and the message transcript.
package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sirusiru/radish-engine/internal/candidate"
	"github.com/sirusiru/radish-engine/internal/knowledge"
)

// State is the questionnaire position. Transitions are driven by the
// dialogue manager; the store treats states as opaque strings.
type State string

const (
	StateInitial                 State = "INITIAL"
	StateTreatmentCheck          State = "TREATMENT_CHECK"
	StateDiagnosisKnowledgeCheck State = "DIAGNOSIS_KNOWLEDGE_CHECK"
	StateDiagnosisInput          State = "DIAGNOSIS_INPUT"
	StateSymptomInput            State = "SYMPTOM_INPUT"
	StateDiseaseSelection        State = "DISEASE_SELECTION"
	StateDiseaseDetailView       State = "DISEASE_DETAIL_VIEW"
	StateResult                  State = "RESULT"
	StateFinalConfirmation       State = "FINAL_CONFIRMATION"
	StateCompleted               State = "COMPLETED"

	// StateSymptomFollowup is only reachable from conversations persisted
	// by the earlier questionnaire revision. New conversations never enter
	// it, but its handler stays so old rows keep working.
	StateSymptomFollowup State = "SYMPTOM_FOLLOWUP"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// CollectedData accumulates questionnaire answers and cached pipeline
// output across turns. It is stored as a single JSONB blob.
type CollectedData struct {
	HasTreatment    string                              `json:"hasTreatment,omitempty"`
	KnowsDiagnosis  *bool                               `json:"knowsDiagnosis,omitempty"`
	DiagnosisName   string                              `json:"diagnosisName,omitempty"`
	Symptoms        []string                            `json:"symptoms,omitempty"`
	Candidates      []candidate.Candidate               `json:"diseaseCandidates,omitempty"`
	SearchResults   map[string][]knowledge.SearchResult `json:"searchResults,omitempty"`
	SelectedDisease string                              `json:"selectedDisease,omitempty"`
	IntakeForm      map[string]string                   `json:"intakeForm,omitempty"`
}

// Merge overlays the set fields of patch onto d. Zero-valued fields of
// patch leave the existing value alone, matching a JSON key-wise merge.
func (d *CollectedData) Merge(patch CollectedData) {
	if patch.HasTreatment != "" {
		d.HasTreatment = patch.HasTreatment
	}
	if patch.KnowsDiagnosis != nil {
		d.KnowsDiagnosis = patch.KnowsDiagnosis
	}
	if patch.DiagnosisName != "" {
		d.DiagnosisName = patch.DiagnosisName
	}
	if patch.Symptoms != nil {
		d.Symptoms = patch.Symptoms
	}
	if patch.Candidates != nil {
		d.Candidates = patch.Candidates
	}
	if patch.SearchResults != nil {
		d.SearchResults = patch.SearchResults
	}
	if patch.SelectedDisease != "" {
		d.SelectedDisease = patch.SelectedDisease
	}
	if patch.IntakeForm != nil {
		d.IntakeForm = patch.IntakeForm
	}
}

// Conversation is one persisted dialogue.
type Conversation struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId,omitempty"`
	State     State         `json:"state"`
	Version   int32         `json:"version"`
	Data      CollectedData `json:"data"`
	Messages  []Message     `json:"messages"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// NewID mints a conversation id of the form conv_<unix-ms>_<suffix>. The
// millisecond prefix keeps ids roughly sortable by creation time.
func NewID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("conv_%d_%s", time.Now().UnixMilli(), suffix)
}
