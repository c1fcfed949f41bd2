package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sirusiru/radish-engine/internal/candidate"
	"github.com/sirusiru/radish-engine/internal/classify"
	"github.com/sirusiru/radish-engine/internal/conversation"
	"github.com/sirusiru/radish-engine/internal/judgement"
	"github.com/sirusiru/radish-engine/internal/knowledge"
	"github.com/sirusiru/radish-engine/internal/log"
)

// ErrEmptyInput indicates the current state requires text and none was sent.
var ErrEmptyInput = errors.New("input text is required for the current state")

// Searcher is the retrieval seam. *knowledge.Engine satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, companyID *int32, limit int) []knowledge.SearchResult
}

// Directory resolves insurer names. *insurer.PGDirectory satisfies it.
type Directory interface {
	Name(ctx context.Context, companyID int32) string
}

// Manager drives the questionnaire state machine.
type Manager struct {
	store       conversation.Store
	classifier  classify.Classifier
	candidates  candidate.Generator
	searcher    Searcher
	judge       judgement.Generator
	insurers    Directory
	searchLimit int
	logger      log.Logger
}

// NewManager wires a dialogue manager. searchLimit bounds every retrieval
// call issued on behalf of a turn.
func NewManager(
	store conversation.Store,
	classifier classify.Classifier,
	candidates candidate.Generator,
	searcher Searcher,
	judge judgement.Generator,
	insurers Directory,
	searchLimit int,
	logger log.Logger,
) *Manager {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Manager{
		store:       store,
		classifier:  classifier,
		candidates:  candidates,
		searcher:    searcher,
		judge:       judge,
		insurers:    insurers,
		searchLimit: searchLimit,
		logger:      logger,
	}
}

// HandleTurn processes one inbound turn: load (or create) the conversation,
// dispatch on its state, persist the advance, and answer. Degraded service
// paths still answer; only store failures and missing required input
// surface as errors.
func (m *Manager) HandleTurn(ctx context.Context, req Request) (*Response, error) {
	id := req.ConversationID
	if id == "" {
		id = conversation.NewID()
	}

	conv, err := m.store.CreateIfMissing(ctx, id, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", id, err)
	}

	m.logger.Info("turn received",
		"conversation_id", conv.ID,
		"state", conv.State,
		"has_selection", req.Selection != "",
	)

	switch conv.State {
	case conversation.StateInitial:
		return m.handleInitial(ctx, conv, req)
	case conversation.StateTreatmentCheck:
		return m.handleTreatmentCheck(ctx, conv, req)
	case conversation.StateDiagnosisKnowledgeCheck:
		return m.handleDiagnosisKnowledgeCheck(ctx, conv, req)
	case conversation.StateDiagnosisInput:
		return m.handleDiagnosisInput(ctx, conv, req)
	case conversation.StateSymptomInput:
		return m.handleSymptomInput(ctx, conv, req)
	case conversation.StateSymptomFollowup:
		return m.handleSymptomFollowup(ctx, conv, req)
	case conversation.StateDiseaseSelection:
		return m.handleDiseaseSelection(ctx, conv, req)
	case conversation.StateDiseaseDetailView:
		return m.handleDiseaseDetailView(ctx, conv, req)
	case conversation.StateResult:
		return m.handleResult(ctx, conv, req)
	case conversation.StateFinalConfirmation:
		return m.handleFinalConfirmation(ctx, conv, req)
	case conversation.StateCompleted:
		return m.handleCompleted(conv), nil
	default:
		return nil, fmt.Errorf("conversation %s has unknown state %q", conv.ID, conv.State)
	}
}

// advance persists the transition and returns the response unchanged. The
// record is written exactly once per turn, just before responding.
func (m *Manager) advance(ctx context.Context, conv *conversation.Conversation, next conversation.State, patch conversation.CollectedData, userContent string, resp *Response) (*Response, error) {
	var msgs []conversation.Message
	if userContent != "" {
		msgs = append(msgs, conversation.Message{Role: conversation.RoleUser, Content: userContent})
	}
	msgs = append(msgs, conversation.Message{Role: conversation.RoleAssistant, Content: resp.Answer})

	if _, err := m.store.Update(ctx, conv.ID, conv.Version, next, patch, msgs...); err != nil {
		return nil, fmt.Errorf("persist conversation %s: %w", conv.ID, err)
	}

	resp.ConversationID = conv.ID
	resp.State = next
	if resp.Sources == nil {
		resp.Sources = []knowledge.SearchResult{}
	}
	return resp, nil
}

func (m *Manager) handleInitial(ctx context.Context, conv *conversation.Conversation, req Request) (*Response, error) {
	text := strings.TrimSpace(req.Message)
	if text != "" && req.Selection == "" {
		// The very first message already carries content; classify it and
		// skip the questionnaire preamble when it is usable.
		switch m.classifier.Classify(ctx, text).Type {
		case classify.TypeSymptom:
			return m.processSymptom(ctx, conv, text)
		case classify.TypeDisease:
			return m.processDiagnosis(ctx, conv, text)
		}
	}

	return m.advance(ctx, conv, conversation.StateTreatmentCheck, conversation.CollectedData{}, text, &Response{
		Answer:        greetingMessage,
		Type:          TypeQuestion,
		Options:       yesNoOptions(),
		RequiresInput: InputSelection,
	})
}

func (m *Manager) handleTreatmentCheck(ctx context.Context, conv *conversation.Conversation, req Request) (*Response, error) {
	switch parseYesNo(req.Selection, req.Message) {
	case selectionYes:
		return m.advance(ctx, conv, conversation.StateDiagnosisKnowledgeCheck,
			conversation.CollectedData{HasTreatment: "yes"}, turnInput(req), &Response{
				Answer:        diagnosisKnowledgeQuestion,
				Type:          TypeQuestion,
				Options:       yesNoOptions(),
				RequiresInput: InputSelection,
			})
	case selectionNo:
		// No ongoing treatment short-circuits the pipeline entirely.
		return m.advance(ctx, conv, conversation.StateResult,
			conversation.CollectedData{HasTreatment: "no"}, turnInput(req), &Response{
				Answer:          fullyInsurableMessage,
				Type:            TypeResult,
				ConfidenceScore: 1.0,
				Options:         proceedOptions(),
				RequiresInput:   InputSelection,
			})
	default:
		return m.advance(ctx, conv, conversation.StateTreatmentCheck,
			conversation.CollectedData{}, turnInput(req), &Response{
				Answer:        treatmentRetryMessage,
				Type:          TypeQuestion,
				Options:       yesNoOptions(),
				RequiresInput: InputSelection,
			})
	}
}

func (m *Manager) handleDiagnosisKnowledgeCheck(ctx context.Context, conv *conversation.Conversation, req Request) (*Response, error) {
	switch parseYesNo(req.Selection, req.Message) {
	case selectionYes:
		knows := true
		return m.advance(ctx, conv, conversation.StateDiagnosisInput,
			conversation.CollectedData{KnowsDiagnosis: &knows}, turnInput(req), &Response{
				Answer:        diagnosisInputPrompt,
				Type:          TypeQuestion,
				RequiresInput: InputText,
			})
	case selectionNo:
		knows := false
		return m.advance(ctx, conv, conversation.StateSymptomInput,
			conversation.CollectedData{KnowsDiagnosis: &knows}, turnInput(req), &Response{
				Answer:        symptomInputPrompt,
				Type:          TypeQuestion,
				RequiresInput: InputText,
			})
	default:
		return m.advance(ctx, conv, conversation.StateDiagnosisKnowledgeCheck,
			conversation.CollectedData{}, turnInput(req), &Response{
				Answer:        diagnosisKnowledgeRetryMessage,
				Type:          TypeQuestion,
				Options:       yesNoOptions(),
				RequiresInput: InputSelection,
			})
	}
}

func (m *Manager) handleDiagnosisInput(ctx context.Context, conv *conversation.Conversation, req Request) (*Response, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, ErrEmptyInput
	}
	return m.processDiagnosis(ctx, conv, text)
}

func (m *Manager) handleSymptomInput(ctx context.Context, conv *conversation.Conversation, req Request) (*Response, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, ErrEmptyInput
	}
	return m.processSymptom(ctx, conv, text)
}

// handleSymptomFollowup serves conversations persisted by the earlier
// questionnaire revision: one more symptom is collected, then the flow is
// forced to RESULT.
func (m *Manager) handleSymptomFollowup(ctx context.Context, conv *conversation.Conversation, req Request) (*Response, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, ErrEmptyInput
	}

	symptoms := append(append([]string{}, conv.Data.Symptoms...), text)
	resp := m.candidates.Generate(ctx, strings.Join(symptoms, "、"))

	return m.advance(ctx, conv, conversation.StateResult,
		conversation.CollectedData{Symptoms: symptoms, Candidates: resp.Candidates}, text, &Response{
			Answer:          resp.Message,
			Type:            TypeSymptom,
			ConfidenceScore: 0.7,
			Options:         proceedOptions(),
			RequiresInput:   InputSelection,
		})
}

func (m *Manager) handleDiseaseSelection(ctx context.Context, conv *conversation.Conversation, req Request) (*Response, error) {
	if req.Selection == selectionEditSymptom {
		return m.advance(ctx, conv, conversation.StateSymptomInput,
			conversation.CollectedData{}, req.Selection, &Response{
				Answer:        symptomEditPrompt,
				Type:          TypeQuestion,
				RequiresInput: InputText,
			})
	}

	selected := req.Selection
	if selected == "" {
		selected = strings.TrimSpace(req.Message)
	}
	if isKnownCandidate(conv.Data.Candidates, selected) {
		// Reuse the per-candidate results cached during SYMPTOM_INPUT;
		// back-and-forth navigation never re-queries the embedding service.
		results := conv.Data.SearchResults[selected]
		return m.advance(ctx, conv, conversation.StateDiseaseDetailView,
			conversation.CollectedData{SelectedDisease: selected}, selected, &Response{
				Answer:          m.renderDetailView(ctx, selected, results),
				Type:            TypeDisease,
				DiseaseDetected: selected,
				ConfidenceScore: confidenceBand(results),
				Sources:         topSources(results),
				Options:         detailViewOptions(),
				RequiresInput:   InputSelection,
			})
	}

	return m.advance(ctx, conv, conversation.StateDiseaseSelection,
		conversation.CollectedData{}, turnInput(req), &Response{
			Answer:        selectionRetryMessage,
			Type:          TypeQuestion,
			Options:       candidateOptions(conv.Data.Candidates),
			RequiresInput: InputSelection,
		})
}

func (m *Manager) handleDiseaseDetailView(ctx context.Context, conv *conversation.Conversation, req Request) (*Response, error) {
	switch req.Selection {
	case selectionBackToList:
		return m.advance(ctx, conv, conversation.StateDiseaseSelection,
			conversation.CollectedData{}, req.Selection, &Response{
				Answer:        candidateSelectionSuffix,
				Type:          TypeQuestion,
				Options:       candidateOptions(conv.Data.Candidates),
				RequiresInput: InputSelection,
			})
	case selectionProceed:
		return m.emitIntakeForm(ctx, conv, req.Selection, "")
	default:
		results := conv.Data.SearchResults[conv.Data.SelectedDisease]
		return m.advance(ctx, conv, conversation.StateDiseaseDetailView,
			conversation.CollectedData{}, turnInput(req), &Response{
				Answer:          m.renderDetailView(ctx, conv.Data.SelectedDisease, results),
				Type:            TypeDisease,
				DiseaseDetected: conv.Data.SelectedDisease,
				ConfidenceScore: confidenceBand(results),
				Sources:         topSources(results),
				Options:         detailViewOptions(),
				RequiresInput:   InputSelection,
			})
	}
}

func (m *Manager) handleResult(ctx context.Context, conv *conversation.Conversation, req Request) (*Response, error) {
	if req.Selection == selectionProceed {
		return m.emitIntakeForm(ctx, conv, req.Selection, "")
	}

	switch {
	case conv.Data.HasTreatment == "no":
		return m.advance(ctx, conv, conversation.StateResult,
			conversation.CollectedData{}, turnInput(req), &Response{
				Answer:          fullyInsurableMessage,
				Type:            TypeResult,
				ConfidenceScore: 1.0,
				Options:         proceedOptions(),
				RequiresInput:   InputSelection,
			})
	case conv.Data.DiagnosisName != "":
		return m.processDiagnosis(ctx, conv, conv.Data.DiagnosisName)
	case len(conv.Data.Symptoms) > 0:
		return m.processSymptom(ctx, conv, conv.Data.Symptoms[len(conv.Data.Symptoms)-1])
	default:
		text := strings.TrimSpace(req.Message)
		if text == "" {
			return nil, ErrEmptyInput
		}
		return m.processDiagnosis(ctx, conv, text)
	}
}

func (m *Manager) handleFinalConfirmation(ctx context.Context, conv *conversation.Conversation, req Request) (*Response, error) {
	form := req.FormData
	if form == nil {
		form = req.CustomerInfo
	}
	if form == nil {
		return m.emitIntakeForm(ctx, conv, turnInput(req), "")
	}

	if problems := validateIntakeForm(form); len(problems) > 0 {
		return m.emitIntakeForm(ctx, conv, turnInput(req), strings.Join(problems, "\n"))
	}

	return m.advance(ctx, conv, conversation.StateCompleted,
		conversation.CollectedData{IntakeForm: form}, turnInput(req), &Response{
			Answer:          completedThanksMessage,
			Type:            TypeConfirmation,
			ConfidenceScore: 1.0,
		})
}

// handleCompleted never touches the store: a completed conversation is
// immutable.
func (m *Manager) handleCompleted(conv *conversation.Conversation) *Response {
	return &Response{
		Answer:         alreadyCompletedMessage,
		ConversationID: conv.ID,
		State:          conversation.StateCompleted,
		Type:           TypeResult,
		Sources:        []knowledge.SearchResult{},
	}
}

// emitIntakeForm renders the FINAL_CONFIRMATION form descriptor, prefixing
// validation problems when a submission was rejected.
func (m *Manager) emitIntakeForm(ctx context.Context, conv *conversation.Conversation, userContent, problems string) (*Response, error) {
	answer := formIntroMessage
	respType := TypeForm
	if problems != "" {
		answer = problems + "\n\n" + formIntroMessage
		respType = TypeError
	}
	return m.advance(ctx, conv, conversation.StateFinalConfirmation,
		conversation.CollectedData{}, userContent, &Response{
			Answer:        answer,
			Type:          respType,
			RequiresInput: InputForm,
			FormFields:    intakeFormFields(),
		})
}

// processDiagnosis runs the single-disease pipeline: retrieve, generate a
// grounded judgement, validate, and fall back to the direct template. The
// conversation always ends this turn in RESULT.
func (m *Manager) processDiagnosis(ctx context.Context, conv *conversation.Conversation, diseaseName string) (*Response, error) {
	results := m.searcher.Search(ctx, diseaseName, nil, m.searchLimit)

	patch := conversation.CollectedData{DiagnosisName: diseaseName}

	if len(results) == 0 {
		return m.advance(ctx, conv, conversation.StateResult, patch, diseaseName, &Response{
			Answer:          noResultMessage(diseaseName),
			Type:            TypeError,
			DiseaseDetected: diseaseName,
			ConfidenceScore: 0,
			Options:         proceedOptions(),
			RequiresInput:   InputSelection,
		})
	}

	contexts := make([]string, len(results))
	for i, r := range results {
		contexts[i] = r.Chunk.Content
	}

	answer, err := m.judge.Generate(ctx, diseaseName, strings.Join(contexts, "\n\n"))
	if err != nil || !judgement.Validate(answer, true) {
		if err != nil {
			m.logger.Warn("judgement generation failed, using direct template",
				"conversation_id", conv.ID, "error", err)
		} else {
			m.logger.Warn("judgement failed validation, using direct template",
				"conversation_id", conv.ID)
		}
		answer = judgement.DirectTemplate(results[0])
	}

	return m.advance(ctx, conv, conversation.StateResult, patch, diseaseName, &Response{
		Answer:          answer,
		Type:            TypeDisease,
		DiseaseDetected: diseaseName,
		ConfidenceScore: confidenceBand(results),
		Sources:         topSources(results),
		Options:         proceedOptions(),
		RequiresInput:   InputSelection,
	})
}

// processSymptom appends the symptom, generates candidates, retrieves
// knowledge for every candidate in parallel, caches the result sets, and
// moves to DISEASE_SELECTION.
func (m *Manager) processSymptom(ctx context.Context, conv *conversation.Conversation, symptom string) (*Response, error) {
	symptoms := append(append([]string{}, conv.Data.Symptoms...), symptom)
	resp := m.candidates.Generate(ctx, symptom)

	if len(resp.Candidates) == 0 {
		// Nothing to select from; keep collecting symptoms.
		answer := resp.Message
		if answer == "" {
			answer = processingApologyMessage
		}
		return m.advance(ctx, conv, conversation.StateSymptomInput,
			conversation.CollectedData{Symptoms: symptoms}, symptom, &Response{
				Answer:        answer,
				Type:          TypeSymptom,
				RequiresInput: InputText,
			})
	}

	// Fan out one retrieval per candidate. A failed search degrades to an
	// empty set for that candidate only; Search never returns an error, so
	// the group exists for the wait-all structure.
	resultsByName := make(map[string][]knowledge.SearchResult, len(resp.Candidates))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range resp.Candidates {
		g.Go(func() error {
			found := m.searcher.Search(gctx, c.DiseaseName, nil, m.searchLimit)
			if found == nil {
				found = []knowledge.SearchResult{}
			}
			mu.Lock()
			resultsByName[c.DiseaseName] = found
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return m.advance(ctx, conv, conversation.StateDiseaseSelection,
		conversation.CollectedData{
			Symptoms:      symptoms,
			Candidates:    resp.Candidates,
			SearchResults: resultsByName,
		}, symptom, &Response{
			Answer:          resp.Message + "\n\n" + candidateSelectionSuffix,
			Type:            TypeSymptom,
			ConfidenceScore: 0.7,
			Options:         candidateOptions(resp.Candidates),
			RequiresInput:   InputSelection,
		})
}

func candidateOptions(candidates []candidate.Candidate) []Option {
	options := make([]Option, 0, len(candidates)+1)
	for _, c := range candidates {
		options = append(options, Option{Value: c.DiseaseName, Label: c.DiseaseName})
	}
	options = append(options, Option{Value: selectionEditSymptom, Label: editSymptomLabel})
	return options
}

func detailViewOptions() []Option {
	return []Option{
		{Value: selectionBackToList, Label: backToListLabel},
		{Value: selectionProceed, Label: proceedLabel},
	}
}

func isKnownCandidate(candidates []candidate.Candidate, name string) bool {
	if name == "" {
		return false
	}
	for _, c := range candidates {
		if c.DiseaseName == name {
			return true
		}
	}
	return false
}

// turnInput is the transcript rendering of what the user sent this turn.
func turnInput(req Request) string {
	if req.Selection != "" {
		return req.Selection
	}
	return strings.TrimSpace(req.Message)
}

// parseYesNo resolves a yes/no answer from an explicit selection or from
// free text containing affirmative or negative tokens. Negative tokens are
// checked first so phrasings like 通院していません never read as yes.
func parseYesNo(selection, message string) string {
	switch selection {
	case selectionYes:
		return selectionYes
	case selectionNo:
		return selectionNo
	}

	text := strings.ToLower(strings.TrimSpace(message))
	if text == "" {
		return ""
	}

	for _, token := range []string{"いいえ", "no", "ありません", "ないです", "していない", "していません"} {
		if strings.Contains(text, token) {
			return selectionNo
		}
	}
	for _, token := range []string{"はい", "yes", "あります", "治療中", "通院中", "しています"} {
		if strings.Contains(text, token) {
			return selectionYes
		}
	}
	return ""
}
