package dialogue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirusiru/radish-engine/internal/conversation"
	"github.com/sirusiru/radish-engine/internal/knowledge"
)

// The scenario tests walk whole conversations through the manager the way
// the chat widget does, one turn per request.

func TestScenarioNoTreatment(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	turn1, err := f.manager.HandleTurn(ctx, Request{Message: ""})
	require.NoError(t, err)
	assert.Equal(t, conversation.StateTreatmentCheck, turn1.State)
	assert.Equal(t, yesNoOptions(), turn1.Options)

	turn2, err := f.manager.HandleTurn(ctx, Request{ConversationID: turn1.ConversationID, Selection: "no"})
	require.NoError(t, err)
	assert.Equal(t, conversation.StateResult, turn2.State)
	assert.Contains(t, turn2.Answer, "加入可能")
	assert.Equal(t, proceedOptions(), turn2.Options)

	turn3, err := f.manager.HandleTurn(ctx, Request{ConversationID: turn1.ConversationID, Selection: "proceed"})
	require.NoError(t, err)
	assert.Equal(t, conversation.StateFinalConfirmation, turn3.State)

	turn4, err := f.manager.HandleTurn(ctx, Request{ConversationID: turn1.ConversationID, FormData: map[string]string{
		"name":            "山田太郎",
		"email":           "taro@example.com",
		"phone":           "090-0000-0000",
		"privacy_consent": "true",
	}})
	require.NoError(t, err)
	assert.Equal(t, conversation.StateCompleted, turn4.State)

	turn5, err := f.manager.HandleTurn(ctx, Request{ConversationID: turn1.ConversationID, Message: "もう一度"})
	require.NoError(t, err)
	assert.Contains(t, turn5.Answer, "完了")
}

func TestScenarioSymptomPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.candidates.response = threeCandidates()
	f.searcher.results["胃炎"] = []knowledge.SearchResult{chunkResult(1, 1, "主契約: 加入可能", 0.9, 1)}

	turn1, err := f.manager.HandleTurn(ctx, Request{Message: ""})
	require.NoError(t, err)
	id := turn1.ConversationID

	turn2, err := f.manager.HandleTurn(ctx, Request{ConversationID: id, Selection: "yes"})
	require.NoError(t, err)
	assert.Equal(t, conversation.StateDiagnosisKnowledgeCheck, turn2.State)

	turn3, err := f.manager.HandleTurn(ctx, Request{ConversationID: id, Selection: "no"})
	require.NoError(t, err)
	assert.Equal(t, conversation.StateSymptomInput, turn3.State)
	assert.Equal(t, InputText, turn3.RequiresInput)

	turn4, err := f.manager.HandleTurn(ctx, Request{ConversationID: id, Message: "胃が痛い"})
	require.NoError(t, err)
	assert.Equal(t, conversation.StateDiseaseSelection, turn4.State)
	values := make([]string, 0, len(turn4.Options))
	for _, o := range turn4.Options {
		values = append(values, o.Value)
	}
	assert.Equal(t, []string{"胃炎", "胃潰瘍", "逆流性食道炎", "edit_symptom"}, values)
}

func TestScenarioEditSymptomReusesCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.candidates.response = threeCandidates()
	f.searcher.results["胃炎"] = []knowledge.SearchResult{chunkResult(1, 1, "主契約: 加入可能", 0.9, 1)}
	id := f.seed(t, conversation.StateSymptomInput, conversation.CollectedData{HasTreatment: "yes"})

	_, err := f.manager.HandleTurn(ctx, Request{ConversationID: id, Message: "胃が痛い"})
	require.NoError(t, err)
	searchesAfterInput := f.searcher.callCount
	assert.Equal(t, 3, searchesAfterInput)

	back, err := f.manager.HandleTurn(ctx, Request{ConversationID: id, Selection: "edit_symptom"})
	require.NoError(t, err)
	assert.Equal(t, conversation.StateSymptomInput, back.State)
	assert.Equal(t, searchesAfterInput, f.searcher.callCount, "navigation does not touch retrieval")

	// The user changes their mind and re-enters the symptom; the cached
	// candidates are still in the record, and a fresh symptom input runs a
	// fresh fan-out, so retrieval happens again only because new input
	// arrived, never because of navigation.
	conv, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, conv.Data.Candidates, 3)
	assert.Len(t, conv.Data.SearchResults, 3)
}
