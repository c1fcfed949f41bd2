package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sirusiru/radish-engine/internal/log"
)

// mockCompleter implements completer for testing
type mockCompleter struct {
	reply      string
	err        error
	callCount  int
	lastSystem string
	lastPrompt string
	lastTokens int
}

func (m *mockCompleter) Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	m.callCount++
	m.lastSystem = system
	m.lastPrompt = prompt
	m.lastTokens = maxTokens
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name           string
		reply          string
		err            error
		wantType       Type
		wantConfidence float64
	}{
		{
			name:           "disease reply",
			reply:          "DISEASE",
			wantType:       TypeDisease,
			wantConfidence: 0.9,
		},
		{
			name:           "symptom reply",
			reply:          "SYMPTOM",
			wantType:       TypeSymptom,
			wantConfidence: 0.9,
		},
		{
			name:           "reply with surrounding whitespace",
			reply:          "  DISEASE\n",
			wantType:       TypeDisease,
			wantConfidence: 0.9,
		},
		{
			name:           "chatty reply degrades to other",
			reply:          "この入力はDISEASEです",
			wantType:       TypeOther,
			wantConfidence: 0.0,
		},
		{
			name:           "empty reply degrades to other",
			reply:          "",
			wantType:       TypeOther,
			wantConfidence: 0.0,
		},
		{
			name:           "transport error degrades to other",
			err:            errors.New("request timed out"),
			wantType:       TypeOther,
			wantConfidence: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockCompleter{reply: tt.reply, err: tt.err}
			classifier := NewLLMClassifier(client, log.NewNop())

			result := classifier.Classify(ctx, "糖尿病")

			assert.Equal(t, tt.wantType, result.Type)
			assert.Equal(t, "糖尿病", result.Input)
			assert.InDelta(t, tt.wantConfidence, result.Confidence, 1e-9)
		})
	}
}

func TestClassifyRequestShape(t *testing.T) {
	client := &mockCompleter{reply: "SYMPTOM"}
	classifier := NewLLMClassifier(client, log.NewNop())

	classifier.Classify(context.Background(), "頭が痛い")

	assert.Equal(t, 1, client.callCount)
	assert.Equal(t, "頭が痛い", client.lastPrompt)
	assert.Equal(t, classifyMaxTokens, client.lastTokens)
	assert.Contains(t, client.lastSystem, "DISEASE")
	assert.Contains(t, client.lastSystem, "SYMPTOM")
}
