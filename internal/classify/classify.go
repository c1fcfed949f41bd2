// Package classify decides whether free-form user input names a disease or
// describes a symptom. The decision drives the questionnaire's first branch,
// so the classifier must always produce a usable result: every failure mode
// collapses to TypeOther with zero confidence instead of an error.
package classify

import (
	"context"
	"strings"

	"github.com/sirusiru/radish-engine/internal/log"
)

// Type is the classification outcome.
type Type string

const (
	// TypeDisease means the input is a concrete diagnosis name.
	TypeDisease Type = "DISEASE"
	// TypeSymptom means the input describes a bodily complaint.
	TypeSymptom Type = "SYMPTOM"
	// TypeOther covers unparseable model replies and transport failures.
	TypeOther Type = "OTHER"
)

// Result carries the classification of one input string.
type Result struct {
	Type       Type    `json:"type"`
	Input      string  `json:"input"`
	Confidence float64 `json:"confidence"`
}

// Classifier labels user input as disease name, symptom, or other.
type Classifier interface {
	Classify(ctx context.Context, text string) Result
}

// classifierPrompt constrains the model to a bare DISEASE/SYMPTOM token.
const classifierPrompt = `# 役割
あなたは、医療分野に精通した高度な分類エンジンです。
ユーザーから提供された文字列が、「病名」なのか「症状」なのかを的確に判定します。

# 厳守事項
・必ず「DISEASE」または「SYMPTOM」のいずれかのみを出力してください。
・それ以外の文字列や説明は一切出力しないでください。

# 判定ルール
1. 入力が具体的な疾患名や診断名である場合 → 「DISEASE」を出力
   例: 胃がん、糖尿病、高血圧、うつ病、胃炎、胃潰瘍など

2. 入力が身体的な不調や訴えである場合 → 「SYMPTOM」を出力
   例: 頭が痛い、胃がもたれる、息苦しい、めまいがする、疲れやすいなど

3. 判断に迷う場合は、より可能性の高い方を選択してください。`

// classifyMaxTokens caps the reply; a single token is all that is expected.
const classifyMaxTokens = 10

// completer is the LLM seam. *genai.Client satisfies it.
type completer interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

// LLMClassifier classifies via a completion model.
type LLMClassifier struct {
	client completer
	logger log.Logger
}

// NewLLMClassifier builds the production classifier.
func NewLLMClassifier(client completer, logger log.Logger) *LLMClassifier {
	if logger == nil {
		logger = log.NewNop()
	}
	return &LLMClassifier{client: client, logger: logger}
}

// Classify labels text. A clean DISEASE or SYMPTOM reply gets confidence 0.9;
// anything else, including transport errors, degrades to TypeOther.
func (c *LLMClassifier) Classify(ctx context.Context, text string) Result {
	reply, err := c.client.Complete(ctx, classifierPrompt, text, classifyMaxTokens)
	if err != nil {
		c.logger.Warn("classification failed", "error", err)
		return Result{Type: TypeOther, Input: text, Confidence: 0.0}
	}

	switch Type(strings.TrimSpace(reply)) {
	case TypeDisease:
		return Result{Type: TypeDisease, Input: text, Confidence: 0.9}
	case TypeSymptom:
		return Result{Type: TypeSymptom, Input: text, Confidence: 0.9}
	default:
		c.logger.Warn("unexpected classification reply", "reply", reply)
		return Result{Type: TypeOther, Input: text, Confidence: 0.0}
	}
}
