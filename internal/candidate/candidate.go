// Package candidate proposes disease names for a reported symptom. The
// proposals are hedged suggestions for questionnaire branching, never a
// diagnosis; the prompt enforces that register and the parser only trusts
// the bullet list inside the reply.
package candidate

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirusiru/radish-engine/internal/log"
)

// maxCandidates is the number of disease names presented per symptom.
const maxCandidates = 3

// apologyMessage replaces the reply when generation fails.
const apologyMessage = "申し訳ございません。一時的なエラーが発生しました。もう一度お試しください。"

// generatorPrompt asks for exactly three hedged bullet candidates plus a
// re-entry instruction; the parser depends on the bullet format.
const generatorPrompt = `# 役割
あなたは、特定の医療保険の加入確認を行う、高度なAIチャットボットです。
ユーザーから伝えられた症状に対し、ルールを厳守して回答を生成します。

# 厳守事項
・絶対に断定的な診断を行わず、「可能性が考えられます」といった表現に留めてください。
・提示する疾病名の候補は3つにしてください。
・必ず医療機関の受診を強く推奨する文言を入れてください。
・回答の最後は、必ず診断名が分かり次第、再度入力するように促す文章で締めくくってください。
（例：診断名が分かりましたら、再度ご入力ください。）

# 回答フォーマット例
症状について教えていただきありがとうございます。
『胃が痛い』という症状からは、以下の様な病気の可能性が考えられます。
・胃炎
・胃潰瘍
・逆流性食道炎
あくまでも可能性の提示であり、AIによる診断ではございません。
思い当たる診断名がありましたら、再度ご入力ください。`

const generateMaxTokens = 500

// Candidate is one proposed disease name with a position-derived confidence.
type Candidate struct {
	DiseaseName string  `json:"disease_name"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

// Response is the full generation outcome: the parsed candidates plus the
// verbatim reply shown to the user.
type Response struct {
	Candidates []Candidate `json:"candidates"`
	Message    string      `json:"message"`
}

// Generator proposes disease candidates for a symptom description.
type Generator interface {
	Generate(ctx context.Context, symptom string) Response
}

// completer is the LLM seam. *genai.Client satisfies it.
type completer interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

// LLMGenerator generates candidates via a completion model.
type LLMGenerator struct {
	client completer
	logger log.Logger
}

// NewLLMGenerator builds the production generator.
func NewLLMGenerator(client completer, logger log.Logger) *LLMGenerator {
	if logger == nil {
		logger = log.NewNop()
	}
	return &LLMGenerator{client: client, logger: logger}
}

// Generate returns up to three candidates parsed from the model reply.
// Failures produce an empty candidate list and a fixed apology so the
// conversation can continue; Generate never returns an error.
func (g *LLMGenerator) Generate(ctx context.Context, symptom string) Response {
	prompt := fmt.Sprintf("ユーザーが訴えている症状: %s", symptom)
	reply, err := g.client.Complete(ctx, generatorPrompt, prompt, generateMaxTokens)
	if err != nil {
		g.logger.Warn("candidate generation failed", "error", err)
		return Response{Candidates: []Candidate{}, Message: apologyMessage}
	}

	return Response{
		Candidates: parseCandidates(reply),
		Message:    reply,
	}
}

// parseCandidates extracts disease names from bullet lines. Confidence
// decays by list position: 0.7, 0.6, 0.5.
func parseCandidates(text string) []Candidate {
	var names []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		name := ""
		switch {
		case strings.HasPrefix(trimmed, "・"):
			name = strings.TrimSpace(strings.TrimPrefix(trimmed, "・"))
		case strings.HasPrefix(trimmed, "•"):
			name = strings.TrimSpace(strings.TrimPrefix(trimmed, "•"))
		}
		if name != "" {
			names = append(names, name)
		}
	}

	if len(names) > maxCandidates {
		names = names[:maxCandidates]
	}

	candidates := make([]Candidate, 0, len(names))
	for i, name := range names {
		candidates = append(candidates, Candidate{
			DiseaseName: name,
			Confidence:  0.7 - 0.1*float64(i),
			Reasoning:   "AIによる症状分析に基づく候補",
		})
	}
	return candidates
}
