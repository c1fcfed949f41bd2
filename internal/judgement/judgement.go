// Package judgement turns retrieved underwriting knowledge into the answer
// shown to the user. Generation is strictly grounded: the prompt forbids
// outside knowledge, Validate rejects replies that smell of it, and
// DirectTemplate renders the raw knowledge as the last-resort answer.
package judgement

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirusiru/radish-engine/internal/knowledge"
	"github.com/sirusiru/radish-engine/internal/log"
)

// groundingPrompt restricts the model to the supplied knowledge context and
// fixes the output format, including the per-rider judgement table.
const groundingPrompt = `# 役割
あなたは、医療保険の加入審査を行う専門AIアシスタントです。
提供されたナレッジベースの情報のみを使用して、正確な引受判定を提示します。

# 厳守事項
・**ナレッジベースに記載された情報のみ**を使用してください
・一般知識や推測での回答は絶対に行わないでください
・ナレッジベースに該当情報がない場合は、「該当する情報が見つかりませんでした」と回答してください
・ナレッジベースの情報を正確に読み取り、そのまま転記してください

# ナレッジベース情報の読み方
ナレッジベースは以下の形式で記載されています:
【疾病情報】
疾病コード: XXX
疾病名: XXX
状態: XXX

【引受判定結果】
主契約: ○/×/★
死亡特約: ○/×/★
... (他の特約)
備考: (条件がある場合のみ)

記号の意味:
○ = 加入可能
× = 加入不可
★ = 条件付き加入可（備考参照）

# 出力フォーマット
ナレッジベースの情報をもとに、以下の形式で回答してください:

お問い合わせいただいた「[疾病名]」について、以下のとおり判定されました。

【疾病情報】
疾病名: [疾病名]
状態: [状態]

【引受判定結果】
主契約: [○/×/★の判定結果]
死亡特約: [○/×/★の判定結果]
P免特約: [○/×/★の判定結果]
がん特約: [○/×/★の判定結果]
先進医療特約: [○/×/★の判定結果]
三大疾病特約: [○/×/★の判定結果]
八大疾病特約: [○/×/★の判定結果]
骨折特約: [○/×/★の判定結果]
女性特約: [○/×/★の判定結果]
なないろセブン: [○/×/★の判定結果]
なないろスリー: [○/×/★の判定結果]
備考: [備考があれば記載、なければ「なし」]

※この判定は、ご提供いただいた情報に基づく暫定的なものです。
※正式な審査には、詳細な医療情報の提出が必要となります。`

const generateMaxTokens = 800

// riskPhrases signal the model answered from general knowledge instead of
// the supplied context.
var riskPhrases = []string{
	"一般的に",
	"通常は",
	"よくある",
	"私の知識では",
	"AIの知識",
	"インターネット",
}

// Generator produces a grounded underwriting judgement for a disease name.
type Generator interface {
	Generate(ctx context.Context, diseaseName, contextText string) (string, error)
}

// completer is the LLM seam. *genai.Client satisfies it.
type completer interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

// LLMGenerator generates judgements via a completion model.
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

// Generate asks the model for a judgement grounded in contextText. Unlike
// the classification and candidate adapters this one returns the error;
// the caller falls back to DirectTemplate.
func (g *LLMGenerator) Generate(ctx context.Context, diseaseName, contextText string) (string, error) {
	prompt := fmt.Sprintf("# ナレッジベース情報\n%s\n\n# 照会疾病名\n%s", contextText, diseaseName)
	reply, err := g.client.Complete(ctx, groundingPrompt, prompt, generateMaxTokens)
	if err != nil {
		g.logger.Warn("judgement generation failed", "disease", diseaseName, "error", err)
		return "", fmt.Errorf("generate judgement: %w", err)
	}
	return reply, nil
}

// Validate reports whether a generated judgement is trustworthy. A reply is
// rejected outright when no knowledge was retrieved, and otherwise when it
// contains any phrase associated with answering from general knowledge.
func Validate(text string, knowledgeUsed bool) bool {
	if !knowledgeUsed {
		return false
	}
	for _, phrase := range riskPhrases {
		if strings.Contains(text, phrase) {
			return false
		}
	}
	return true
}

// DirectTemplate renders the top retrieval result verbatim. Used when
// generation fails or Validate rejects the reply; showing the raw knowledge
// is always safe because it is the source of truth.
func DirectTemplate(top knowledge.SearchResult) string {
	return fmt.Sprintf(`お問い合わせいただいた内容について、以下のとおり判定されました。

%s

※この判定は、ご提供いただいた情報に基づく暫定的なものです。
※正式な審査には、詳細な医療情報の提出が必要となります。`, top.Chunk.Content)
}
