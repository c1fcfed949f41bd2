package dialogue

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirusiru/radish-engine/internal/knowledge"
)

func TestRenderDetailView(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes judgement phrases to symbols", func(t *testing.T) {
		f := newFixture()
		results := []knowledge.SearchResult{
			chunkResult(1, 1, "主契約: 加入可能\nがん特約: 加入不可\n女性特約: 条件付き", 0.9, 1),
		}

		text := f.manager.renderDetailView(ctx, "胃炎", results)

		assert.Contains(t, text, "主契約: ○")
		assert.Contains(t, text, "がん特約: ×")
		assert.Contains(t, text, "女性特約: ★")
		assert.NotContains(t, text, "加入可能")
		assert.NotContains(t, text, "加入不可")
	})

	t.Run("conditional acceptance never reads as plain insurable", func(t *testing.T) {
		f := newFixture()
		results := []knowledge.SearchResult{
			chunkResult(1, 1, "主契約: 条件付き加入可", 0.9, 1),
		}

		text := f.manager.renderDetailView(ctx, "胃炎", results)

		assert.Contains(t, text, "主契約: ★")
		assert.NotContains(t, text, "○")
	})

	t.Run("insurers with an insurable line sort first", func(t *testing.T) {
		f := newFixture()
		f.directory.names = map[int32]string{
			1: "全滅生命",
			2: "引受生命",
			3: "混合生命",
		}
		results := []knowledge.SearchResult{
			chunkResult(1, 1, "主契約: 加入不可", 0.9, 1),
			chunkResult(2, 2, "主契約: 加入可能", 0.8, 2),
			chunkResult(3, 3, "主契約: 加入不可\nがん特約: 加入可能", 0.7, 3),
		}

		text := f.manager.renderDetailView(ctx, "胃炎", results)

		posNone := strings.Index(text, "全滅生命")
		posAll := strings.Index(text, "引受生命")
		posMixed := strings.Index(text, "混合生命")
		require.True(t, posNone > 0 && posAll > 0 && posMixed > 0)
		assert.Less(t, posAll, posNone, "insurable insurers come first")
		assert.Less(t, posMixed, posNone)
		assert.Less(t, posAll, posMixed, "within a group retrieval order is kept")
	})

	t.Run("groups multiple chunks per insurer", func(t *testing.T) {
		f := newFixture()
		f.directory.names = map[int32]string{7: "なないろ生命"}
		results := []knowledge.SearchResult{
			chunkResult(1, 7, "主契約: 加入可能", 0.9, 1),
			chunkResult(2, 7, "がん特約: 加入不可", 0.8, 2),
		}

		text := f.manager.renderDetailView(ctx, "胃炎", results)

		assert.Equal(t, 1, strings.Count(text, "なないろ生命"))
		assert.Contains(t, text, "主契約: ○\nがん特約: ×")
	})

	t.Run("unknown insurer id gets the placeholder name", func(t *testing.T) {
		f := newFixture()
		results := []knowledge.SearchResult{chunkResult(1, 99, "主契約: 加入可能", 0.9, 1)}

		text := f.manager.renderDetailView(ctx, "胃炎", results)

		assert.Contains(t, text, "保険会社X")
	})
}

func TestConfidenceBand(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  float64
	}{
		{"very high", 0.95, 1.0},
		{"high", 0.85, 0.9},
		{"medium", 0.7, 0.7},
		{"low", 0.45, 0.5},
		{"floor", 0.1, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := []knowledge.SearchResult{{Score: tt.score, Rank: 1}}
			assert.InDelta(t, tt.want, confidenceBand(results), 1e-9)
		})
	}

	t.Run("no results is zero", func(t *testing.T) {
		assert.Zero(t, confidenceBand(nil))
	})
}

func TestValidateIntakeForm(t *testing.T) {
	t.Run("accepts a complete submission", func(t *testing.T) {
		problems := validateIntakeForm(map[string]string{
			"name":            "山田太郎",
			"kana":            "ヤマダタロウ",
			"email":           "taro@example.com",
			"phone":           "090-0000-0000",
			"birth_date":      "1980-01-01",
			"privacy_consent": "はい",
		})
		assert.Empty(t, problems)
	})

	t.Run("optional fields may be omitted", func(t *testing.T) {
		problems := validateIntakeForm(map[string]string{
			"name":            "山田太郎",
			"email":           "taro@example.com",
			"phone":           "090-0000-0000",
			"privacy_consent": "on",
		})
		assert.Empty(t, problems)
	})

	t.Run("reports every problem in field order", func(t *testing.T) {
		problems := validateIntakeForm(map[string]string{
			"email":           "broken@",
			"privacy_consent": "false",
		})
		require.Len(t, problems, 4)
		assert.Contains(t, problems[0], "お名前")
		assert.Contains(t, problems[1], "メールアドレス")
		assert.Contains(t, problems[2], "お電話番号")
		assert.Contains(t, problems[3], "同意")
	})

	t.Run("whitespace-only values count as missing", func(t *testing.T) {
		problems := validateIntakeForm(map[string]string{
			"name":            "  ",
			"email":           "taro@example.com",
			"phone":           "090-0000-0000",
			"privacy_consent": "true",
		})
		require.Len(t, problems, 1)
		assert.Contains(t, problems[0], "お名前")
	})
}
