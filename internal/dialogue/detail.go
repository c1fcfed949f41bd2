package dialogue

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirusiru/radish-engine/internal/knowledge"
)

// symbolReplacer collapses the textual judgement phrasings found in the
// corpus to the canonical symbols. 条件付き must be rewritten before the
// plain insurable phrases so a conditional line never reads as a plain ○.
var symbolReplacer = strings.NewReplacer(
	"条件付き加入可", "★",
	"条件付き", "★",
	"加入可能", "○",
	"加入できます", "○",
	"加入不可", "×",
	"加入できません", "×",
)

// insurerBlock is the per-insurer slice of the detail view.
type insurerBlock struct {
	companyID int32
	name      string
	lines     []string
	insurable bool
}

// renderDetailView builds the per-insurer breakdown for one disease from
// cached search results. Insurers with at least one insurable line are
// listed first; within each group the original retrieval order is kept.
func (m *Manager) renderDetailView(ctx context.Context, diseaseName string, results []knowledge.SearchResult) string {
	var order []int32
	blocks := make(map[int32]*insurerBlock)

	for _, r := range results {
		id := r.Chunk.CompanyID
		block, ok := blocks[id]
		if !ok {
			block = &insurerBlock{
				companyID: id,
				name:      m.insurers.Name(ctx, id),
			}
			blocks[id] = block
			order = append(order, id)
		}
		line := symbolReplacer.Replace(r.Chunk.Content)
		block.lines = append(block.lines, line)
		if strings.Contains(line, "○") {
			block.insurable = true
		}
	}

	ordered := make([]*insurerBlock, 0, len(order))
	for _, id := range order {
		ordered = append(ordered, blocks[id])
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].insurable && !ordered[j].insurable
	})

	var b strings.Builder
	fmt.Fprintf(&b, "「%s」の保険会社別のお取り扱いは以下のとおりです。\n", diseaseName)
	for _, block := range ordered {
		b.WriteString("\n■ " + block.name + "\n")
		b.WriteString(strings.Join(block.lines, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}
