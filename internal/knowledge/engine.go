package knowledge

import (
	"context"
	"errors"
	"sort"

	"github.com/firebase/genkit/go/ai"

	"github.com/sirusiru/radish-engine/internal/log"
)

var errEmptyEmbedding = errors.New("embedder returned no embeddings")

// ChunkSource loads candidate chunks for scoring. *PGSource satisfies this;
// tests substitute an in-memory implementation.
type ChunkSource interface {
	ListChunks(ctx context.Context, companyID *int32) ([]Chunk, error)
	MatchChunks(ctx context.Context, query string, companyID *int32, limit int) ([]Chunk, error)
}

// Engine retrieves the chunks most relevant to a query. The primary path
// embeds the query and scores every stored chunk by cosine similarity; when
// embedding or scoring is unavailable it degrades to a lexical substring
// match so the caller always gets an answer path.
type Engine struct {
	source   ChunkSource
	embedder ai.Embedder
	logger   log.Logger
}

// NewEngine wires a retrieval engine over the given source and embedder.
func NewEngine(source ChunkSource, embedder ai.Embedder, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{source: source, embedder: embedder, logger: logger}
}

// Search runs vector retrieval and falls back to lexical matching when the
// vector path produced nothing. It never returns an error; an empty slice
// means the corpus has nothing relevant.
func (e *Engine) Search(ctx context.Context, query string, companyID *int32, limit int) []SearchResult {
	results := e.SearchByVector(ctx, query, companyID, limit)
	if len(results) > 0 {
		return results
	}
	return e.SearchByText(ctx, query, companyID, limit)
}

// SearchByVector embeds the query, scores every chunk by cosine similarity,
// sorts descending with insertion order as the tie-break, and returns the
// top limit results with 1-based ranks. Any failure yields an empty slice.
func (e *Engine) SearchByVector(ctx context.Context, query string, companyID *int32, limit int) []SearchResult {
	if e.embedder == nil {
		return nil
	}

	queryVec, err := e.embedQuery(ctx, query)
	if err != nil {
		e.logger.Warn("query embedding failed", "error", err)
		return nil
	}

	chunks, err := e.source.ListChunks(ctx, companyID)
	if err != nil {
		e.logger.Warn("chunk listing failed", "error", err)
		return nil
	}

	results := make([]SearchResult, 0, len(chunks))
	for _, c := range chunks {
		score, err := cosineSimilarity(queryVec, c.Embedding)
		if err != nil {
			e.logger.Warn("skipping unscorable chunk", "chunk_id", c.ID, "error", err)
			continue
		}
		results = append(results, SearchResult{Chunk: c, Score: score})
	}

	// SliceStable keeps insertion order for equal scores, which keeps
	// retrieval deterministic across runs.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// SearchByText is the lexical fallback. Matching chunks keep their insertion
// order and receive a synthetic decaying score so downstream confidence
// handling works the same on both paths.
func (e *Engine) SearchByText(ctx context.Context, query string, companyID *int32, limit int) []SearchResult {
	chunks, err := e.source.MatchChunks(ctx, query, companyID, limit)
	if err != nil {
		e.logger.Warn("lexical match failed", "error", err)
		return nil
	}

	results := make([]SearchResult, 0, len(chunks))
	for i, c := range chunks {
		score := 1.0 - 0.1*float64(i)
		if score < 0.1 {
			score = 0.1
		}
		results = append(results, SearchResult{Chunk: c, Score: score, Rank: i + 1})
	}
	return results
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(query, nil)},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, errEmptyEmbedding
	}
	return resp.Embeddings[0].Embedding, nil
}
