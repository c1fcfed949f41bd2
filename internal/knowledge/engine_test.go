package knowledge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirusiru/radish-engine/internal/log"
)

// mockEmbedder implements ai.Embedder for testing
type mockEmbedder struct {
	embedErr      error     // Error to return
	returnEmpty   bool      // Return empty response
	embeddings    []float32 // Custom embedding to return
	callCount     int       // Track number of calls
	lastInputText string    // Track last input for verification
}

func (m *mockEmbedder) Name() string {
	return "mock-embedder"
}

func (m *mockEmbedder) Register(r api.Registry) {
	// No-op for testing
}

func (m *mockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++

	if len(req.Input) > 0 && len(req.Input[0].Content) > 0 {
		m.lastInputText = req.Input[0].Content[0].Text
	}

	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.returnEmpty {
		return &ai.EmbedResponse{}, nil
	}

	embedding := m.embeddings
	if embedding == nil {
		embedding = []float32{1, 0, 0}
	}
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: embedding}},
	}, nil
}

// mockSource implements ChunkSource for testing
type mockSource struct {
	chunks     []Chunk
	matches    []Chunk
	listErr    error
	matchErr   error
	listCalls  int
	matchCalls int

	lastCompanyID *int32
	lastQuery     string
	lastLimit     int
}

func (m *mockSource) ListChunks(ctx context.Context, companyID *int32) ([]Chunk, error) {
	m.listCalls++
	m.lastCompanyID = companyID
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.chunks, nil
}

func (m *mockSource) MatchChunks(ctx context.Context, query string, companyID *int32, limit int) ([]Chunk, error) {
	m.matchCalls++
	m.lastQuery = query
	m.lastCompanyID = companyID
	m.lastLimit = limit
	if m.matchErr != nil {
		return nil, m.matchErr
	}
	if limit > 0 && len(m.matches) > limit {
		return m.matches[:limit], nil
	}
	return m.matches, nil
}

func testChunk(id int64, content string, embedding []float32) Chunk {
	return Chunk{
		ID:         id,
		CompanyID:  1,
		SourceFile: "corpus.md",
		Content:    content,
		Embedding:  embedding,
		CreatedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors score 1", func(t *testing.T) {
		score, err := cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, score, 1e-9)
	})

	t.Run("orthogonal vectors score 0", func(t *testing.T) {
		score, err := cosineSimilarity([]float32{1, 0}, []float32{0, 1})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, score, 1e-9)
	})

	t.Run("opposite vectors score -1", func(t *testing.T) {
		score, err := cosineSimilarity([]float32{1, 0}, []float32{-1, 0})
		require.NoError(t, err)
		assert.InDelta(t, -1.0, score, 1e-9)
	})

	t.Run("dimension mismatch is an error", func(t *testing.T) {
		_, err := cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
		assert.Error(t, err)
	})

	t.Run("zero vector is an error", func(t *testing.T) {
		_, err := cosineSimilarity([]float32{0, 0}, []float32{1, 2})
		assert.Error(t, err)
	})
}

func TestSearchByVector(t *testing.T) {
	ctx := context.Background()

	t.Run("ranks by similarity descending", func(t *testing.T) {
		source := &mockSource{chunks: []Chunk{
			testChunk(1, "unrelated", []float32{0, 1, 0}),
			testChunk(2, "close", []float32{0.9, 0.1, 0}),
			testChunk(3, "exact", []float32{1, 0, 0}),
		}}
		embedder := &mockEmbedder{embeddings: []float32{1, 0, 0}}
		engine := NewEngine(source, embedder, log.NewNop())

		results := engine.SearchByVector(ctx, "糖尿病", nil, 10)

		require.Len(t, results, 3)
		assert.Equal(t, int64(3), results[0].Chunk.ID)
		assert.Equal(t, int64(2), results[1].Chunk.ID)
		assert.Equal(t, int64(1), results[2].Chunk.ID)
		assert.Equal(t, []int{1, 2, 3}, []int{results[0].Rank, results[1].Rank, results[2].Rank})
		assert.Equal(t, "糖尿病", embedder.lastInputText)
	})

	t.Run("equal scores keep insertion order", func(t *testing.T) {
		source := &mockSource{chunks: []Chunk{
			testChunk(10, "first", []float32{1, 0, 0}),
			testChunk(20, "second", []float32{1, 0, 0}),
			testChunk(30, "third", []float32{1, 0, 0}),
		}}
		engine := NewEngine(source, &mockEmbedder{embeddings: []float32{1, 0, 0}}, log.NewNop())

		results := engine.SearchByVector(ctx, "q", nil, 10)

		require.Len(t, results, 3)
		assert.Equal(t, int64(10), results[0].Chunk.ID)
		assert.Equal(t, int64(20), results[1].Chunk.ID)
		assert.Equal(t, int64(30), results[2].Chunk.ID)
	})

	t.Run("truncates to limit after sorting", func(t *testing.T) {
		source := &mockSource{chunks: []Chunk{
			testChunk(1, "a", []float32{0.2, 1, 0}),
			testChunk(2, "b", []float32{1, 0, 0}),
			testChunk(3, "c", []float32{0.8, 0.2, 0}),
		}}
		engine := NewEngine(source, &mockEmbedder{embeddings: []float32{1, 0, 0}}, log.NewNop())

		results := engine.SearchByVector(ctx, "q", nil, 2)

		require.Len(t, results, 2)
		assert.Equal(t, int64(2), results[0].Chunk.ID)
		assert.Equal(t, 1, results[0].Rank)
		assert.Equal(t, 2, results[1].Rank)
	})

	t.Run("embed failure yields empty result", func(t *testing.T) {
		source := &mockSource{chunks: []Chunk{testChunk(1, "a", []float32{1, 0, 0})}}
		engine := NewEngine(source, &mockEmbedder{embedErr: errors.New("api down")}, log.NewNop())

		results := engine.SearchByVector(ctx, "q", nil, 10)

		assert.Empty(t, results)
		assert.Equal(t, 0, source.listCalls)
	})

	t.Run("empty embed response yields empty result", func(t *testing.T) {
		engine := NewEngine(&mockSource{}, &mockEmbedder{returnEmpty: true}, log.NewNop())
		assert.Empty(t, engine.SearchByVector(ctx, "q", nil, 10))
	})

	t.Run("list failure yields empty result", func(t *testing.T) {
		source := &mockSource{listErr: errors.New("db down")}
		engine := NewEngine(source, &mockEmbedder{}, log.NewNop())
		assert.Empty(t, engine.SearchByVector(ctx, "q", nil, 10))
	})

	t.Run("mismatched dimension chunk is skipped", func(t *testing.T) {
		source := &mockSource{chunks: []Chunk{
			testChunk(1, "bad dims", []float32{1, 0}),
			testChunk(2, "good", []float32{1, 0, 0}),
		}}
		engine := NewEngine(source, &mockEmbedder{embeddings: []float32{1, 0, 0}}, log.NewNop())

		results := engine.SearchByVector(ctx, "q", nil, 10)

		require.Len(t, results, 1)
		assert.Equal(t, int64(2), results[0].Chunk.ID)
	})

	t.Run("nil embedder yields empty result", func(t *testing.T) {
		engine := NewEngine(&mockSource{}, nil, log.NewNop())
		assert.Empty(t, engine.SearchByVector(ctx, "q", nil, 10))
	})

	t.Run("company filter is forwarded", func(t *testing.T) {
		source := &mockSource{}
		engine := NewEngine(source, &mockEmbedder{}, log.NewNop())
		companyID := int32(7)

		engine.SearchByVector(ctx, "q", &companyID, 10)

		require.NotNil(t, source.lastCompanyID)
		assert.Equal(t, int32(7), *source.lastCompanyID)
	})
}

func TestSearchByText(t *testing.T) {
	ctx := context.Background()

	t.Run("scores decay by position", func(t *testing.T) {
		source := &mockSource{matches: []Chunk{
			testChunk(1, "a", nil),
			testChunk(2, "b", nil),
			testChunk(3, "c", nil),
		}}
		engine := NewEngine(source, nil, log.NewNop())

		results := engine.SearchByText(ctx, "がん", nil, 10)

		require.Len(t, results, 3)
		assert.InDelta(t, 1.0, results[0].Score, 1e-9)
		assert.InDelta(t, 0.9, results[1].Score, 1e-9)
		assert.InDelta(t, 0.8, results[2].Score, 1e-9)
		assert.Equal(t, 1, results[0].Rank)
		assert.Equal(t, 3, results[2].Rank)
		assert.Equal(t, "がん", source.lastQuery)
	})

	t.Run("score floor is 0.1", func(t *testing.T) {
		matches := make([]Chunk, 12)
		for i := range matches {
			matches[i] = testChunk(int64(i+1), "m", nil)
		}
		source := &mockSource{matches: matches}
		engine := NewEngine(source, nil, log.NewNop())

		results := engine.SearchByText(ctx, "q", nil, 0)

		require.Len(t, results, 12)
		assert.InDelta(t, 0.1, results[10].Score, 1e-9)
		assert.InDelta(t, 0.1, results[11].Score, 1e-9)
	})

	t.Run("match failure yields empty result", func(t *testing.T) {
		source := &mockSource{matchErr: errors.New("db down")}
		engine := NewEngine(source, nil, log.NewNop())
		assert.Empty(t, engine.SearchByText(ctx, "q", nil, 10))
	})
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("prefers vector results", func(t *testing.T) {
		source := &mockSource{
			chunks:  []Chunk{testChunk(1, "vector hit", []float32{1, 0, 0})},
			matches: []Chunk{testChunk(2, "lexical hit", nil)},
		}
		engine := NewEngine(source, &mockEmbedder{embeddings: []float32{1, 0, 0}}, log.NewNop())

		results := engine.Search(ctx, "q", nil, 10)

		require.Len(t, results, 1)
		assert.Equal(t, int64(1), results[0].Chunk.ID)
		assert.Equal(t, 0, source.matchCalls)
	})

	t.Run("falls back to lexical when vector path fails", func(t *testing.T) {
		source := &mockSource{matches: []Chunk{testChunk(2, "lexical hit", nil)}}
		engine := NewEngine(source, &mockEmbedder{embedErr: errors.New("api down")}, log.NewNop())

		results := engine.Search(ctx, "q", nil, 10)

		require.Len(t, results, 1)
		assert.Equal(t, int64(2), results[0].Chunk.ID)
		assert.Equal(t, 1, source.matchCalls)
	})

	t.Run("both paths empty yields empty result", func(t *testing.T) {
		engine := NewEngine(&mockSource{}, &mockEmbedder{}, log.NewNop())
		assert.Empty(t, engine.Search(ctx, "q", nil, 10))
	})
}
