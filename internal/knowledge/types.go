package knowledge

import "time"

// Chunk is one unit of underwriting text from the knowledge corpus.
// Chunks are ingested by an external process and are immutable here; the
// engine only reads them.
type Chunk struct {
	ID         int64     `json:"id"`
	CompanyID  int32     `json:"companyId"`
	SourceFile string    `json:"sourceFile"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"` // not serialized into conversation state
	CreatedAt  time.Time `json:"createdAt"`
}

// SearchResult is a scored chunk. Score is cosine similarity in [-1, 1] for
// the vector path, or a synthetic position-derived score for the lexical
// fallback. Rank is 1-based and assigned after sorting.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}
