package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// DB is the subset of pgxpool.Pool used by PGSource.
// Defined on the consumer side so tests can substitute a mock.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGSource reads knowledge chunks from PostgreSQL.
// Embeddings are stored in a pgvector column and scanned through
// pgvector.Vector.
type PGSource struct {
	db DB
}

// NewPGSource creates a chunk source backed by the knowledge_chunks table.
func NewPGSource(db DB) *PGSource {
	return &PGSource{db: db}
}

// ListChunks returns every stored chunk, optionally filtered by company id,
// in insertion order. The engine depends on this order being stable: it is
// the tie-break order for equal similarity scores.
func (s *PGSource) ListChunks(ctx context.Context, companyID *int32) ([]Chunk, error) {
	query := `SELECT id, company_id, source_file, chunk_text, embedding, created_at
	          FROM knowledge_chunks`
	args := []any{}
	if companyID != nil {
		query += ` WHERE company_id = $1`
		args = append(args, *companyID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge chunks: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows, true)
}

// MatchChunks returns chunks whose text contains the query as a substring,
// in insertion order, limited to limit rows. This is the lexical fallback;
// it carries no similarity metric of its own.
func (s *PGSource) MatchChunks(ctx context.Context, query string, companyID *int32, limit int) ([]Chunk, error) {
	sql := `SELECT id, company_id, source_file, chunk_text, embedding, created_at
	        FROM knowledge_chunks
	        WHERE chunk_text ILIKE '%' || $1 || '%'`
	args := []any{query}
	if companyID != nil {
		sql += ` AND company_id = $2`
		args = append(args, *companyID)
	}
	sql += fmt.Sprintf(` ORDER BY id LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to match knowledge chunks: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows, true)
}

// scanChunks drains rows into Chunk values. withEmbedding controls whether
// the embedding column is present in the row set.
func scanChunks(rows pgx.Rows, withEmbedding bool) ([]Chunk, error) {
	var chunks []Chunk
	for rows.Next() {
		var (
			c   Chunk
			emb pgvector.Vector
		)
		if withEmbedding {
			if err := rows.Scan(&c.ID, &c.CompanyID, &c.SourceFile, &c.Content, &emb, &c.CreatedAt); err != nil {
				return nil, fmt.Errorf("failed to scan chunk: %w", err)
			}
			c.Embedding = emb.Slice()
		} else {
			if err := rows.Scan(&c.ID, &c.CompanyID, &c.SourceFile, &c.Content, &c.CreatedAt); err != nil {
				return nil, fmt.Errorf("failed to scan chunk: %w", err)
			}
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}
	return chunks, nil
}
