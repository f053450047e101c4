// Package vector runs the two halves of the hybrid search against Postgres:
// cosine distance over pgvector embeddings and BM25 dot products over the
// chunk_terms table.
package vector

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"paperchat/internal/models"
	"paperchat/internal/storage"
)

// Candidate is a chunk returned by one side of the hybrid search, with the
// backend's raw score. Higher is better for both sides.
type Candidate struct {
	Chunk models.Chunk
	Score float64
}

type Searcher struct {
	db *storage.DB
}

func NewSearcher(db *storage.DB) *Searcher {
	return &Searcher{db: db}
}

const chunkColumns = `c.chunk_id, c.document_id, c.session_id, c.chunk_index, c.section_ordinal,
       c.section_label, c.text, c.char_len, c.token_len, c.citations, c.is_caption,
       c.page_start, c.page_end, c.created_at`

// DenseSearch returns the k nearest chunks of a session by cosine distance.
// Score is cosine similarity, so 1 means identical direction.
func (s *Searcher) DenseSearch(ctx context.Context, sessionID string, query []float32, k int) ([]Candidate, error) {
	rows, err := s.db.Pool.Query(ctx, `
SELECT `+chunkColumns+`, 1 - (c.embedding <=> $2) AS score
FROM chunks c
WHERE c.session_id=$1 AND c.embedding IS NOT NULL
ORDER BY c.embedding <=> $2
LIMIT $3`, sessionID, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

// SparseSearch scores session chunks by the dot product of their stored BM25
// term weights with the query's idf weights.
func (s *Searcher) SparseSearch(ctx context.Context, sessionID string, query map[string]float64, k int) ([]Candidate, error) {
	if len(query) == 0 {
		return []Candidate{}, nil
	}
	terms := make([]string, 0, len(query))
	weights := make([]float64, 0, len(query))
	for term, w := range query {
		terms = append(terms, term)
		weights = append(weights, w)
	}
	rows, err := s.db.Pool.Query(ctx, `
SELECT `+chunkColumns+`, m.score
FROM (
  SELECT t.chunk_id, SUM(t.weight * q.weight) AS score
  FROM chunk_terms t
  JOIN unnest($2::text[], $3::float8[]) AS q(term, weight) ON q.term = t.term
  WHERE t.session_id=$1
  GROUP BY t.chunk_id
  ORDER BY score DESC
  LIMIT $4
) m
JOIN chunks c ON c.chunk_id = m.chunk_id
ORDER BY m.score DESC`, sessionID, terms, weights, k)
	if err != nil {
		return nil, fmt.Errorf("sparse search: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

type chunkRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanCandidates(rows chunkRows) ([]Candidate, error) {
	out := make([]Candidate, 0, 16)
	for rows.Next() {
		var cand Candidate
		c := &cand.Chunk
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.SessionID, &c.ChunkIndex, &c.SectionOrdinal,
			&c.SectionLabel, &c.Text, &c.CharLen, &c.TokenLen, &c.Citations, &c.IsCaption,
			&c.PageStart, &c.PageEnd, &c.CreatedAt, &cand.Score); err != nil {
			return nil, fmt.Errorf("scan search candidate: %w", err)
		}
		out = append(out, cand)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search candidates: %w", err)
	}
	return out, nil
}
