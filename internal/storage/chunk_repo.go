package storage

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"paperchat/internal/models"
)

// ChunkRecord is one indexed chunk: the chunk row, its embedding, and its
// BM25 term weights for the sparse side of the hybrid index.
type ChunkRecord struct {
	Chunk     models.Chunk
	Embedding []float32
	Terms     map[string]float64
}

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) UpsertChunks(ctx context.Context, records []ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx upsert chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, rec := range records {
		c := rec.Chunk
		_, err := tx.Exec(ctx, `
INSERT INTO chunks (chunk_id, document_id, session_id, chunk_index, section_ordinal, section_label,
                    text, char_len, token_len, citations, is_caption, page_start, page_end, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (chunk_id)
DO UPDATE SET
  text = EXCLUDED.text,
  char_len = EXCLUDED.char_len,
  token_len = EXCLUDED.token_len,
  citations = EXCLUDED.citations,
  is_caption = EXCLUDED.is_caption,
  page_start = EXCLUDED.page_start,
  page_end = EXCLUDED.page_end,
  embedding = COALESCE(EXCLUDED.embedding, chunks.embedding)`,
			c.ChunkID, c.DocumentID, c.SessionID, c.ChunkIndex, c.SectionOrdinal, c.SectionLabel,
			c.Text, c.CharLen, c.TokenLen, c.Citations, c.IsCaption, c.PageStart, c.PageEnd,
			embeddingOrNil(rec.Embedding),
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ChunkID, err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM chunk_terms WHERE chunk_id=$1`, c.ChunkID); err != nil {
			return fmt.Errorf("clear chunk terms %s: %w", c.ChunkID, err)
		}
		terms := make([]string, 0, len(rec.Terms))
		weights := make([]float64, 0, len(rec.Terms))
		for term, w := range rec.Terms {
			terms = append(terms, term)
			weights = append(weights, w)
		}
		if len(terms) > 0 {
			_, err := tx.Exec(ctx, `
INSERT INTO chunk_terms (chunk_id, session_id, document_id, term, weight)
SELECT $1, $2, $3, t.term, t.weight
FROM unnest($4::text[], $5::float8[]) AS t(term, weight)`,
				c.ChunkID, c.SessionID, c.DocumentID, terms, weights)
			if err != nil {
				return fmt.Errorf("insert chunk terms %s: %w", c.ChunkID, err)
			}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

func embeddingOrNil(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

func (r *ChunkRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM chunks WHERE document_id=$1`, documentID)
	if err != nil {
		return fmt.Errorf("delete chunks by document: %w", err)
	}
	return nil
}

func (r *ChunkRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM chunks WHERE session_id=$1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete chunks by session: %w", err)
	}
	return nil
}

func (r *ChunkRepo) DeleteAll(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM chunks`)
	if err != nil {
		return fmt.Errorf("delete all chunks: %w", err)
	}
	return nil
}

func (r *ChunkRepo) Stats(ctx context.Context, sessionID string) (models.IndexStats, error) {
	var st models.IndexStats
	var err error
	if sessionID == "" {
		err = r.db.Pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(DISTINCT document_id) FROM chunks`).
			Scan(&st.VectorCount, &st.DocumentCount)
	} else {
		err = r.db.Pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(DISTINCT document_id) FROM chunks WHERE session_id=$1`, sessionID).
			Scan(&st.VectorCount, &st.DocumentCount)
	}
	if err != nil {
		return models.IndexStats{}, fmt.Errorf("index stats: %w", err)
	}
	return st, nil
}
