package storage

import (
	"context"
	"fmt"

	"paperchat/internal/models"
)

type StatusRepo struct {
	db *DB
}

func NewStatusRepo(db *DB) *StatusRepo {
	return &StatusRepo{db: db}
}

func (r *StatusRepo) UpsertStatus(ctx context.Context, s models.SessionIndexStatus) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO session_documents (session_id, document_id, status, chunk_count, failure_count, last_error)
VALUES ($1, $2, $3, $4, $5, NULLIF($6,''))
ON CONFLICT (session_id, document_id)
DO UPDATE SET
  status = EXCLUDED.status,
  chunk_count = EXCLUDED.chunk_count,
  failure_count = EXCLUDED.failure_count,
  last_error = EXCLUDED.last_error,
  updated_at = NOW()`,
		s.SessionID, s.DocumentID, s.Status, s.ChunkCount, s.FailureCount, s.LastError,
	)
	if err != nil {
		return fmt.Errorf("upsert session document status: %w", err)
	}
	return nil
}

func (r *StatusRepo) SetStatus(ctx context.Context, sessionID, documentID, status, lastError string) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO session_documents (session_id, document_id, status, last_error)
VALUES ($1, $2, $3, NULLIF($4,''))
ON CONFLICT (session_id, document_id)
DO UPDATE SET
  status = EXCLUDED.status,
  last_error = EXCLUDED.last_error,
  updated_at = NOW()`, sessionID, documentID, status, lastError)
	if err != nil {
		return fmt.Errorf("set session document status: %w", err)
	}
	return nil
}

func (r *StatusRepo) ListBySession(ctx context.Context, sessionID string) ([]models.SessionIndexStatus, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT session_id, document_id, status, chunk_count, failure_count, COALESCE(last_error,''), created_at, updated_at
FROM session_documents
WHERE session_id=$1
ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session document status: %w", err)
	}
	defer rows.Close()

	out := make([]models.SessionIndexStatus, 0)
	for rows.Next() {
		var s models.SessionIndexStatus
		if err := rows.Scan(&s.SessionID, &s.DocumentID, &s.Status, &s.ChunkCount, &s.FailureCount, &s.LastError, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session document status: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session document status: %w", err)
	}
	return out, nil
}

func (r *StatusRepo) ResetToPending(ctx context.Context, sessionID string) error {
	var err error
	if sessionID == "" {
		_, err = r.db.Pool.Exec(ctx, `
UPDATE session_documents SET status='pending', chunk_count=0, failure_count=0, last_error=NULL, updated_at=NOW()`)
	} else {
		_, err = r.db.Pool.Exec(ctx, `
UPDATE session_documents SET status='pending', chunk_count=0, failure_count=0, last_error=NULL, updated_at=NOW()
WHERE session_id=$1`, sessionID)
	}
	if err != nil {
		return fmt.Errorf("reset session document status: %w", err)
	}
	return nil
}
