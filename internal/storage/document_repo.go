package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"paperchat/internal/models"
)

var ErrNotFound = errors.New("not found")

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) UpsertDocument(ctx context.Context, d models.Document) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO documents (document_id, session_id, paper_id, source_path, title, authors, year, venue, status, fail_reason)
VALUES ($1, $2, $3, $4, NULLIF($5,''), NULLIF($6,''), $7, NULLIF($8,''), $9, NULLIF($10,''))
ON CONFLICT (document_id)
DO UPDATE SET
  source_path = EXCLUDED.source_path,
  title = COALESCE(EXCLUDED.title, documents.title),
  authors = COALESCE(EXCLUDED.authors, documents.authors),
  year = COALESCE(EXCLUDED.year, documents.year),
  venue = COALESCE(EXCLUDED.venue, documents.venue),
  status = EXCLUDED.status,
  fail_reason = EXCLUDED.fail_reason,
  updated_at = NOW()`,
		d.DocumentID, d.SessionID, d.PaperID, d.SourcePath, d.Title, d.Authors, d.Year, d.Venue, d.Status, d.FailReason,
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) UpdateDocumentStatus(ctx context.Context, documentID, status, failReason string) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE documents SET status=$2, fail_reason=NULLIF($3,''), updated_at=NOW() WHERE document_id=$1`, documentID, status, failReason)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

func (r *DocumentRepo) UpdateDocumentMetadata(ctx context.Context, documentID, title, authors string, year *int, venue string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE documents SET
  title = COALESCE(NULLIF($2,''), title),
  authors = COALESCE(NULLIF($3,''), authors),
  year = COALESCE($4, year),
  venue = COALESCE(NULLIF($5,''), venue),
  updated_at = NOW()
WHERE document_id=$1`, documentID, title, authors, year, venue)
	if err != nil {
		return fmt.Errorf("update document metadata: %w", err)
	}
	return nil
}

func (r *DocumentRepo) GetDocument(ctx context.Context, documentID string) (models.Document, error) {
	var d models.Document
	err := r.db.Pool.QueryRow(ctx, `
SELECT document_id, session_id, paper_id, source_path, COALESCE(title,''), COALESCE(authors,''), year,
       COALESCE(venue,''), status, COALESCE(fail_reason,''), created_at, updated_at
FROM documents
WHERE document_id=$1`, documentID).
		Scan(&d.DocumentID, &d.SessionID, &d.PaperID, &d.SourcePath, &d.Title, &d.Authors, &d.Year, &d.Venue, &d.Status, &d.FailReason, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, ErrNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (r *DocumentRepo) GetDocumentByPaper(ctx context.Context, sessionID, paperID string) (models.Document, error) {
	var d models.Document
	err := r.db.Pool.QueryRow(ctx, `
SELECT document_id, session_id, paper_id, source_path, COALESCE(title,''), COALESCE(authors,''), year,
       COALESCE(venue,''), status, COALESCE(fail_reason,''), created_at, updated_at
FROM documents
WHERE session_id=$1 AND paper_id=$2`, sessionID, paperID).
		Scan(&d.DocumentID, &d.SessionID, &d.PaperID, &d.SourcePath, &d.Title, &d.Authors, &d.Year, &d.Venue, &d.Status, &d.FailReason, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, ErrNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get document by paper: %w", err)
	}
	return d, nil
}

func (r *DocumentRepo) ListDocumentsBySession(ctx context.Context, sessionID string) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT document_id, session_id, paper_id, source_path, COALESCE(title,''), COALESCE(authors,''), year,
       COALESCE(venue,''), status, COALESCE(fail_reason,''), created_at, updated_at
FROM documents
WHERE session_id=$1
ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]models.Document, 0)
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.DocumentID, &d.SessionID, &d.PaperID, &d.SourcePath, &d.Title, &d.Authors, &d.Year, &d.Venue, &d.Status, &d.FailReason, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// DeleteBySession removes a session's document rows; session_documents and
// chunk rows follow via ON DELETE CASCADE.
func (r *DocumentRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM documents WHERE session_id=$1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

func (r *DocumentRepo) DeleteAll(ctx context.Context) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM documents`)
	if err != nil {
		return fmt.Errorf("delete all documents: %w", err)
	}
	return nil
}

func (r *DocumentRepo) ListAllDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT document_id, session_id, paper_id, source_path, COALESCE(title,''), COALESCE(authors,''), year,
       COALESCE(venue,''), status, COALESCE(fail_reason,''), created_at, updated_at
FROM documents
ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list all documents: %w", err)
	}
	defer rows.Close()

	out := make([]models.Document, 0)
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.DocumentID, &d.SessionID, &d.PaperID, &d.SourcePath, &d.Title, &d.Authors, &d.Year, &d.Venue, &d.Status, &d.FailReason, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
