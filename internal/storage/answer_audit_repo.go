package storage

import (
	"context"
	"fmt"
)

type AnswerAuditRecord struct {
	SessionID    string
	Question     string
	ProviderName string
	Model        string
	Retrieved    int
	LatencyMS    int64
	Status       string
	ErrorType    string
}

type AnswerAuditRepo struct {
	db *DB
}

func NewAnswerAuditRepo(db *DB) *AnswerAuditRepo {
	return &AnswerAuditRepo{db: db}
}

func (r *AnswerAuditRepo) Insert(ctx context.Context, rec AnswerAuditRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO answer_audit (session_id, question, provider_name, model, retrieved, latency_ms, status, error_type)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8,''))`,
		rec.SessionID, rec.Question, rec.ProviderName, rec.Model, rec.Retrieved, rec.LatencyMS, rec.Status, rec.ErrorType)
	if err != nil {
		return fmt.Errorf("insert answer audit: %w", err)
	}
	return nil
}
