package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"paperchat/internal/sparse"
)

type SparseRepo struct {
	db *DB
}

func NewSparseRepo(db *DB) *SparseRepo {
	return &SparseRepo{db: db}
}

// LoadState returns the persisted BM25 corpus statistics for a session.
// The second return is false when the session has never been fitted.
func (r *SparseRepo) LoadState(ctx context.Context, sessionID string) (sparse.State, bool, error) {
	var raw []byte
	err := r.db.Pool.QueryRow(ctx, `SELECT state FROM sparse_state WHERE session_id=$1`, sessionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return sparse.State{}, false, nil
	}
	if err != nil {
		return sparse.State{}, false, fmt.Errorf("load sparse state: %w", err)
	}
	var st sparse.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return sparse.State{}, false, fmt.Errorf("decode sparse state: %w", err)
	}
	return st, true, nil
}

func (r *SparseRepo) SaveState(ctx context.Context, sessionID string, st sparse.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode sparse state: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO sparse_state (session_id, state)
VALUES ($1, $2)
ON CONFLICT (session_id)
DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()`, sessionID, raw)
	if err != nil {
		return fmt.Errorf("save sparse state: %w", err)
	}
	return nil
}

func (r *SparseRepo) DeleteState(ctx context.Context, sessionID string) error {
	var err error
	if sessionID == "" {
		_, err = r.db.Pool.Exec(ctx, `DELETE FROM sparse_state`)
	} else {
		_, err = r.db.Pool.Exec(ctx, `DELETE FROM sparse_state WHERE session_id=$1`, sessionID)
	}
	if err != nil {
		return fmt.Errorf("delete sparse state: %w", err)
	}
	return nil
}
