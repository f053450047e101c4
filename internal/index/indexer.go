// Package index writes chunks into the hybrid store: dense embeddings plus
// BM25 term weights, batched with retry. A batch that keeps failing is
// skipped and counted rather than aborting the whole document.
package index

import (
	"context"
	"time"

	"paperchat/internal/config"
	"paperchat/internal/models"
	"paperchat/internal/providers"
	"paperchat/internal/ragerr"
	"paperchat/internal/sparse"
	"paperchat/internal/storage"
)

const (
	upsertAttempts = 3
	retryBackoff   = 500 * time.Millisecond
)

type ChunkStore interface {
	UpsertChunks(ctx context.Context, records []storage.ChunkRecord) error
	DeleteByDocument(ctx context.Context, documentID string) error
	DeleteBySession(ctx context.Context, sessionID string) error
	DeleteAll(ctx context.Context) error
	Stats(ctx context.Context, sessionID string) (models.IndexStats, error)
}

type SparseStore interface {
	LoadState(ctx context.Context, sessionID string) (sparse.State, bool, error)
	SaveState(ctx context.Context, sessionID string, st sparse.State) error
	DeleteState(ctx context.Context, sessionID string) error
}

type Indexer struct {
	chunks       ChunkStore
	states       SparseStore
	embedder     providers.EmbeddingProvider
	batchSize    int
	embedDim     int
	embedTimeout time.Duration
}

func NewIndexer(chunks ChunkStore, states SparseStore, embedder providers.EmbeddingProvider, cfg config.Config) *Indexer {
	return &Indexer{
		chunks:       chunks,
		states:       states,
		embedder:     embedder,
		batchSize:    cfg.BatchSize,
		embedDim:     cfg.EmbedDim,
		embedTimeout: cfg.EmbedTimeout,
	}
}

// Index replaces a document's entries in the hybrid store. Previously indexed
// chunks of the same document are removed first, so re-ingestion converges to
// the new chunk set. Returns how many chunks landed and how many were lost to
// failed batches; the error is non-nil only when nothing landed at all.
func (ix *Indexer) Index(ctx context.Context, doc models.Document, chunks []models.Chunk) (models.IndexResult, error) {
	if err := ix.chunks.DeleteByDocument(ctx, doc.DocumentID); err != nil {
		return models.IndexResult{}, ragerr.New(ragerr.BackendUnavailable, "index.Index", err)
	}
	if len(chunks) == 0 {
		return models.IndexResult{}, nil
	}

	enc, err := ix.fitEncoder(ctx, doc.SessionID, chunks)
	if err != nil {
		return models.IndexResult{}, err
	}

	var res models.IndexResult
	for start := 0; start < len(chunks); start += ix.batchSize {
		end := min(start+ix.batchSize, len(chunks))
		batch := chunks[start:end]
		if err := ix.indexBatch(ctx, enc, batch); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Failures += len(batch)
			continue
		}
		res.ChunksIndexed += len(batch)
	}
	if res.ChunksIndexed == 0 {
		return res, ragerr.Newf(ragerr.UpsertFailure, "index.Index", "all %d chunks failed to index", res.Failures)
	}
	return res, nil
}

// fitEncoder folds the new chunks into the session's persisted BM25 state and
// returns an encoder ready to weight them.
func (ix *Indexer) fitEncoder(ctx context.Context, sessionID string, chunks []models.Chunk) (*sparse.Encoder, error) {
	st, _, err := ix.states.LoadState(ctx, sessionID)
	if err != nil {
		return nil, ragerr.New(ragerr.BackendUnavailable, "index.fitEncoder", err)
	}
	enc := sparse.NewEncoderFromState(st)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	enc.Update(texts)
	if !enc.Ready() {
		return nil, ragerr.Newf(ragerr.EncoderNotReady, "index.fitEncoder", "no indexable tokens in %d chunks", len(chunks))
	}
	if err := ix.states.SaveState(ctx, sessionID, enc.State()); err != nil {
		return nil, ragerr.New(ragerr.BackendUnavailable, "index.fitEncoder", err)
	}
	return enc, nil
}

func (ix *Indexer) indexBatch(ctx context.Context, enc *sparse.Encoder, batch []models.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	var vectors [][]float32
	err := providers.WithRetry(ctx, upsertAttempts, retryBackoff, func() error {
		embedCtx, cancel := context.WithTimeout(ctx, ix.embedTimeout)
		defer cancel()
		var err error
		vectors, _, err = ix.embedder.Embed(embedCtx, providers.EmbedRequest{
			Operation: "index",
			Inputs:    texts,
			Dimension: ix.embedDim,
		})
		return err
	})
	if err != nil {
		return ragerr.New(ragerr.UpsertFailure, "index.indexBatch", err)
	}
	if len(vectors) != len(batch) {
		return ragerr.Newf(ragerr.UpsertFailure, "index.indexBatch", "embedder returned %d vectors for %d inputs", len(vectors), len(batch))
	}

	records := make([]storage.ChunkRecord, len(batch))
	for i, c := range batch {
		terms, err := enc.EncodeDocument(c.Text)
		if err != nil {
			return err
		}
		records[i] = storage.ChunkRecord{Chunk: c, Embedding: vectors[i], Terms: terms}
	}

	err = providers.WithRetry(ctx, upsertAttempts, retryBackoff, func() error {
		return ix.chunks.UpsertChunks(ctx, records)
	})
	if err != nil {
		return ragerr.New(ragerr.UpsertFailure, "index.indexBatch", err)
	}
	return nil
}

// Remove drops one document from the hybrid store. The session's BM25 state
// intentionally keeps the document's contribution; stats drift a little until
// the session is recreated, which is cheaper than refitting on every delete.
func (ix *Indexer) Remove(ctx context.Context, documentID string) error {
	if err := ix.chunks.DeleteByDocument(ctx, documentID); err != nil {
		return ragerr.New(ragerr.BackendUnavailable, "index.Remove", err)
	}
	return nil
}

// Clear wipes the store. Empty sessionID clears every session.
func (ix *Indexer) Clear(ctx context.Context, sessionID string) error {
	var err error
	if sessionID == "" {
		err = ix.chunks.DeleteAll(ctx)
	} else {
		err = ix.chunks.DeleteBySession(ctx, sessionID)
	}
	if err != nil {
		return ragerr.New(ragerr.BackendUnavailable, "index.Clear", err)
	}
	if err := ix.states.DeleteState(ctx, sessionID); err != nil {
		return ragerr.New(ragerr.BackendUnavailable, "index.Clear", err)
	}
	return nil
}

func (ix *Indexer) Stats(ctx context.Context, sessionID string) (models.IndexStats, error) {
	st, err := ix.chunks.Stats(ctx, sessionID)
	if err != nil {
		return models.IndexStats{}, ragerr.New(ragerr.BackendUnavailable, "index.Stats", err)
	}
	return st, nil
}
