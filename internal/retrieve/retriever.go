// Package retrieve runs the hybrid retrieval pipeline: dense and sparse
// candidate searches in parallel, a union merge, and a rerank pass that
// decides the final order.
package retrieve

import (
	"context"
	"sort"
	"time"

	"paperchat/internal/config"
	"paperchat/internal/models"
	"paperchat/internal/providers"
	"paperchat/internal/ragerr"
	"paperchat/internal/sparse"
	"paperchat/internal/vector"
)

type Searcher interface {
	DenseSearch(ctx context.Context, sessionID string, query []float32, k int) ([]vector.Candidate, error)
	SparseSearch(ctx context.Context, sessionID string, query map[string]float64, k int) ([]vector.Candidate, error)
}

type SparseStates interface {
	LoadState(ctx context.Context, sessionID string) (sparse.State, bool, error)
}

type Retriever struct {
	search        Searcher
	states        SparseStates
	embedder      providers.EmbeddingProvider
	reranker      providers.RerankProvider
	candidateK    int
	topK          int
	embedDim      int
	embedTimeout  time.Duration
	rerankTimeout time.Duration
}

func NewRetriever(search Searcher, states SparseStates, embedder providers.EmbeddingProvider, reranker providers.RerankProvider, cfg config.Config) *Retriever {
	return &Retriever{
		search:        search,
		states:        states,
		embedder:      embedder,
		reranker:      reranker,
		candidateK:    cfg.CandidateK,
		topK:          cfg.TopK,
		embedDim:      cfg.EmbedDim,
		embedTimeout:  cfg.EmbedTimeout,
		rerankTimeout: cfg.RerankTimeout,
	}
}

// Retrieve returns the topK most relevant chunks of a session for the query.
// topK <= 0 uses the configured default. A session with nothing indexed
// yields an empty slice and no error.
func (r *Retriever) Retrieve(ctx context.Context, sessionID, query string, topK int) ([]models.RetrievedChunk, error) {
	if topK <= 0 {
		topK = r.topK
	}

	var (
		dense     []vector.Candidate
		denseErr  error
		sparseHit []vector.Candidate
		sparseErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		sparseHit, sparseErr = r.sparseCandidates(ctx, sessionID, query)
	}()
	dense, denseErr = r.denseCandidates(ctx, sessionID, query)
	<-done

	if denseErr != nil {
		return nil, denseErr
	}
	if sparseErr != nil {
		return nil, sparseErr
	}

	merged := mergeCandidates(dense, sparseHit, 2*r.candidateK)
	if len(merged) == 0 {
		return []models.RetrievedChunk{}, nil
	}

	texts := make([]string, len(merged))
	for i, m := range merged {
		texts[i] = m.Chunk.Text
	}
	var scores []float64
	err := providers.WithRetry(ctx, 2, 250*time.Millisecond, func() error {
		rerankCtx, cancel := context.WithTimeout(ctx, r.rerankTimeout)
		defer cancel()
		var err error
		scores, _, err = r.reranker.Rerank(rerankCtx, providers.RerankRequest{Query: query, Texts: texts})
		return err
	})
	if err != nil {
		return nil, ragerr.New(ragerr.BackendUnavailable, "retrieve.Retrieve", err)
	}
	if len(scores) == len(merged) {
		for i := range merged {
			merged[i].Score = scores[i]
		}
	}

	sortRetrieved(merged)
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

func (r *Retriever) denseCandidates(ctx context.Context, sessionID, query string) ([]vector.Candidate, error) {
	var vecs [][]float32
	err := providers.WithRetry(ctx, 2, 250*time.Millisecond, func() error {
		embedCtx, cancel := context.WithTimeout(ctx, r.embedTimeout)
		defer cancel()
		var err error
		vecs, _, err = r.embedder.Embed(embedCtx, providers.EmbedRequest{
			Operation: "query",
			Inputs:    []string{query},
			Dimension: r.embedDim,
		})
		return err
	})
	if err != nil {
		return nil, ragerr.New(ragerr.BackendUnavailable, "retrieve.dense", err)
	}
	if len(vecs) == 0 {
		return []vector.Candidate{}, nil
	}
	out, err := r.search.DenseSearch(ctx, sessionID, vecs[0], r.candidateK)
	if err != nil {
		return nil, ragerr.New(ragerr.BackendUnavailable, "retrieve.dense", err)
	}
	return out, nil
}

// sparseCandidates returns no candidates when the session has never been
// indexed: an unfit encoder at query time means an empty session, not an
// error.
func (r *Retriever) sparseCandidates(ctx context.Context, sessionID, query string) ([]vector.Candidate, error) {
	st, ok, err := r.states.LoadState(ctx, sessionID)
	if err != nil {
		return nil, ragerr.New(ragerr.BackendUnavailable, "retrieve.sparse", err)
	}
	if !ok {
		return []vector.Candidate{}, nil
	}
	weights, err := sparse.NewEncoderFromState(st).EncodeQuery(query)
	if err != nil {
		return []vector.Candidate{}, nil
	}
	out, err := r.search.SparseSearch(ctx, sessionID, weights, r.candidateK)
	if err != nil {
		return nil, ragerr.New(ragerr.BackendUnavailable, "retrieve.sparse", err)
	}
	return out, nil
}

// mergeCandidates unions the two candidate lists by chunk id. Dense hits come
// first and record their rank; a sparse-only hit gets DenseRank -1 so ties
// resolve in favour of chunks both sides agreed on.
func mergeCandidates(dense, sparseHits []vector.Candidate, limit int) []models.RetrievedChunk {
	out := make([]models.RetrievedChunk, 0, len(dense)+len(sparseHits))
	seen := make(map[string]struct{}, len(dense)+len(sparseHits))
	for rank, c := range dense {
		if _, ok := seen[c.Chunk.ChunkID]; ok {
			continue
		}
		seen[c.Chunk.ChunkID] = struct{}{}
		out = append(out, models.RetrievedChunk{Chunk: c.Chunk, Score: c.Score, DenseRank: rank})
	}
	for _, c := range sparseHits {
		if _, ok := seen[c.Chunk.ChunkID]; ok {
			continue
		}
		seen[c.Chunk.ChunkID] = struct{}{}
		out = append(out, models.RetrievedChunk{Chunk: c.Chunk, Score: c.Score, DenseRank: -1})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// sortRetrieved orders by rerank score descending; ties break on dense rank
// ascending (sparse-only hits last), then chunk index ascending, then chunk
// id, so a given candidate set always comes out in the same order.
func sortRetrieved(items []models.RetrievedChunk) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ar, br := a.DenseRank, b.DenseRank
		if ar < 0 {
			ar = int(^uint(0) >> 1)
		}
		if br < 0 {
			br = int(^uint(0) >> 1)
		}
		if ar != br {
			return ar < br
		}
		if a.Chunk.ChunkIndex != b.Chunk.ChunkIndex {
			return a.Chunk.ChunkIndex < b.Chunk.ChunkIndex
		}
		return a.Chunk.ChunkID < b.Chunk.ChunkID
	})
}
