// Package activities holds the Temporal activity implementations behind the
// document ingestion workflow. Errors carrying a terminal kind (invalid
// document, extraction failure) come back as non-retryable application errors
// so the workflow can fail the document gracefully instead of retrying.
package activities

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.temporal.io/sdk/temporal"

	"paperchat/internal/chunk"
	"paperchat/internal/config"
	"paperchat/internal/index"
	"paperchat/internal/ingest"
	"paperchat/internal/models"
	"paperchat/internal/providers"
	"paperchat/internal/ragerr"
	"paperchat/internal/storage"
	"paperchat/internal/util"
)

type Activities struct {
	cfg        config.Config
	docRepo    *storage.DocumentRepo
	statusRepo *storage.StatusRepo
	parser     *ingest.Parser
	splitter   *chunk.Splitter
	indexer    *index.Indexer
}

func New(cfg config.Config, db *storage.DB) (*Activities, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	embedder, _ := pm.Embedder()
	return &Activities{
		cfg:        cfg,
		docRepo:    storage.NewDocumentRepo(db),
		statusRepo: storage.NewStatusRepo(db),
		parser:     ingest.NewParser(nil, nil),
		splitter:   chunk.NewSplitter(cfg.MaxChunkChars, cfg.OverlapChars),
		indexer:    index.NewIndexer(storage.NewChunkRepo(db), storage.NewSparseRepo(db), embedder, cfg),
	}, nil
}

func (a *Activities) SetStatusActivity(ctx context.Context, in SetStatusInput) error {
	if err := a.statusRepo.UpsertStatus(ctx, models.SessionIndexStatus{
		SessionID:    in.SessionID,
		DocumentID:   in.DocumentID,
		Status:       in.Status,
		ChunkCount:   in.ChunkCount,
		FailureCount: in.FailureCount,
		LastError:    in.LastError,
	}); err != nil {
		return err
	}
	return a.docRepo.UpdateDocumentStatus(ctx, in.DocumentID, in.Status, in.LastError)
}

func (a *Activities) ExtractDocumentActivity(ctx context.Context, in ExtractDocumentInput) (ExtractDocumentOutput, error) {
	_ = ctx
	raw, err := os.ReadFile(in.SourcePath)
	if err != nil {
		return ExtractDocumentOutput{}, fmt.Errorf("read document file: %w", err)
	}
	doc, err := a.parser.Parse(raw)
	if err != nil {
		return ExtractDocumentOutput{}, terminalIfTyped(err)
	}
	return ExtractDocumentOutput{Doc: doc}, nil
}

func (a *Activities) UpdateMetadataActivity(ctx context.Context, in UpdateMetadataInput) error {
	return a.docRepo.UpdateDocumentMetadata(ctx, in.DocumentID, in.Title, in.Authors, in.Year, in.Venue)
}

func (a *Activities) ChunkDocumentActivity(ctx context.Context, in ChunkDocumentInput) (ChunkDocumentOutput, error) {
	_ = ctx
	chunks := a.splitter.Split(in.SessionID, in.DocumentID, in.Doc)
	return ChunkDocumentOutput{Chunks: chunks}, nil
}

func (a *Activities) IndexChunksActivity(ctx context.Context, in IndexChunksInput) (IndexChunksOutput, error) {
	doc := models.Document{DocumentID: in.DocumentID, SessionID: in.SessionID}
	res, err := a.indexer.Index(ctx, doc, in.Chunks)
	if err != nil {
		return IndexChunksOutput{Result: res}, terminalIfTyped(err)
	}
	return IndexChunksOutput{Result: res}, nil
}

// RemoveDocumentActivity drops a document's index entries. The workflow runs
// it when a document ends failed, so a partial index never lingers behind a
// failed status.
func (a *Activities) RemoveDocumentActivity(ctx context.Context, in RemoveDocumentInput) error {
	return a.indexer.Remove(ctx, in.DocumentID)
}

func (a *Activities) WriteArtifactsActivity(ctx context.Context, in WriteArtifactsInput) error {
	_ = ctx
	base := filepath.Join(a.cfg.DataOutRoot, in.SessionID, in.DocumentID)
	if err := util.WriteTextAtomic(filepath.Join(base, "extracted.txt"), in.Text); err != nil {
		return err
	}
	return util.WriteJSONAtomic(filepath.Join(base, "chunks.json"), map[string]any{
		"document_id": in.DocumentID,
		"session_id":  in.SessionID,
		"chunk_count": len(in.Chunks),
		"chunks":      in.Chunks,
	})
}

// terminalIfTyped converts errors whose kind means "retrying cannot help"
// into non-retryable application errors typed by the kind.
func terminalIfTyped(err error) error {
	switch kind := ragerr.KindOf(err); kind {
	case ragerr.InvalidDocument, ragerr.ExtractionFailure, ragerr.UpsertFailure, ragerr.EncoderNotReady:
		return temporal.NewNonRetryableApplicationError(err.Error(), string(kind), err)
	default:
		return err
	}
}
