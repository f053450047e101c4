package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"paperchat/internal/activities"
	"paperchat/internal/models"
	"paperchat/internal/ragerr"
)

const QueryGetIngestProgress = "GetIngestProgress"

// IngestDocumentWorkflow runs one document through extract, chunk and index,
// keeping the (session, document) status row in step. Documents that cannot
// be processed (invalid file, no extractable text, nothing indexable) end as
// "failed" without failing the workflow, so the API reports them like any
// other terminal state.
func IngestDocumentWorkflow(ctx workflow.Context, input IngestInput) (string, error) {
	progress := IngestProgress{
		SessionID:   input.SessionID,
		DocumentID:  input.DocumentID,
		CurrentStep: "init",
		Status:      models.StatusProcessing,
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetIngestProgress, func() (IngestProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	setStatus := func(in activities.SetStatusInput) {
		in.SessionID = input.SessionID
		in.DocumentID = input.DocumentID
		_ = workflow.ExecuteActivity(ctx, "SetStatusActivity", in).Get(ctx, nil)
	}

	failDocument := func(reason string) (string, error) {
		progress.Status = models.StatusFailed
		progress.FailReason = reason
		// Drop whatever was indexed before the failure; a failed document
		// must not keep partial vectors behind its status.
		_ = workflow.ExecuteActivity(ctx, "RemoveDocumentActivity", activities.RemoveDocumentInput{
			DocumentID: input.DocumentID,
		}).Get(ctx, nil)
		setStatus(activities.SetStatusInput{Status: models.StatusFailed, LastError: reason})
		return models.StatusFailed, nil
	}

	setStatus(activities.SetStatusInput{Status: models.StatusProcessing})

	progress.CurrentStep = "extract"
	var extractOut activities.ExtractDocumentOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractDocumentActivity", activities.ExtractDocumentInput{
		DocumentID: input.DocumentID,
		SourcePath: input.SourcePath,
	}).Get(ctx, &extractOut); err != nil {
		if kind, ok := terminalKind(err); ok {
			return failDocument(string(kind) + ": " + err.Error())
		}
		return "", err
	}

	progress.CurrentStep = "metadata"
	_ = workflow.ExecuteActivity(ctx, "UpdateMetadataActivity", activities.UpdateMetadataInput{
		DocumentID: input.DocumentID,
		Title:      extractOut.Doc.Title,
		Authors:    extractOut.Doc.Authors,
		Year:       extractOut.Doc.Year,
		Venue:      extractOut.Doc.Venue,
	}).Get(ctx, nil)

	progress.CurrentStep = "chunk"
	var chunkOut activities.ChunkDocumentOutput
	if err := workflow.ExecuteActivity(ctx, "ChunkDocumentActivity", activities.ChunkDocumentInput{
		SessionID:  input.SessionID,
		DocumentID: input.DocumentID,
		Doc:        extractOut.Doc,
	}).Get(ctx, &chunkOut); err != nil {
		return "", err
	}
	if len(chunkOut.Chunks) == 0 {
		return failDocument("document produced no chunks")
	}

	progress.CurrentStep = "index"
	var indexOut activities.IndexChunksOutput
	if err := workflow.ExecuteActivity(ctx, "IndexChunksActivity", activities.IndexChunksInput{
		SessionID:  input.SessionID,
		DocumentID: input.DocumentID,
		Chunks:     chunkOut.Chunks,
	}).Get(ctx, &indexOut); err != nil {
		if kind, ok := terminalKind(err); ok {
			return failDocument(string(kind) + ": " + err.Error())
		}
		return "", err
	}
	progress.ChunkCount = indexOut.Result.ChunksIndexed
	progress.Failures = indexOut.Result.Failures

	progress.CurrentStep = "artifacts"
	_ = workflow.ExecuteActivity(ctx, "WriteArtifactsActivity", activities.WriteArtifactsInput{
		SessionID:  input.SessionID,
		DocumentID: input.DocumentID,
		Text:       extractOut.Doc.Text,
		Chunks:     chunkOut.Chunks,
	}).Get(ctx, nil)

	progress.CurrentStep = "done"
	progress.Status = models.StatusCompleted
	setStatus(activities.SetStatusInput{
		Status:       models.StatusCompleted,
		ChunkCount:   indexOut.Result.ChunksIndexed,
		FailureCount: indexOut.Result.Failures,
	})
	return models.StatusCompleted, nil
}

// terminalKind extracts the error kind an activity attached when it decided
// the failure is not worth retrying.
func terminalKind(err error) (ragerr.Kind, bool) {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return "", false
	}
	switch kind := ragerr.Kind(appErr.Type()); kind {
	case ragerr.InvalidDocument, ragerr.ExtractionFailure, ragerr.UpsertFailure, ragerr.EncoderNotReady:
		return kind, true
	default:
		return "", false
	}
}
