package workflows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"paperchat/internal/activities"
	"paperchat/internal/ingest"
	"paperchat/internal/models"
	"paperchat/internal/ragerr"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func newIngestEnv() *testsuite.TestWorkflowEnvironment {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(IngestDocumentWorkflow)
	registerActivityName(env, "SetStatusActivity", func(context.Context, activities.SetStatusInput) error { return nil })
	registerActivityName(env, "ExtractDocumentActivity", func(context.Context, activities.ExtractDocumentInput) (activities.ExtractDocumentOutput, error) {
		return activities.ExtractDocumentOutput{}, nil
	})
	registerActivityName(env, "UpdateMetadataActivity", func(context.Context, activities.UpdateMetadataInput) error { return nil })
	registerActivityName(env, "ChunkDocumentActivity", func(context.Context, activities.ChunkDocumentInput) (activities.ChunkDocumentOutput, error) {
		return activities.ChunkDocumentOutput{}, nil
	})
	registerActivityName(env, "IndexChunksActivity", func(context.Context, activities.IndexChunksInput) (activities.IndexChunksOutput, error) {
		return activities.IndexChunksOutput{}, nil
	})
	registerActivityName(env, "RemoveDocumentActivity", func(context.Context, activities.RemoveDocumentInput) error { return nil })
	registerActivityName(env, "WriteArtifactsActivity", func(context.Context, activities.WriteArtifactsInput) error { return nil })
	return env
}

var testInput = IngestInput{SessionID: "s1", DocumentID: "d1", PaperID: "p1", SourcePath: "/tmp/p.pdf"}

func TestIngestDocumentWorkflowSuccess(t *testing.T) {
	env := newIngestEnv()
	parsed := ingest.ParsedDocument{Text: "Some body text.", Title: "A Paper"}
	chunks := []models.Chunk{{ChunkID: "c1", DocumentID: "d1", SessionID: "s1", Text: "Some body text."}}

	var statuses []string
	env.OnActivity("SetStatusActivity", mock.Anything, mock.Anything).Return(func(_ context.Context, in activities.SetStatusInput) error {
		statuses = append(statuses, in.Status)
		return nil
	})
	env.OnActivity("ExtractDocumentActivity", mock.Anything, activities.ExtractDocumentInput{DocumentID: "d1", SourcePath: "/tmp/p.pdf"}).
		Return(activities.ExtractDocumentOutput{Doc: parsed}, nil)
	env.OnActivity("UpdateMetadataActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ChunkDocumentActivity", mock.Anything, mock.Anything).Return(activities.ChunkDocumentOutput{Chunks: chunks}, nil)
	env.OnActivity("IndexChunksActivity", mock.Anything, mock.Anything).
		Return(activities.IndexChunksOutput{Result: models.IndexResult{ChunksIndexed: 1}}, nil)
	env.OnActivity("WriteArtifactsActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(IngestDocumentWorkflow, testInput)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, models.StatusCompleted, out)
	require.Equal(t, []string{models.StatusProcessing, models.StatusCompleted}, statuses)
}

func TestIngestDocumentWorkflowInvalidDocumentFailsGracefully(t *testing.T) {
	env := newIngestEnv()
	env.OnActivity("SetStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExtractDocumentActivity", mock.Anything, mock.Anything).
		Return(activities.ExtractDocumentOutput{}, temporal.NewNonRetryableApplicationError(
			"empty file", string(ragerr.InvalidDocument), nil))
	removed := ""
	env.OnActivity("RemoveDocumentActivity", mock.Anything, mock.Anything).Return(func(_ context.Context, in activities.RemoveDocumentInput) error {
		removed = in.DocumentID
		return nil
	})

	env.ExecuteWorkflow(IngestDocumentWorkflow, testInput)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, models.StatusFailed, out)
	require.Equal(t, "d1", removed)
}

func TestIngestDocumentWorkflowZeroChunksFails(t *testing.T) {
	env := newIngestEnv()
	env.OnActivity("SetStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ExtractDocumentActivity", mock.Anything, mock.Anything).
		Return(activities.ExtractDocumentOutput{Doc: ingest.ParsedDocument{Text: " "}}, nil)
	env.OnActivity("UpdateMetadataActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ChunkDocumentActivity", mock.Anything, mock.Anything).Return(activities.ChunkDocumentOutput{}, nil)

	env.ExecuteWorkflow(IngestDocumentWorkflow, testInput)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, models.StatusFailed, out)
}

func TestIngestDocumentWorkflowRecordsPartialFailures(t *testing.T) {
	env := newIngestEnv()
	var final activities.SetStatusInput
	env.OnActivity("SetStatusActivity", mock.Anything, mock.Anything).Return(func(_ context.Context, in activities.SetStatusInput) error {
		final = in
		return nil
	})
	env.OnActivity("ExtractDocumentActivity", mock.Anything, mock.Anything).
		Return(activities.ExtractDocumentOutput{Doc: ingest.ParsedDocument{Text: "body"}}, nil)
	env.OnActivity("UpdateMetadataActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ChunkDocumentActivity", mock.Anything, mock.Anything).
		Return(activities.ChunkDocumentOutput{Chunks: []models.Chunk{{ChunkID: "c1"}, {ChunkID: "c2"}}}, nil)
	env.OnActivity("IndexChunksActivity", mock.Anything, mock.Anything).
		Return(activities.IndexChunksOutput{Result: models.IndexResult{ChunksIndexed: 1, Failures: 1}}, nil)
	env.OnActivity("WriteArtifactsActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(IngestDocumentWorkflow, testInput)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	require.Equal(t, models.StatusCompleted, final.Status)
	require.Equal(t, 1, final.ChunkCount)
	require.Equal(t, 1, final.FailureCount)
}
