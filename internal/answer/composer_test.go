package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"paperchat/internal/config"
	"paperchat/internal/models"
	"paperchat/internal/providers"
	"paperchat/internal/ragerr"
	"paperchat/internal/storage"
)

type fakeRetriever struct {
	chunks []models.RetrievedChunk
	err    error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, sessionID, query string, topK int) ([]models.RetrievedChunk, error) {
	return f.chunks, f.err
}

type capturingLLM struct {
	lastReq providers.GenerateRequest
	resp    string
	err     error
}

func (c *capturingLLM) Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	c.lastReq = req
	if c.err != nil {
		return providers.GenerateResponse{}, providers.ProviderInfo{Name: "capture", Model: "capture-1"}, c.err
	}
	return providers.GenerateResponse{Text: c.resp}, providers.ProviderInfo{Name: "capture", Model: "capture-1"}, nil
}

type memAudit struct {
	records []storage.AnswerAuditRecord
}

func (m *memAudit) Insert(ctx context.Context, rec storage.AnswerAuditRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func retrievedChunk(docID, section, text string, index int) models.RetrievedChunk {
	return models.RetrievedChunk{
		Chunk: models.Chunk{
			ChunkID:      docID + "-" + section,
			DocumentID:   docID,
			SessionID:    "s1",
			ChunkIndex:   index,
			SectionLabel: section,
			Text:         text,
		},
	}
}

func TestAnswerAssemblesContextInOrder(t *testing.T) {
	llm := &capturingLLM{resp: "grounded answer [S1]"}
	retr := &fakeRetriever{chunks: []models.RetrievedChunk{
		retrievedChunk("d1", "Methods", "We measure recall at ten.", 3),
		retrievedChunk("d2", "Introduction", "Retrieval quality matters.", 0),
	}}
	c := NewComposer(retr, llm, providers.ProviderRef{Name: "capture"}, &memAudit{}, config.Load())

	rec, err := c.Answer(context.Background(), "s1", "how is recall measured?", 0)
	require.NoError(t, err)
	require.Equal(t, "grounded answer [S1]", rec.Answer)
	require.Equal(t, "capture-1", rec.Model)
	require.Len(t, llm.lastReq.Context, 2)
	require.True(t, strings.HasPrefix(llm.lastReq.Context[0], "[Methods] Document d1:"))
	require.True(t, strings.HasPrefix(llm.lastReq.Context[1], "[Introduction] Document d2:"))
}

func TestAnswerSourcesDedupedInInclusionOrder(t *testing.T) {
	retr := &fakeRetriever{chunks: []models.RetrievedChunk{
		retrievedChunk("d1", "Methods", "First methods chunk.", 0),
		retrievedChunk("d2", "Body", "Body text.", 0),
		retrievedChunk("d1", "Methods", "Second methods chunk.", 1),
	}}
	c := NewComposer(retr, &capturingLLM{resp: "ok"}, providers.ProviderRef{Name: "capture"}, &memAudit{}, config.Load())

	rec, err := c.Answer(context.Background(), "s1", "question", 0)
	require.NoError(t, err)
	require.Len(t, rec.Sources, 2)
	require.Equal(t, "d1", rec.Sources[0].DocumentID)
	require.Equal(t, "Methods", rec.Sources[0].SectionLabel)
	require.Equal(t, "d2", rec.Sources[1].DocumentID)
}

func TestAnswerNoContextPrompt(t *testing.T) {
	llm := &capturingLLM{resp: "nothing indexed"}
	c := NewComposer(&fakeRetriever{}, llm, providers.ProviderRef{Name: "capture"}, &memAudit{}, config.Load())

	rec, err := c.Answer(context.Background(), "s1", "question", 0)
	require.NoError(t, err)
	require.Empty(t, rec.Sources)
	require.Empty(t, llm.lastReq.Context)
	require.Contains(t, llm.lastReq.System, "no session documents matched")
	require.Contains(t, llm.lastReq.System, "general knowledge")
}

func TestAnswerGenerationFailureTyped(t *testing.T) {
	audit := &memAudit{}
	llm := &capturingLLM{err: errors.New("model exploded")}
	retr := &fakeRetriever{chunks: []models.RetrievedChunk{retrievedChunk("d1", "Body", "text", 0)}}
	c := NewComposer(retr, llm, providers.ProviderRef{Name: "capture"}, audit, config.Load())

	_, err := c.Answer(context.Background(), "s1", "question", 0)
	require.Error(t, err)
	require.True(t, ragerr.Is(err, ragerr.GenerationFailure))
	require.Len(t, audit.records, 1)
	require.Equal(t, "error", audit.records[0].Status)
	require.Equal(t, string(ragerr.GenerationFailure), audit.records[0].ErrorType)
}

func TestAnswerRetrieveErrorPassesThrough(t *testing.T) {
	retr := &fakeRetriever{err: ragerr.Newf(ragerr.BackendUnavailable, "retrieve.Retrieve", "db down")}
	c := NewComposer(retr, &capturingLLM{}, providers.ProviderRef{Name: "capture"}, &memAudit{}, config.Load())

	_, err := c.Answer(context.Background(), "s1", "question", 0)
	require.Error(t, err)
	require.True(t, ragerr.Is(err, ragerr.BackendUnavailable))
}

func TestAnswerAuditsSuccess(t *testing.T) {
	audit := &memAudit{}
	retr := &fakeRetriever{chunks: []models.RetrievedChunk{retrievedChunk("d1", "Body", "text", 0)}}
	c := NewComposer(retr, &capturingLLM{resp: "ok"}, providers.ProviderRef{Name: "capture"}, audit, config.Load())

	_, err := c.Answer(context.Background(), "s1", "question", 0)
	require.NoError(t, err)
	require.Len(t, audit.records, 1)
	require.Equal(t, "ok", audit.records[0].Status)
	require.Equal(t, 1, audit.records[0].Retrieved)
	require.Equal(t, "capture-1", audit.records[0].Model)
}
