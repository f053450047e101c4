// Package answer turns a question into a grounded answer: retrieve, assemble
// a context window in rerank order, call the LLM under a deadline, and
// attribute sources.
package answer

import (
	"context"
	"fmt"
	"time"

	"paperchat/internal/config"
	"paperchat/internal/models"
	"paperchat/internal/providers"
	"paperchat/internal/ragerr"
	"paperchat/internal/storage"
	"paperchat/internal/util"
)

const systemPrompt = `You are a research assistant answering questions about the papers in the current session. Ground every claim in the provided context passages and cite them as [S1], [S2] and so on. If the context does not answer the question, say so.`

const noContextPrompt = `No indexed document content in this session matched the question. State that no session documents matched, then answer from general knowledge when you can, making clear the answer is not grounded in the session's papers.`

type Retriever interface {
	Retrieve(ctx context.Context, sessionID, query string, topK int) ([]models.RetrievedChunk, error)
}

type AuditStore interface {
	Insert(ctx context.Context, rec storage.AnswerAuditRecord) error
}

type Composer struct {
	retriever       Retriever
	llm             providers.LLMProvider
	llmRef          providers.ProviderRef
	audit           AuditStore
	generateTimeout time.Duration
}

func NewComposer(retriever Retriever, llm providers.LLMProvider, llmRef providers.ProviderRef, audit AuditStore, cfg config.Config) *Composer {
	return &Composer{
		retriever:       retriever,
		llm:             llm,
		llmRef:          llmRef,
		audit:           audit,
		generateTimeout: cfg.GenerateTimeout,
	}
}

// Answer retrieves grounding for the question and generates a reply. Sources
// are the distinct (document, section) pairs behind the context, in the order
// the context included them. The caller's ctx cancels the generation.
func (c *Composer) Answer(ctx context.Context, sessionID, question string, topK int) (models.AnswerRecord, error) {
	started := time.Now()

	retrieved, err := c.retriever.Retrieve(ctx, sessionID, question, topK)
	if err != nil {
		c.recordAudit(ctx, sessionID, question, "", len(retrieved), started, err)
		return models.AnswerRecord{}, err
	}

	contexts := make([]string, len(retrieved))
	for i, rc := range retrieved {
		contexts[i] = fmt.Sprintf("[%s] Document %s: %s", rc.Chunk.SectionLabel, rc.Chunk.DocumentID, rc.Chunk.Text)
	}

	req := providers.GenerateRequest{
		Operation: "answer",
		System:    systemPrompt,
		Prompt:    question,
		Context:   contexts,
	}
	if len(retrieved) == 0 {
		req.System = noContextPrompt
	}

	genCtx, cancel := context.WithTimeout(ctx, c.generateTimeout)
	defer cancel()
	resp, info, err := c.llm.Generate(genCtx, req)
	if err != nil {
		genErr := ragerr.New(ragerr.GenerationFailure, "answer.Answer", err)
		c.recordAudit(ctx, sessionID, question, info.Model, len(retrieved), started, genErr)
		return models.AnswerRecord{}, genErr
	}

	rec := models.AnswerRecord{
		Question:  question,
		Answer:    resp.Text,
		Sources:   collectSources(retrieved, question),
		Model:     info.Model,
		Provider:  info.Name,
		LatencyMS: time.Since(started).Milliseconds(),
	}
	c.recordAudit(ctx, sessionID, question, info.Model, len(retrieved), started, nil)
	return rec, nil
}

// collectSources dedupes (document, section) pairs keeping first-inclusion
// order, with a short excerpt from the first chunk of each pair.
func collectSources(retrieved []models.RetrievedChunk, question string) []models.Source {
	out := make([]models.Source, 0, len(retrieved))
	seen := map[string]struct{}{}
	for _, rc := range retrieved {
		key := rc.Chunk.DocumentID + "\x00" + rc.Chunk.SectionLabel
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, models.Source{
			DocumentID:   rc.Chunk.DocumentID,
			SectionLabel: rc.Chunk.SectionLabel,
			Excerpt:      util.EvidenceSnippet(rc.Chunk.Text, question, 200),
		})
	}
	return out
}

// recordAudit is best-effort: a failed audit write never fails the answer.
func (c *Composer) recordAudit(ctx context.Context, sessionID, question, model string, retrieved int, started time.Time, answerErr error) {
	if c.audit == nil {
		return
	}
	rec := storage.AnswerAuditRecord{
		SessionID:    sessionID,
		Question:     question,
		ProviderName: c.llmRef.Name,
		Model:        model,
		Retrieved:    retrieved,
		LatencyMS:    time.Since(started).Milliseconds(),
		Status:       "ok",
	}
	if answerErr != nil {
		rec.Status = "error"
		rec.ErrorType = string(ragerr.KindOf(answerErr))
	}
	_ = c.audit.Insert(context.WithoutCancel(ctx), rec)
}
