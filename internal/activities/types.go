package activities

import (
	"paperchat/internal/ingest"
	"paperchat/internal/models"
)

type SetStatusInput struct {
	SessionID    string `json:"session_id"`
	DocumentID   string `json:"document_id"`
	Status       string `json:"status"`
	ChunkCount   int    `json:"chunk_count"`
	FailureCount int    `json:"failure_count"`
	LastError    string `json:"last_error,omitempty"`
}

type ExtractDocumentInput struct {
	DocumentID string `json:"document_id"`
	SourcePath string `json:"source_path"`
}

type ExtractDocumentOutput struct {
	Doc ingest.ParsedDocument `json:"doc"`
}

type UpdateMetadataInput struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title,omitempty"`
	Authors    string `json:"authors,omitempty"`
	Year       *int   `json:"year,omitempty"`
	Venue      string `json:"venue,omitempty"`
}

type ChunkDocumentInput struct {
	SessionID  string                `json:"session_id"`
	DocumentID string                `json:"document_id"`
	Doc        ingest.ParsedDocument `json:"doc"`
}

type ChunkDocumentOutput struct {
	Chunks []models.Chunk `json:"chunks"`
}

type RemoveDocumentInput struct {
	DocumentID string `json:"document_id"`
}

type IndexChunksInput struct {
	SessionID  string         `json:"session_id"`
	DocumentID string         `json:"document_id"`
	Chunks     []models.Chunk `json:"chunks"`
}

type IndexChunksOutput struct {
	Result models.IndexResult `json:"result"`
}

type WriteArtifactsInput struct {
	SessionID  string         `json:"session_id"`
	DocumentID string         `json:"document_id"`
	Text       string         `json:"text"`
	Chunks     []models.Chunk `json:"chunks"`
}
