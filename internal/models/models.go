package models

import "time"

// Document statuses, shared by documents and session_documents rows.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type Document struct {
	DocumentID string    `json:"document_id"`
	SessionID  string    `json:"session_id"`
	PaperID    string    `json:"paper_id"`
	SourcePath string    `json:"source_path"`
	Title      string    `json:"title,omitempty"`
	Authors    string    `json:"authors,omitempty"`
	Year       *int      `json:"year,omitempty"`
	Venue      string    `json:"venue,omitempty"`
	Status     string    `json:"status"`
	FailReason string    `json:"fail_reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Section is a structural region of a document's extracted text.
// Start/End are byte offsets into the full extracted text.
type Section struct {
	Label   string `json:"label"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Ordinal int    `json:"ordinal"`
}

type Chunk struct {
	ChunkID        string    `json:"chunk_id"`
	DocumentID     string    `json:"document_id"`
	SessionID      string    `json:"session_id"`
	ChunkIndex     int       `json:"chunk_index"`
	SectionOrdinal int       `json:"section_ordinal"`
	SectionLabel   string    `json:"section_label"`
	Text           string    `json:"text"`
	CharLen        int       `json:"char_len"`
	TokenLen       int       `json:"token_len"`
	Citations      []string  `json:"citations,omitempty"`
	IsCaption      bool      `json:"is_caption,omitempty"`
	PageStart      *int      `json:"page_start,omitempty"`
	PageEnd        *int      `json:"page_end,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// RetrievedChunk pairs a chunk with its reranked relevance score.
// DenseRank is the chunk's position in the dense candidate list, or -1 when
// it was found only by the sparse search.
type RetrievedChunk struct {
	Chunk     Chunk   `json:"chunk"`
	Score     float64 `json:"score"`
	DenseRank int     `json:"dense_rank"`
}

type Source struct {
	DocumentID   string `json:"document_id"`
	SectionLabel string `json:"section_label"`
	Excerpt      string `json:"excerpt"`
}

type AnswerRecord struct {
	Question  string   `json:"question"`
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
	Model     string   `json:"model"`
	Provider  string   `json:"provider"`
	LatencyMS int64    `json:"latency_ms"`
}

type SessionIndexStatus struct {
	SessionID    string    `json:"session_id"`
	DocumentID   string    `json:"document_id"`
	Status       string    `json:"status"`
	ChunkCount   int       `json:"chunk_count"`
	FailureCount int       `json:"failure_count"`
	LastError    string    `json:"last_error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type IndexResult struct {
	ChunksIndexed int `json:"chunks_indexed"`
	Failures      int `json:"failures"`
}

type IndexStats struct {
	VectorCount   int `json:"vector_count"`
	DocumentCount int `json:"document_count"`
}
