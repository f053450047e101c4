package workflows

type IngestInput struct {
	SessionID  string `json:"session_id"`
	DocumentID string `json:"document_id"`
	PaperID    string `json:"paper_id"`
	SourcePath string `json:"source_path"`
}

type IngestProgress struct {
	SessionID   string `json:"session_id"`
	DocumentID  string `json:"document_id"`
	CurrentStep string `json:"current_step"`
	Status      string `json:"status"`
	ChunkCount  int    `json:"chunk_count"`
	Failures    int    `json:"failures"`
	FailReason  string `json:"fail_reason,omitempty"`
}
