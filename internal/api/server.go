package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"

	"paperchat/internal/answer"
	"paperchat/internal/config"
	"paperchat/internal/index"
	"paperchat/internal/models"
	"paperchat/internal/providers"
	"paperchat/internal/ragerr"
	"paperchat/internal/retrieve"
	"paperchat/internal/storage"
	"paperchat/internal/util"
	"paperchat/internal/vector"
	"paperchat/internal/workflows"
)

// Handler dependencies are interfaces satisfied by the storage repos, the
// indexer and the answer composer.
type documentStore interface {
	UpsertDocument(ctx context.Context, d models.Document) error
	GetDocument(ctx context.Context, documentID string) (models.Document, error)
	GetDocumentByPaper(ctx context.Context, sessionID, paperID string) (models.Document, error)
	ListDocumentsBySession(ctx context.Context, sessionID string) ([]models.Document, error)
	ListAllDocuments(ctx context.Context) ([]models.Document, error)
	DeleteBySession(ctx context.Context, sessionID string) error
	DeleteAll(ctx context.Context) error
}

type statusStore interface {
	SetStatus(ctx context.Context, sessionID, documentID, status, lastError string) error
	ListBySession(ctx context.Context, sessionID string) ([]models.SessionIndexStatus, error)
	ResetToPending(ctx context.Context, sessionID string) error
}

type indexAdmin interface {
	Clear(ctx context.Context, sessionID string) error
	Stats(ctx context.Context, sessionID string) (models.IndexStats, error)
}

type answerer interface {
	Answer(ctx context.Context, sessionID, question string, topK int) (models.AnswerRecord, error)
}

type Server struct {
	cfg        config.Config
	db         *storage.DB
	docRepo    documentStore
	statusRepo statusStore
	indexer    indexAdmin
	composer   answerer
	validate   *validator.Validate
	temporal   tclient.Client
}

func NewServer(cfg config.Config) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}

	chunkRepo := storage.NewChunkRepo(db)
	sparseRepo := storage.NewSparseRepo(db)
	embedder, _ := pm.Embedder()
	reranker, _ := pm.Reranker()
	llm, llmRef := pm.LLM()
	retriever := retrieve.NewRetriever(vector.NewSearcher(db), sparseRepo, embedder, reranker, cfg)

	return &Server{
		cfg:        cfg,
		db:         db,
		docRepo:    storage.NewDocumentRepo(db),
		statusRepo: storage.NewStatusRepo(db),
		indexer:    index.NewIndexer(chunkRepo, sparseRepo, embedder, cfg),
		composer:   answer.NewComposer(retriever, llm, llmRef, storage.NewAnswerAuditRepo(db), cfg),
		validate:   validator.New(),
		temporal:   tc,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/reprocess", s.handleReprocess)
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/sessions/", s.handleSessionsScoped)
	mux.HandleFunc("/index/clear", s.handleIndexClear)
	mux.HandleFunc("/index/recreate", s.handleIndexRecreate)
	mux.HandleFunc("/index/stats", s.handleIndexStats)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if err := r.ParseMultipartForm(128 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	sessionID := strings.TrimSpace(r.FormValue("session_id"))
	if sessionID == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("session_id is required"))
		return
	}

	fh, ok := formFile(r.MultipartForm.File, "file")
	if !ok {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no file provided"))
		return
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("only pdf files are accepted"))
		return
	}

	inDir := filepath.Join(s.cfg.DataInRoot, sessionID)
	if err := util.EnsureDir(inDir); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	paperID, savedPath, err := saveUploadedFile(inDir, fh)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if override := strings.TrimSpace(r.FormValue("paper_id")); override != "" {
		paperID = override
	}

	// Same paper in the same session keeps its document id, so re-ingestion
	// replaces the old index entries instead of duplicating them.
	documentID := uuid.NewString()
	if existing, err := s.docRepo.GetDocumentByPaper(r.Context(), sessionID, paperID); err == nil {
		documentID = existing.DocumentID
	} else if !errors.Is(err, storage.ErrNotFound) {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	doc := models.Document{
		DocumentID: documentID,
		SessionID:  sessionID,
		PaperID:    paperID,
		SourcePath: savedPath,
		Status:     models.StatusPending,
	}
	if err := s.docRepo.UpsertDocument(r.Context(), doc); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.statusRepo.SetStatus(r.Context(), sessionID, documentID, models.StatusPending, ""); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	if err := s.startIngestWorkflow(r.Context(), doc); err != nil {
		writeErr(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"document_id": documentID,
		"paper_id":    paperID,
		"status":      models.StatusPending,
	})
}

func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		SessionID  string `json:"session_id" validate:"required"`
		DocumentID string `json:"document_id" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeErr(w, http.StatusUnprocessableEntity, err)
		return
	}

	doc, err := s.docRepo.GetDocument(r.Context(), req.DocumentID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && doc.SessionID != req.SessionID) {
		writeErr(w, http.StatusNotFound, fmt.Errorf("document not found"))
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	if err := s.statusRepo.SetStatus(r.Context(), doc.SessionID, doc.DocumentID, models.StatusPending, ""); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.startIngestWorkflow(r.Context(), doc); err != nil {
		writeErr(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"document_id": doc.DocumentID, "status": models.StatusPending})
}

// startIngestWorkflow starts the ingestion workflow under a deterministic id,
// so a second ingest of the same (session, paper) while one is running is
// rejected as AlreadyInProgress instead of racing it.
func (s *Server) startIngestWorkflow(ctx context.Context, doc models.Document) error {
	wfID := fmt.Sprintf("ingest-%s-%s", doc.SessionID, doc.PaperID)
	_, err := s.temporal.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                                       wfID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.IngestDocumentWorkflow, workflows.IngestInput{
		SessionID:  doc.SessionID,
		DocumentID: doc.DocumentID,
		PaperID:    doc.PaperID,
		SourcePath: doc.SourcePath,
	})
	var already *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &already) {
		return ragerr.Newf(ragerr.AlreadyInProgress, "api.startIngestWorkflow", "ingestion already running for %s", wfID)
	}
	return err
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		SessionID string `json:"session_id" validate:"required"`
		Question  string `json:"question" validate:"required,min=1,max=4000"`
		TopK      int    `json:"top_k" validate:"gte=0,lte=50"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if err := s.validate.Struct(req); err != nil {
		writeErr(w, http.StatusUnprocessableEntity, err)
		return
	}

	rec, err := s.composer.Answer(r.Context(), req.SessionID, req.Question, req.TopK)
	if err != nil {
		writeErr(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"answer":     rec.Answer,
		"sources":    rec.Sources,
		"model":      rec.Model,
		"provider":   rec.Provider,
		"latency_ms": rec.LatencyMS,
	})
}

func (s *Server) handleSessionsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/sessions/"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "status" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	statuses, err := s.statusRepo.ListBySession(r.Context(), parts[0])
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statuses": statuses})
}

func (s *Server) handleIndexClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if err := s.indexer.Clear(r.Context(), sessionID); err != nil {
		writeErr(w, statusForError(err), err)
		return
	}
	// Clear drops document registrations too, not just vectors: deleting the
	// documents rows cascades over session_documents and any chunk leftovers.
	var err error
	if sessionID == "" {
		err = s.docRepo.DeleteAll(r.Context())
	} else {
		err = s.docRepo.DeleteBySession(r.Context(), sessionID)
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true, "session_id": sessionID})
}

func (s *Server) handleIndexRecreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if err := s.indexer.Clear(r.Context(), sessionID); err != nil {
		writeErr(w, statusForError(err), err)
		return
	}
	if err := s.statusRepo.ResetToPending(r.Context(), sessionID); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	var docs []models.Document
	var err error
	if sessionID == "" {
		docs, err = s.docRepo.ListAllDocuments(r.Context())
	} else {
		docs, err = s.docRepo.ListDocumentsBySession(r.Context(), sessionID)
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	restarted := 0
	for _, doc := range docs {
		if err := s.startIngestWorkflow(r.Context(), doc); err != nil {
			if ragerr.Is(err, ragerr.AlreadyInProgress) {
				continue
			}
			writeErr(w, statusForError(err), err)
			return
		}
		restarted++
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"session_id": sessionID, "documents": len(docs), "restarted": restarted})
}

func (s *Server) handleIndexStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	st, err := s.indexer.Stats(r.Context(), strings.TrimSpace(r.URL.Query().Get("session_id")))
	if err != nil {
		writeErr(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vector_count": st.VectorCount, "document_count": st.DocumentCount})
}

func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (paperID, path string, err error) {
	src, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dstDir, "upload-*.pdf")
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
	}()

	paperID, err = util.SHA256HexFromReader(io.TeeReader(src, tmp))
	if err != nil {
		return "", "", fmt.Errorf("write upload: %w", err)
	}

	// The stored name is the content hash, not the client filename: two
	// uploads named paper.pdf with different bytes must not clobber each
	// other.
	finalPath := filepath.Join(dstDir, paperID+".pdf")
	if err := tmp.Close(); err != nil {
		return "", "", err
	}
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", "", fmt.Errorf("atomic move upload: %w", err)
	}
	return paperID, finalPath, nil
}

func formFile(m map[string][]*multipart.FileHeader, preferred string) (*multipart.FileHeader, bool) {
	if v := m[preferred]; len(v) > 0 {
		return v[0], true
	}
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func statusForError(err error) int {
	switch ragerr.KindOf(err) {
	case ragerr.AlreadyInProgress:
		return http.StatusConflict
	case ragerr.InvalidDocument:
		return http.StatusBadRequest
	case ragerr.BackendUnavailable, ragerr.GenerationFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "PC-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case status == http.StatusBadGateway && ragerr.Is(err, ragerr.GenerationFailure):
			return apiError{
				Code:    "PC-LLM-5021",
				Message: "Answer generation failed. Retry shortly.",
			}
		case status == http.StatusBadGateway:
			return apiError{
				Code:    "PC-API-5020",
				Message: "Upstream backend unavailable. Retry shortly.",
			}
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "PC-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "PC-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "PC-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "PC-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "PC-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusMethodNotAllowed:
		code = "PC-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusConflict:
		code = "PC-API-4009"
		msg = "Ingestion is already in progress for this document."
	case status == http.StatusUnprocessableEntity:
		code = "PC-API-4022"
		msg = "Request failed validation. Check required fields."
	}

	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "session_id is required"):
			msg = "session_id is required."
		case strings.Contains(raw, "no file provided"):
			msg = "No PDF file was provided."
		case strings.Contains(raw, "only pdf"):
			msg = "Only PDF files are accepted."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(raw, "document not found"):
			msg = "Document was not found in this session."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
