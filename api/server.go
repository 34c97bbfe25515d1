package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fabfab/docqa/admin"
	"github.com/fabfab/docqa/chat"
	"github.com/fabfab/docqa/config"
	"github.com/fabfab/docqa/ingestion"
	"github.com/fabfab/docqa/knowledge"
	"github.com/fabfab/docqa/logging"
)

const (
	noFileMessage       = "No file uploaded"
	missingFieldMessage = "Missing question or documentId"
	resetOKMessage      = "All vectors have been deleted."
	resetFailedMessage  = "Failed to delete all vectors."

	// room for multipart boundaries and headers on top of the file itself
	multipartOverhead = 1 << 20
)

type Ingester interface {
	Ingest(ctx context.Context, req ingestion.Request) (ingestion.Result, error)
}

type Asker interface {
	Ask(ctx context.Context, question, documentID string) (chat.Answer, error)
}

type Resetter interface {
	Reset(ctx context.Context) error
}

// Dependencies are the services behind the HTTP surface. Gate may be nil, in
// which case the admin reset route is not registered.
type Dependencies struct {
	Ingester Ingester
	Asker    Asker
	Resetter Resetter
	Catalog  knowledge.Catalog
	Gate     *admin.Gate
	Registry *prometheus.Registry
}

// Server exposes HTTP handlers for upload, question answering and store reset.
type Server struct {
	cfg     config.Config
	deps    Dependencies
	logger  *zap.Logger
	metrics *metrics
	handler http.Handler
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type uploadResponse struct {
	Summary    string `json:"summary"`
	DocumentID string `json:"documentId"`
	PageCount  int    `json:"pageCount"`
}

type questionRequest struct {
	Question   string `json:"question"`
	DocumentID string `json:"documentId"`
}

type questionResponse struct {
	Answer string `json:"answer"`
}

// New constructs a Server that serves the HTTP API using the provided configuration.
func New(cfg config.Config, deps Dependencies, logger *zap.Logger) *Server {
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		logger:  logging.OrNop(logger),
		metrics: newMetrics(deps.Registry),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metrics.handler())
	mux.HandleFunc("/api/upload", s.metrics.instrument("upload", s.handleUpload))
	mux.HandleFunc("/api/question", s.metrics.instrument("question", s.handleQuestion))
	mux.HandleFunc("/api/documents", s.metrics.instrument("documents", s.handleDocuments))
	mux.HandleFunc("/api/documents/", s.metrics.instrument("document", s.handleDocument))
	if s.deps.Gate != nil {
		mux.HandleFunc("/admin/empty-db", s.metrics.instrument("empty_db", s.handleEmptyDB))
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	limit := s.cfg.Ingestion.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.writeText(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds the %d byte upload limit", limit))
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			s.writeText(w, http.StatusBadRequest, noFileMessage)
		default:
			s.logger.Warn("read upload", zap.Error(err))
			s.writeText(w, http.StatusBadRequest, noFileMessage)
		}
		return
	}
	defer file.Close()

	if header.Size > limit {
		s.writeText(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds the %d byte upload limit", limit))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		s.writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	if int64(len(data)) > limit {
		s.writeText(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds the %d byte upload limit", limit))
		return
	}

	result, err := s.deps.Ingester.Ingest(r.Context(), ingestion.Request{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		s.metrics.ingestions.WithLabelValues(ingestionStatus(err)).Inc()
		if errors.Is(err, ingestion.ErrMissingInput) {
			s.writeText(w, http.StatusBadRequest, noFileMessage)
			return
		}
		s.logger.Error("upload failed", zap.String("filename", header.Filename), zap.Error(err))
		s.writeText(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.metrics.ingestions.WithLabelValues("ok").Inc()
	s.writeJSON(w, http.StatusOK, uploadResponse{
		Summary:    result.Summary,
		DocumentID: result.DocumentID,
		PageCount:  result.PageCount,
	})
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req questionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.logger.Error("error processing the question", zap.Error(fmt.Errorf("decode request: %w", err)))
		s.metrics.questions.WithLabelValues(string(chat.OutcomeProviderError)).Inc()
		s.writeJSON(w, http.StatusOK, questionResponse{Answer: chat.ErrorAnswer})
		return
	}

	answer, err := s.deps.Asker.Ask(r.Context(), req.Question, req.DocumentID)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidRequest) {
			s.writeText(w, http.StatusBadRequest, missingFieldMessage)
			return
		}
		s.logger.Error("error processing the question", zap.Error(err))
		s.metrics.questions.WithLabelValues(string(chat.OutcomeProviderError)).Inc()
		s.writeJSON(w, http.StatusOK, questionResponse{Answer: chat.ErrorAnswer})
		return
	}

	s.metrics.questions.WithLabelValues(string(answer.Outcome)).Inc()
	s.writeJSON(w, http.StatusOK, questionResponse{Answer: answer.Text})
}

func (s *Server) handleEmptyDB(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	claims, err := s.deps.Gate.Authorize(r.Header.Get("Authorization"))
	if err != nil {
		s.logger.Warn("rejected admin request", zap.Error(err))
		s.writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "Unauthorized"})
		return
	}

	if err := s.deps.Resetter.Reset(r.Context()); err != nil {
		s.logger.Error("reset failed", zap.String("subject", claims.Subject), zap.Error(err))
		s.writeJSON(w, http.StatusOK, messageResponse{Message: resetFailedMessage})
		return
	}

	s.logger.Info("store reset", zap.String("subject", claims.Subject))
	s.writeJSON(w, http.StatusOK, messageResponse{Message: resetOKMessage})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	if s.deps.Catalog == nil {
		s.writeJSON(w, http.StatusOK, []knowledge.Document{})
		return
	}

	docs, err := s.deps.Catalog.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("list documents: %w", err))
		return
	}
	s.writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/documents/"), "/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, knowledge.ErrNotFound)
		return
	}
	if s.deps.Catalog == nil {
		s.writeError(w, http.StatusNotFound, knowledge.ErrNotFound)
		return
	}

	doc, err := s.deps.Catalog.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("get document: %w", err))
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed, use %s", allowed))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Info("api error", zap.Int("status", status), zap.Error(err))
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}

func ingestionStatus(err error) string {
	switch {
	case errors.Is(err, ingestion.ErrMissingInput):
		return "missing_input"
	case errors.Is(err, ingestion.ErrParse):
		return "parse_error"
	case errors.Is(err, ingestion.ErrProvider):
		return "provider_error"
	default:
		return "error"
	}
}
