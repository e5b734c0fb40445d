package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/paperrag/internal/domain"
	"github.com/kailas-cloud/paperrag/internal/domain/filter"
	"github.com/kailas-cloud/paperrag/internal/domain/query"
	"github.com/kailas-cloud/paperrag/internal/domain/result"
	"github.com/kailas-cloud/paperrag/internal/logger"
	"github.com/kailas-cloud/paperrag/internal/usecase/health"
	"github.com/kailas-cloud/paperrag/internal/usecase/rank"
)

const codeBadRequest = "bad_request"

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, r *http.Request, err error) bool

// Options configures request defaults.
type Options struct {
	DefaultTopK int
	// SummaryCSVPath is the CSV ranked by POST /relevance.
	SummaryCSVPath string
}

// Server serves the retrieval HTTP API.
type Server struct {
	retriever     Retriever
	answerer      Answerer
	ranker        Ranker
	index         IndexSource
	health        HealthChecker
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	retriever Retriever,
	answerer Answerer,
	ranker Ranker,
	index IndexSource,
	health HealthChecker,
	opts Options,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = query.DefaultTopK
	}
	s := &Server{
		retriever: retriever,
		answerer:  answerer,
		ranker:    ranker,
		index:     index,
		health:    health,
		opts:      opts,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, true),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, true),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, true),
		sentinelHandler(domain.ErrIndexEmpty, http.StatusConflict, true),
		sentinelHandler(domain.ErrIndexVersionMismatch, http.StatusConflict, true),
		sentinelHandler(domain.ErrContextTooLarge, http.StatusUnprocessableEntity, true),
		sentinelHandler(domain.ErrProviderTimeout, http.StatusGatewayTimeout, false),
		sentinelHandler(domain.ErrProviderUnavailable, http.StatusBadGateway, false),
		sentinelHandler(domain.ErrProviderResponse, http.StatusBadGateway, false),
	}
	return s
}

type askRequest struct {
	Query   string   `json:"query"`
	TopK    *int     `json:"top_k,omitempty"`
	Filters []string `json:"filters,omitempty"`
}

type relevanceRequest struct {
	Query string `json:"query"`
}

type relevanceResponse struct {
	Papers       []rank.Paper `json:"papers"`
	OutputPath   string       `json:"output_path,omitempty"`
	ProviderUsed string       `json:"provider_used"`
}

type healthResponse struct {
	Status       health.Status                 `json:"status"`
	Checks       map[string]health.CheckResult `json:"checks"`
	IndexEntries int                           `json:"index_entries"`
}

type errorResponse struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Search handles GET /search?q=&top_k=&filter=.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	var text string
	if err := runtime.BindQueryParameter("form", true, true, "q", params, &text); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "Invalid parameter q: "+err.Error())
		return
	}
	topK := s.opts.DefaultTopK
	if err := runtime.BindQueryParameter("form", true, false, "top_k", params, &topK); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "Invalid parameter top_k: "+err.Error())
		return
	}
	var clauses []string
	if err := runtime.BindQueryParameter("form", true, false, "filter", params, &clauses); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "Invalid parameter filter: "+err.Error())
		return
	}

	q, ok := s.buildQuery(w, r, text, topK, clauses)
	if !ok {
		return
	}
	res, err := s.retriever.Retrieve(r.Context(), q, s.index.Current())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if res.Results == nil {
		res.Results = []result.ScoredResult{}
	}
	writeJSON(w, http.StatusOK, res)
}

// Ask handles POST /ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	topK := s.opts.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	q, ok := s.buildQuery(w, r, req.Query, topK, req.Filters)
	if !ok {
		return
	}
	res, err := s.answerer.Ask(r.Context(), q, s.index.Current())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Relevance handles POST /relevance: ranks the configured summary CSV.
func (s *Server) Relevance(w http.ResponseWriter, r *http.Request) {
	var req relevanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if s.opts.SummaryCSVPath == "" {
		writeError(w, r, http.StatusNotFound, string(domain.KindNotFound), "No summary CSV configured")
		return
	}

	res, err := s.ranker.RankPapers(r.Context(), req.Query, s.opts.SummaryCSVPath, "")
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	papers := res.Papers
	if papers == nil {
		papers = []rank.Paper{}
	}
	writeJSON(w, http.StatusOK, relevanceResponse{
		Papers:       papers,
		OutputPath:   res.OutputPath,
		ProviderUsed: res.ProviderUsed,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == health.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{
		Status:       report.Status,
		Checks:       report.Checks,
		IndexEntries: report.IndexEntries,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) buildQuery(
	w http.ResponseWriter, r *http.Request, text string, topK int, clauses []string,
) (query.Query, bool) {
	expr, err := filter.Parse(clauses)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, string(domain.KindInvalidQuery), err.Error())
		return query.Query{}, false
	}
	q, err := query.New(text, topK, expr)
	if err != nil {
		s.handleDomainError(w, r, err)
		return query.Query{}, false
	}
	return q, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:          code,
		Message:       message,
		CorrelationID: domain.CorrelationID(r.Context()),
	})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// Client errors expose the full cause; provider errors only the sentinel text.
func sentinelHandler(sentinel error, status int, detailed bool) errorHandler {
	return func(w http.ResponseWriter, r *http.Request, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		msg := sentinel.Error()
		if detailed {
			msg = causeMessage(err)
		}
		writeError(w, r, status, string(domain.KindOf(err)), msg)
		return true
	}
}

// causeMessage strips the kind and correlation decoration of a domain.Error.
func causeMessage(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Err.Error()
	}
	return err.Error()
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, r, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, r, http.StatusInternalServerError, string(domain.KindInternal), "internal error")
}
