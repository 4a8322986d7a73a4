// Package chi exposes the HTTP API of the tutor service.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/physical-ai/tutor-api/internal/domain"
	"github.com/physical-ai/tutor-api/internal/logger"
	"github.com/physical-ai/tutor-api/internal/metrics"
	"github.com/physical-ai/tutor-api/internal/ratelimit"
	"github.com/physical-ai/tutor-api/internal/repository/history"
	"github.com/physical-ai/tutor-api/internal/usecase/chat"
	healthuc "github.com/physical-ai/tutor-api/internal/usecase/health"
	"github.com/physical-ai/tutor-api/internal/usecase/translate"
	"github.com/physical-ai/tutor-api/internal/version"
)

// userIDHeader identifies the learner. Authentication happens upstream;
// this service trusts the header.
const userIDHeader = "X-User-ID"

const defaultHistoryLimit = 50

type errorCode string

const (
	codeBadRequest          errorCode = "bad_request"
	codeValidationFailed    errorCode = "validation_failed"
	codeRateLimited         errorCode = "rate_limited"
	codeUnsupportedLanguage errorCode = "unsupported_language"
	codeGenerationFailed    errorCode = "generation_failed"
	codeEmbeddingProvider   errorCode = "embedding_provider_error"
	codeInternalError       errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server routes HTTP requests to the chat, translate, and health use cases.
type Server struct {
	chat          *chat.Service
	translate     *translate.Service
	health        *healthuc.Service
	limiter       *ratelimit.Limiter
	apiKeys       []string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	chatSvc *chat.Service,
	translateSvc *translate.Service,
	healthSvc *healthuc.Service,
	limiter *ratelimit.Limiter,
	apiKeys []string,
	log *zap.Logger,
) *Server {
	s := &Server{
		chat:      chatSvc,
		translate: translateSvc,
		health:    healthSvc,
		limiter:   limiter,
		apiKeys:   apiKeys,
		logger:    log,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidChapter, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrUnsupportedLanguage, http.StatusBadRequest, codeUnsupportedLanguage),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrGenerationFailed, http.StatusInternalServerError, codeGenerationFailed),
	}
	return s
}

// Router builds the middleware stack and route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())
	r.Use(s.requestLogger())
	r.Use(RateLimitMiddleware(s.limiter, s.logger))
	r.Use(BearerAuthMiddleware(s.apiKeys))

	r.Get("/", s.handleRoot)
	r.Get("/api/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/", s.handleChat)
		r.Get("/history", s.handleHistory)
		r.Post("/translate", s.handleTranslate)
	})

	return r
}

func (s *Server) requestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := s.logger.With(
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			ctx := logger.ContextWithLogger(r.Context(), reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type chatRequest struct {
	Message       string `json:"message"`
	SelectedText  string `json:"selected_text,omitempty"`
	ChapterNumber int    `json:"chapter_number,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Message string          `json:"message"`
	Sources []domain.Source `json:"sources"`
}

// handleChat handles POST /api/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Message == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "message is required")
		return
	}
	if !domain.ValidChapter(req.ChapterNumber) {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			"chapter_number must be between 1 and 13")
		return
	}

	q := domain.Query{
		Message:      req.Message,
		SelectedText: req.SelectedText,
		Chapter:      req.ChapterNumber,
	}

	answer, err := s.chat.Ask(r.Context(), r.Header.Get(userIDHeader), req.SessionID, q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	sources := answer.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Message: answer.Message,
		Sources: sources,
	})
}

type historyResponse struct {
	Items []history.Interaction `json:"items"`
}

// handleHistory handles GET /api/chat/history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "session_id is required")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "limit must be a positive integer")
			return
		}
		limit = n
	}

	items, err := s.chat.History(r.Context(), r.Header.Get(userIDHeader), sessionID, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if items == nil {
		items = []history.Interaction{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Items: items})
}

type translateRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
}

type translateResponse struct {
	Translated string `json:"translated"`
}

// handleTranslate handles POST /api/chat/translate.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Text == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "text is required")
		return
	}
	if req.TargetLang == "" {
		req.TargetLang = translate.LanguageUrdu
	}
	if !translate.Supported(req.TargetLang) {
		writeError(w, http.StatusBadRequest, codeUnsupportedLanguage,
			"target_lang must be \"ur\"")
		return
	}

	out, err := s.translate.Translate(r.Context(), req.Text, req.TargetLang)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, translateResponse{Translated: out})
}

// handleRoot handles GET /.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "tutor-api",
		"version": version.Version,
	})
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidChapter,
		domain.ErrUnsupportedLanguage,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
		domain.ErrGenerationFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}
