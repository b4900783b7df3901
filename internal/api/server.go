// Package api exposes the HTTP interface for the roast service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siteroast/siteroast/internal/metrics"
	"github.com/siteroast/siteroast/internal/ratelimit"
	"github.com/siteroast/siteroast/internal/roast"
)

// recentLimit is how many records GET /roasts returns.
const recentLimit = 3

// Server wires HTTP handlers to the roast service and record store.
type Server struct {
	router  chi.Router
	svc     *roast.Service
	records roast.RecordStore
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	svc *roast.Service,
	records roast.RecordStore,
	limiter *ratelimit.Limiter,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:     svc,
		records: records,
		limiter: limiter,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/health", s.health)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.Handler().ServeHTTP(w, req)
	})

	r.With(s.rateLimitMiddleware).Post("/roast", s.submitRoast)
	r.Route("/roasts", func(r chi.Router) {
		r.Get("/", s.listRecent)
		r.Get("/{id}", s.getRoast)
		r.Get("/mine/{visitorId}", s.listMine)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type roastRequest struct {
	URL       string `json:"url"`
	VisitorID string `json:"visitorId"`
}

func (s *Server) submitRoast(w http.ResponseWriter, r *http.Request) {
	var req roastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.VisitorID != "" {
		if _, err := uuid.Parse(req.VisitorID); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid visitor id")
			return
		}
	}

	record, err := s.svc.Roast(r.Context(), req.URL, req.VisitorID)
	if err != nil {
		status, msg := classify(err)
		metrics.ObserveRoast(outcomeLabel(err))
		s.logger.Error("roast failed",
			zap.String("url", req.URL),
			zap.Int("status", status),
			zap.Error(err),
		)
		s.writeError(w, status, msg)
		return
	}
	metrics.ObserveRoast("success")
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) listRecent(w http.ResponseWriter, r *http.Request) {
	records, err := s.records.ListRecent(r.Context(), recentLimit)
	if err != nil {
		s.logger.Error("list recent roasts failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, msgUnexpected)
		return
	}
	if records == nil {
		records = []roast.Record{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) getRoast(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid roast id")
		return
	}
	record, err := s.records.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, roast.ErrRecordNotFound) {
			s.writeError(w, http.StatusNotFound, "roast not found")
			return
		}
		s.logger.Error("get roast failed", zap.String("id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, msgUnexpected)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) listMine(w http.ResponseWriter, r *http.Request) {
	visitorID := chi.URLParam(r, "visitorId")
	if _, err := uuid.Parse(visitorID); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid visitor id")
		return
	}
	records, err := s.records.ListByVisitor(r.Context(), visitorID)
	if err != nil {
		s.logger.Error("list visitor roasts failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, msgUnexpected)
		return
	}
	if len(records) == 0 {
		s.writeError(w, http.StatusNotFound, "no roasts for this visitor")
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := s.limiter.Check(clientAddr(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.Reset.Unix(), 10))
		if !decision.Allowed {
			metrics.ObserveRateLimited()
			retryAfter := int(time.Until(decision.Reset).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			s.writeError(w, http.StatusTooManyRequests, msgRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientAddr extracts the client network address, trusting the first
// X-Forwarded-For hop when present (the service runs behind a proxy).
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, msgUnexpected)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func outcomeLabel(err error) string {
	switch roast.KindOf(err) {
	case roast.KindInputValidation:
		return "input_validation"
	case roast.KindPrivacyViolation:
		return "privacy_violation"
	case roast.KindCaptureUnresolvable, roast.KindCaptureTimeout, roast.KindCaptureBlocked:
		return "capture_failure"
	case roast.KindGeneration:
		return "generation_failure"
	case roast.KindStorage:
		return "storage_failure"
	case roast.KindPersistence:
		return "persistence_failure"
	default:
		return "unknown"
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
