// Package chi is the HTTP read API over the items service. Handlers stay
// thin: parse, delegate, map sentinel errors to statuses.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/store"
)

const (
	popularCacheTTL = 60 * time.Second

	defaultPopularMinPct = 80.0
	defaultPopularMaxPct = 100.0
)

// ItemService is the use-case surface the API exposes.
type ItemService interface {
	List(ctx context.Context, category domain.Category, limit int, cursor string) (
		items []domain.Item, nextCursor string, err error,
	)
	Fresh(ctx context.Context, category domain.Category, window time.Duration, limit int) ([]domain.Item, error)
	Popular(ctx context.Context, minPct, maxPct float64, limit int) ([]domain.Item, error)
	Get(ctx context.Context, id string) (domain.Item, error)
	Search(ctx context.Context, query string, limit int) ([]domain.Item, error)
	RecordView(ctx context.Context, id string) (int64, error)
	RecordClick(ctx context.Context, id string) (int64, error)
}

// HealthChecker reports backend connectivity.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server carries the handler dependencies.
type Server struct {
	items  ItemService
	health HealthChecker
	cache  store.Cache
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(items ItemService, health HealthChecker, logger *zap.Logger) *Server {
	return &Server{items: items, health: health, logger: logger}
}

// WithCache attaches the response cache used by the popular endpoint.
func (s *Server) WithCache(cache store.Cache) *Server {
	s.cache = cache
	return s
}

// Routes builds the route tree. Middleware is the composition root's job.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/items", s.listItems)
		r.Get("/items/popular", s.popularItems)
		r.Get("/items/{id}", s.getItem)
		r.Post("/items/{id}/view", s.recordView)
		r.Post("/items/{id}/click", s.recordClick)
		r.Get("/categories", s.listCategories)
		r.Get("/search", s.searchItems)
	})
	r.Get("/healthz", s.healthz)
	r.Get("/metrics", s.metrics)
	return r
}

type listResponse struct {
	Items      []domain.Item `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

// listItems handles GET /api/items. With fresh_minutes it serves the
// trailing window instead of a cursor page.
func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	category, ok := s.categoryParam(w, r)
	if !ok {
		return
	}
	limit := intParam(r, "limit")

	if raw := r.URL.Query().Get("fresh_minutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "fresh_minutes must be a positive integer")
			return
		}
		items, err := s.items.Fresh(r.Context(), category, time.Duration(minutes)*time.Minute, limit)
		if err != nil {
			s.handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse{Items: emptyAsSlice(items)})
		return
	}

	items, next, err := s.items.List(r.Context(), category, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: emptyAsSlice(items), NextCursor: next})
}

// popularItems handles GET /api/items/popular with a short response cache.
func (s *Server) popularItems(w http.ResponseWriter, r *http.Request) {
	minPct := floatParam(r, "min", defaultPopularMinPct)
	maxPct := floatParam(r, "max", defaultPopularMaxPct)
	limit := intParam(r, "limit")

	cacheKey := "popular:" + strconv.FormatFloat(minPct, 'f', -1, 64) +
		":" + strconv.FormatFloat(maxPct, 'f', -1, 64) +
		":" + strconv.Itoa(limit)

	if s.cache != nil {
		if body, err := s.cache.CacheGet(r.Context(), cacheKey); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return
		}
	}

	items, err := s.items.Popular(r.Context(), minPct, maxPct, limit)
	if err != nil {
		s.handleError(w, err)
		return
	}

	body, err := json.Marshal(listResponse{Items: emptyAsSlice(items)})
	if err != nil {
		s.handleError(w, err)
		return
	}
	if s.cache != nil {
		if err := s.cache.CacheSet(r.Context(), cacheKey, body, popularCacheTTL); err != nil {
			s.logger.Warn("popular cache write failed", zap.Error(err))
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// getItem handles GET /api/items/{id}.
func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.items.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// recordView handles POST /api/items/{id}/view.
func (s *Server) recordView(w http.ResponseWriter, r *http.Request) {
	count, err := s.items.RecordView(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: count})
}

// recordClick handles POST /api/items/{id}/click.
func (s *Server) recordClick(w http.ResponseWriter, r *http.Request) {
	count, err := s.items.RecordClick(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: count})
}

// listCategories handles GET /api/categories.
func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.CategoryLabels())
}

// searchItems handles GET /api/search.
func (s *Server) searchItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "q is required")
		return
	}

	items, err := s.items.Search(r.Context(), query, intParam(r, "limit"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: emptyAsSlice(items)})
}

// healthz handles GET /healthz.
func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.health.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// metrics handles GET /metrics.
func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// --- helpers ---

// categoryParam parses the optional category query param; writes 400 and
// returns false when the value is unknown.
func (s *Server) categoryParam(w http.ResponseWriter, r *http.Request) (domain.Category, bool) {
	raw := r.URL.Query().Get("category")
	if raw == "" {
		return "", true
	}
	category, err := domain.ParseCategory(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_category", "unknown category: "+raw)
		return "", false
	}
	return category, true
}

// intParam returns the query param as an int, zero on absence or garbage.
// The store clamps zero to its default page size.
func intParam(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}

func floatParam(r *http.Request, name string, fallback float64) float64 {
	v, err := strconv.ParseFloat(r.URL.Query().Get(name), 64)
	if err != nil {
		return fallback
	}
	return v
}

// emptyAsSlice keeps list payloads as [] instead of null.
func emptyAsSlice(items []domain.Item) []domain.Item {
	if items == nil {
		return []domain.Item{}
	}
	return items
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// handleError maps sentinel and storage errors to statuses. Client mistakes
// never surface as 5xx; storage trouble is 503, not 500.
func (s *Server) handleError(w http.ResponseWriter, err error) {
	var storeErr *store.Error
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "item_not_found", "item not found")
	case errors.Is(err, domain.ErrInvalidCategory):
		writeError(w, http.StatusBadRequest, "invalid_category", "unknown category")
	case errors.Is(err, domain.ErrUnsupported):
		writeError(w, http.StatusNotImplemented, "not_implemented", "not supported by this backend")
	case errors.As(err, &storeErr):
		s.logger.Error("storage error", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "storage unavailable")
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
