// Package httpapi exposes the cached catalog and cache administration over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/storefront-cache/pkg/cache"
	"github.com/Sternrassler/storefront-cache/pkg/catalog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Catalog is the read surface served by the API. *catalog.Service implements it.
type Catalog interface {
	AllProducts(ctx context.Context) ([]catalog.Product, error)
	NewArrivals(ctx context.Context) ([]catalog.Product, error)
	TimeSale(ctx context.Context) (catalog.TimeSale, error)
	TimeSaleProducts(ctx context.Context) ([]catalog.Product, error)
	Refresh(ctx context.Context) error
}

var _ Catalog = (*catalog.Service)(nil)

// Server routes storefront API requests.
type Server struct {
	catalog        Catalog
	store          *cache.Store
	metrics        http.Handler
	requestTimeout time.Duration
	logger         zerolog.Logger
	mux            *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the base request logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetricsHandler mounts handler at GET /metrics.
func WithMetricsHandler(handler http.Handler) Option {
	return func(s *Server) { s.metrics = handler }
}

// WithRequestTimeout bounds the time a handler may spend on catalog reads.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// New creates the API server.
func New(c Catalog, store *cache.Store, opts ...Option) *Server {
	if c == nil {
		panic("catalog cannot be nil")
	}
	if store == nil {
		panic("cache store cannot be nil")
	}

	s := &Server{
		catalog:        c,
		store:          store,
		requestTimeout: 30 * time.Second,
		logger:         log.With().Str("component", "httpapi").Logger(),
		mux:            http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s
}

// Handler returns the root handler with request tracing applied.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.mux)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/products", s.handleProducts)
	s.mux.HandleFunc("GET /api/products/new-arrivals", s.handleNewArrivals)
	s.mux.HandleFunc("GET /api/time-sale", s.handleTimeSale)
	s.mux.HandleFunc("GET /api/time-sale/products", s.handleTimeSaleProducts)

	s.mux.HandleFunc("POST /admin/cache/refresh", s.handleRefresh)
	s.mux.HandleFunc("DELETE /admin/cache", s.handleClear)
	s.mux.HandleFunc("DELETE /admin/cache/{key}", s.handleInvalidate)
	s.mux.HandleFunc("GET /admin/cache/{key}", s.handleInspect)

	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	products, err := s.catalog.AllProducts(ctx)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, products)
}

func (s *Server) handleNewArrivals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	products, err := s.catalog.NewArrivals(ctx)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, products)
}

func (s *Server) handleTimeSale(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	sale, err := s.catalog.TimeSale(ctx)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sale)
}

func (s *Server) handleTimeSaleProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	products, err := s.catalog.TimeSaleProducts(ctx)
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, products)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	if err := s.catalog.Refresh(ctx); err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.store.Clear(r.Context())
	zerolog.Ctx(r.Context()).Info().Msg("Cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	key, err := cache.ParseKey(r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.store.Invalidate(r.Context(), key)
	zerolog.Ctx(r.Context()).Info().Str("key", key.String()).Msg("Cache key invalidated")
	w.WriteHeader(http.StatusNoContent)
}

// entryResponse is the admin view of a stored entry.
type entryResponse struct {
	Key         cache.Key `json:"key"`
	Name        string    `json:"name"`
	StoredAt    time.Time `json:"stored_at"`
	TTLMs       int64     `json:"ttl_ms"`
	RemainingMs int64     `json:"remaining_ms"`
	Expired     bool      `json:"expired"`
	SizeBytes   int       `json:"size_bytes"`
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	key, err := cache.ParseKey(r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	info, ok := s.store.Inspect(r.Context(), key)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no entry cached for %s", key))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, r, http.StatusOK, entryResponse{
		Key:         info.Key,
		Name:        info.Name,
		StoredAt:    info.StoredAt.UTC(),
		TTLMs:       info.TTL.Milliseconds(),
		RemainingMs: info.Remaining.Milliseconds(),
		Expired:     info.Expired,
		SizeBytes:   info.Size,
	})
}

// writeCatalogError maps a catalog failure to a response.
func (s *Server) writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, catalog.ErrNoTimeSale) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Catalog source request failed")
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusGatewayTimeout, "catalog source timed out")
		return
	}
	writeError(w, http.StatusBadGateway, "catalog source unavailable")
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	body, _ := json.Marshal(errorResponse{Error: msg})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}

// writeJSON writes v with an ETag derived from the encoded body. A request
// whose If-None-Match already names that ETag gets 304 with no body.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode response")
		writeError(w, http.StatusInternalServerError, "encode response")
		return
	}

	etag := ETag(body)
	w.Header().Set("ETag", etag)
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "no-cache")
	}

	if status == http.StatusOK && matchesETag(r.Header.Get("If-None-Match"), etag) {
		NotModifiedResponses.Inc()
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}
