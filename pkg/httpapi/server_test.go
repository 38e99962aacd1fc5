package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/storefront-cache/pkg/cache"
	"github.com/Sternrassler/storefront-cache/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type stubSource struct {
	mu          sync.Mutex
	products    []catalog.Product
	sale        *catalog.TimeSale
	productsErr error
	calls       int
}

func (s *stubSource) ListProducts(context.Context) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.productsErr != nil {
		return nil, s.productsErr
	}
	return append([]catalog.Product(nil), s.products...), nil
}

func (s *stubSource) CurrentTimeSale(context.Context) (catalog.TimeSale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sale == nil {
		return catalog.TimeSale{}, catalog.ErrNoTimeSale
	}
	return *s.sale, nil
}

func (s *stubSource) productCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestServer(t *testing.T, src *stubSource, opts ...Option) (http.Handler, *cache.Store) {
	t.Helper()
	backend := cache.NewMemoryBackend(cache.MemoryConfig{})
	t.Cleanup(func() { backend.Close() })

	store := cache.NewStore(backend, cache.WithLogger(zerolog.Nop()))
	svc := catalog.NewService(src, store, catalog.WithLogger(zerolog.Nop()))

	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	return New(svc, store, opts...).Handler(), store
}

func sampleSource() *stubSource {
	return &stubSource{
		products: []catalog.Product{
			{ID: "p1", Name: "Linen Shirt", Category: "tops", Price: 4900, CreatedAt: created},
			{ID: "p2", Name: "Canvas Tote", Category: "bags", Price: 2500, IsNew: true, CreatedAt: created.Add(time.Hour)},
		},
		sale: &catalog.TimeSale{
			ID:              "spring",
			Title:           "Spring Sale",
			DiscountPercent: 20,
			StartsAt:        created,
			EndsAt:          created.Add(48 * time.Hour),
			ProductIDs:      []string{"p2"},
		},
	}
}

func do(t *testing.T, h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew_Panics(t *testing.T) {
	store := cache.NewStore(cache.NoopBackend{})
	svc := catalog.NewService(sampleSource(), store)

	assert.Panics(t, func() { New(nil, store) })
	assert.Panics(t, func() { New(svc, nil) })
}

func TestServer_Health(t *testing.T) {
	h, _ := newTestServer(t, sampleSource())

	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestServer_Products(t *testing.T) {
	src := sampleSource()
	h, _ := newTestServer(t, src)

	rec := do(t, h, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	var got []catalog.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, src.products, got)

	do(t, h, http.MethodGet, "/api/products", nil)
	assert.Equal(t, 1, src.productCalls(), "second read is served from cache")
}

func TestServer_NewArrivals(t *testing.T) {
	h, _ := newTestServer(t, sampleSource())

	rec := do(t, h, http.MethodGet, "/api/products/new-arrivals", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []catalog.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].ID)
}

func TestServer_TimeSale(t *testing.T) {
	src := sampleSource()
	h, _ := newTestServer(t, src)

	rec := do(t, h, http.MethodGet, "/api/time-sale", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sale catalog.TimeSale
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sale))
	assert.Equal(t, "spring", sale.ID)

	rec = do(t, h, http.MethodGet, "/api/time-sale/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var products []catalog.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Len(t, products, 1)
	assert.Equal(t, "p2", products[0].ID)
}

func TestServer_NoTimeSale(t *testing.T) {
	src := sampleSource()
	src.sale = nil
	h, _ := newTestServer(t, src)

	rec := do(t, h, http.MethodGet, "/api/time-sale", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), catalog.ErrNoTimeSale.Error())
}

func TestServer_SourceFailure(t *testing.T) {
	src := sampleSource()
	src.productsErr = errors.New("connection refused")
	h, _ := newTestServer(t, src)

	rec := do(t, h, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"catalog source unavailable"}`, rec.Body.String())
}

func TestServer_SourceTimeout(t *testing.T) {
	src := sampleSource()
	src.productsErr = context.DeadlineExceeded
	h, _ := newTestServer(t, src)

	rec := do(t, h, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestServer_ConditionalGet(t *testing.T) {
	h, _ := newTestServer(t, sampleSource())

	first := do(t, h, http.MethodGet, "/api/products", nil)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	before := testutil.ToFloat64(NotModifiedResponses)

	tests := []struct {
		name        string
		ifNoneMatch string
		wantStatus  int
	}{
		{name: "matching etag", ifNoneMatch: etag, wantStatus: http.StatusNotModified},
		{name: "weak matching etag", ifNoneMatch: "W/" + etag, wantStatus: http.StatusNotModified},
		{name: "list containing etag", ifNoneMatch: `"other", ` + etag, wantStatus: http.StatusNotModified},
		{name: "wildcard", ifNoneMatch: "*", wantStatus: http.StatusNotModified},
		{name: "stale etag", ifNoneMatch: `"0"`, wantStatus: http.StatusOK},
	}

	notModified := 0
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/products", http.Header{"If-None-Match": {tt.ifNoneMatch}})
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, etag, rec.Header().Get("ETag"))
			if tt.wantStatus == http.StatusNotModified {
				notModified++
				assert.Empty(t, rec.Body.String())
			}
		})
	}

	assert.Equal(t, float64(notModified), testutil.ToFloat64(NotModifiedResponses)-before)
}

func TestServer_Refresh(t *testing.T) {
	src := sampleSource()
	h, store := newTestServer(t, src)

	rec := do(t, h, http.MethodPost, "/admin/cache/refresh", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	for _, key := range cache.Keys() {
		_, ok := store.Inspect(context.Background(), key)
		assert.True(t, ok, "%s populated by refresh", key)
	}

	do(t, h, http.MethodGet, "/api/products", nil)
	assert.Equal(t, 1, src.productCalls())
}

func TestServer_RefreshFailure(t *testing.T) {
	src := sampleSource()
	src.productsErr = errors.New("boom")
	h, _ := newTestServer(t, src)

	rec := do(t, h, http.MethodPost, "/admin/cache/refresh", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestServer_ClearAndInvalidate(t *testing.T) {
	src := sampleSource()
	h, store := newTestServer(t, src)
	ctx := context.Background()

	do(t, h, http.MethodPost, "/admin/cache/refresh", nil)

	rec := do(t, h, http.MethodDelete, "/admin/cache/time_sale", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := store.Inspect(ctx, cache.KeyTimeSale)
	assert.False(t, ok)
	_, ok = store.Inspect(ctx, cache.KeyProductsAll)
	assert.True(t, ok, "other keys untouched")

	rec = do(t, h, http.MethodDelete, "/admin/cache", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	for _, key := range cache.Keys() {
		_, ok := store.Inspect(ctx, key)
		assert.False(t, ok, "%s cleared", key)
	}
}

func TestServer_UnknownKey(t *testing.T) {
	h, _ := newTestServer(t, sampleSource())

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := do(t, h, method, "/admin/cache/not_a_key", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
	}
}

func TestServer_Inspect(t *testing.T) {
	h, _ := newTestServer(t, sampleSource())

	rec := do(t, h, http.MethodGet, "/admin/cache/products_all", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "nothing cached yet")

	do(t, h, http.MethodGet, "/api/products", nil)

	rec = do(t, h, http.MethodGet, "/admin/cache/products_all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var got entryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, cache.KeyProductsAll, got.Key)
	assert.Equal(t, (5 * time.Minute).Milliseconds(), got.TTLMs)
	assert.False(t, got.Expired)
	assert.Positive(t, got.SizeBytes)
	assert.LessOrEqual(t, got.RemainingMs, got.TTLMs)
}

func TestServer_RequestID(t *testing.T) {
	h, _ := newTestServer(t, sampleSource())

	tests := []struct {
		name     string
		incoming string
		echoed   bool
	}{
		{name: "echoes caller id", incoming: "req-123", echoed: true},
		{name: "generates when missing", incoming: "", echoed: false},
		{name: "replaces oversized id", incoming: strings.Repeat("x", maxRequestIDLength+1), echoed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.incoming != "" {
				header.Set(RequestIDHeader, tt.incoming)
			}
			rec := do(t, h, http.MethodGet, "/health", header)

			got := rec.Header().Get(RequestIDHeader)
			require.NotEmpty(t, got)
			if tt.echoed {
				assert.Equal(t, tt.incoming, got)
			} else {
				assert.NotEqual(t, tt.incoming, got)
				assert.Len(t, got, 36)
			}
		})
	}
}

func TestServer_RouteMetrics(t *testing.T) {
	h, _ := newTestServer(t, sampleSource())

	counter := httpRequestsTotal.WithLabelValues("GET /health", "200")
	before := testutil.ToFloat64(counter)
	do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))

	unmatched := httpRequestsTotal.WithLabelValues("unmatched", "404")
	before = testutil.ToFloat64(unmatched)
	do(t, h, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(unmatched))
}

func TestServer_MetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t, sampleSource())
	rec := do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "not mounted without a handler")

	h, _ = newTestServer(t, sampleSource(), WithMetricsHandler(promhttp.Handler()))
	do(t, h, http.MethodGet, "/health", nil)

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_http_requests_total")
}

func TestMatchesETag(t *testing.T) {
	tests := []struct {
		header string
		etag   string
		want   bool
	}{
		{header: "", etag: `"a"`, want: false},
		{header: `"a"`, etag: `"a"`, want: true},
		{header: `"b"`, etag: `"a"`, want: false},
		{header: `W/"a"`, etag: `"a"`, want: true},
		{header: `"b" , "a"`, etag: `"a"`, want: true},
		{header: " * ", etag: `"a"`, want: true},
	}

	for _, tt := range tests {
		if got := matchesETag(tt.header, tt.etag); got != tt.want {
			t.Errorf("matchesETag(%q, %q) = %v, want %v", tt.header, tt.etag, got, tt.want)
		}
	}
}

func TestETag_Stable(t *testing.T) {
	a := ETag([]byte(`[{"id":"p1"}]`))
	b := ETag([]byte(`[{"id":"p1"}]`))
	c := ETag([]byte(`[{"id":"p2"}]`))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, `"`) && strings.HasSuffix(a, `"`))
}
