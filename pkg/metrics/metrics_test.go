package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Sternrassler/storefront-cache/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}

	if Gatherer != prometheus.DefaultGatherer {
		t.Error("Gatherer should be the default Prometheus gatherer")
	}
}

func TestHandler(t *testing.T) {
	cache.CacheHits.WithLabelValues(cache.KeyProductsAll.String()).Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Handler() status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	output := string(body)
	if !strings.Contains(output, "# HELP") || !strings.Contains(output, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	if !strings.Contains(output, `storefront_cache_hits_total{key="products_all"}`) {
		t.Errorf("Expected cache hit counter in output, got %d bytes without it", len(output))
	}
}
