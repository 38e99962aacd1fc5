package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/storefront-cache/pkg/cache"
	"github.com/Sternrassler/storefront-cache/pkg/catalog"
	"github.com/Sternrassler/storefront-cache/pkg/config"
	"github.com/Sternrassler/storefront-cache/pkg/docstore"
	"github.com/Sternrassler/storefront-cache/pkg/httpapi"
	"github.com/Sternrassler/storefront-cache/pkg/logging"
	"github.com/Sternrassler/storefront-cache/pkg/metrics"
	"github.com/Sternrassler/storefront-cache/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "storefront-api: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// run serves the API until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Str("cache_backend", cfg.CacheBackend).
			Str("namespace", cfg.CacheNamespace).
			Str("backend_url", cfg.BackendURL).
			Msg("Starting storefront API")
		errCh <- server.ListenAndServe()
	}()

	go a.warm(ctx)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// app is the wired service graph.
type app struct {
	handler http.Handler
	catalog *catalog.Service
	logger  zerolog.Logger
	closers []func() error
}

// newApp wires config -> cache backend -> store -> docstore -> catalog -> API.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{logger: logging.NewLogger("main")}

	backend, redisClient, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		a.closers = append(a.closers, redisClient.Close)
	}
	if mem, ok := backend.(*cache.MemoryBackend); ok {
		a.closers = append(a.closers, mem.Close)
	}

	store := cache.NewStore(backend,
		cache.WithNamespace(cfg.CacheNamespace),
		cache.WithPolicyTable(cfg.Policies),
	)

	dsCfg := cfg.Docstore(ctx)
	if cfg.RateLimit {
		var state ratelimit.StateStore = ratelimit.NewMemoryStore()
		if redisClient != nil {
			state = ratelimit.NewRedisStore(redisClient, "")
		}
		dsCfg.Limiter = ratelimit.NewTracker(state, ratelimit.WithThrottleDelay(cfg.RateLimitThrottle))
	}

	client, err := docstore.New(dsCfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create docstore client: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	a.catalog = catalog.NewService(catalog.NewDocumentSource(client), store,
		catalog.WithNewArrivalsLimit(cfg.NewArrivalsLimit),
		catalog.WithFetchTimeout(cfg.RequestTimeout),
	)

	api := httpapi.New(a.catalog, store,
		httpapi.WithMetricsHandler(metrics.Handler()),
		httpapi.WithRequestTimeout(cfg.RequestTimeout),
	)

	var ping func(context.Context) error
	if redisClient != nil {
		ping = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ready", readyHandler(ping))
	mux.Handle("/", api.Handler())
	a.handler = mux

	return a, nil
}

// newBackend builds the configured cache backend. The Redis client is
// returned so it can be shared with the rate limiter.
func newBackend(ctx context.Context, cfg config.Config) (cache.Backend, *redis.Client, error) {
	switch cfg.CacheBackend {
	case config.BackendRedis:
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			redisClient.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return cache.NewRedisBackend(redisClient, cfg.SessionTTL), redisClient, nil
	case config.BackendNone:
		return cache.NoopBackend{}, nil, nil
	default:
		return cache.NewMemoryBackend(cfg.Memory()), nil, nil
	}
}

// warm pre-populates the cache. A failure only means the first reads miss.
func (a *app) warm(ctx context.Context) {
	if err := a.catalog.Refresh(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Initial catalog refresh failed")
	}
}

// Close releases the backend and client connections.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("Close failed")
		}
	}
}

// readyHandler reports 503 while the shared cache backend is unreachable.
func readyHandler(ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				http.Error(w, "cache backend unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}
