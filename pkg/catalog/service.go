// Package catalog serves storefront catalog reads through the cache.
//
// Each read follows the same pattern: return the cached value while it is
// valid, otherwise fetch from the Source, write the result back under the same
// key and return it. A cache malfunction never fails a read; a source failure
// is returned and leaves the cache untouched.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Sternrassler/storefront-cache/pkg/cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultNewArrivalsLimit caps the new arrivals list.
	DefaultNewArrivalsLimit = 8

	// DefaultFetchTimeout bounds a source fetch shared by concurrent readers.
	DefaultFetchTimeout = 30 * time.Second
)

// Service exposes cached catalog reads.
type Service struct {
	source      Source
	store       *cache.Store
	products    cache.Slot[[]Product]
	newArrivals cache.Slot[[]Product]
	timeSale    cache.Slot[TimeSale]

	newArrivalsLimit int
	fetchTimeout     time.Duration
	productsTTL      cache.Lifetime
	newArrivalsTTL   cache.Lifetime
	timeSaleTTL      cache.Lifetime

	group  singleflight.Group
	logger zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithProductsTTL overrides the lifetime of the full product list (default MEDIUM).
func WithProductsTTL(ttl cache.Lifetime) Option {
	return func(s *Service) { s.productsTTL = ttl }
}

// WithNewArrivalsTTL overrides the lifetime of the new arrivals list (default MEDIUM).
func WithNewArrivalsTTL(ttl cache.Lifetime) Option {
	return func(s *Service) { s.newArrivalsTTL = ttl }
}

// WithTimeSaleTTL overrides the lifetime of the current time sale (default SHORT).
func WithTimeSaleTTL(ttl cache.Lifetime) Option {
	return func(s *Service) { s.timeSaleTTL = ttl }
}

// WithNewArrivalsLimit caps the number of new arrivals returned.
func WithNewArrivalsLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.newArrivalsLimit = n
		}
	}
}

// WithFetchTimeout bounds shared source fetches. A shared fetch outlives the
// caller that started it.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a catalog service reading from source through store.
func NewService(source Source, store *cache.Store, opts ...Option) *Service {
	if source == nil {
		panic("catalog source cannot be nil")
	}
	if store == nil {
		panic("cache store cannot be nil")
	}

	s := &Service{
		source:           source,
		store:            store,
		newArrivalsLimit: DefaultNewArrivalsLimit,
		fetchTimeout:     DefaultFetchTimeout,
		productsTTL:      cache.PolicyMedium,
		newArrivalsTTL:   cache.PolicyMedium,
		timeSaleTTL:      cache.PolicyShort,
		logger:           log.With().Str("component", "catalog").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.products = cache.NewSlot[[]Product](store, cache.KeyProductsAll, s.productsTTL)
	s.newArrivals = cache.NewSlot[[]Product](store, cache.KeyNewArrivals, s.newArrivalsTTL)
	s.timeSale = cache.NewSlot[TimeSale](store, cache.KeyTimeSale, s.timeSaleTTL)
	return s
}

// Store returns the cache store the service reads through.
func (s *Service) Store() *cache.Store {
	return s.store
}

// AllProducts returns the full product list.
func (s *Service) AllProducts(ctx context.Context) ([]Product, error) {
	return fetchThrough(ctx, s, s.products, s.source.ListProducts)
}

// NewArrivals returns products flagged new, newest first, capped at the
// configured limit. On a miss it is derived from AllProducts.
func (s *Service) NewArrivals(ctx context.Context) ([]Product, error) {
	return fetchThrough(ctx, s, s.newArrivals, func(ctx context.Context) ([]Product, error) {
		all, err := s.AllProducts(ctx)
		if err != nil {
			return nil, err
		}
		return selectNewArrivals(all, s.newArrivalsLimit), nil
	})
}

// TimeSale returns the current time sale, or ErrNoTimeSale.
func (s *Service) TimeSale(ctx context.Context) (TimeSale, error) {
	return fetchThrough(ctx, s, s.timeSale, s.source.CurrentTimeSale)
}

// TimeSaleProducts returns the products of the current time sale, in sale order.
// It joins two independently cached values, so until both expire it may
// reflect a sale and a product list fetched at different times. Sale ids with
// no matching product are skipped.
func (s *Service) TimeSaleProducts(ctx context.Context) ([]Product, error) {
	sale, err := s.TimeSale(ctx)
	if err != nil {
		return nil, err
	}
	all, err := s.AllProducts(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Product, len(all))
	for _, p := range all {
		byID[p.ID] = p
	}

	products := make([]Product, 0, len(sale.ProductIDs))
	for _, id := range sale.ProductIDs {
		p, ok := byID[id]
		if !ok {
			s.logger.Debug().Str("product_id", id).Str("sale_id", sale.ID).Msg("Time sale product not in catalog")
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// Refresh refetches the catalog and the time sale from the source and
// overwrites the cached values, pre-warming the new arrivals subset.
// Nothing is written when the product fetch fails.
func (s *Service) Refresh(ctx context.Context) error {
	start := time.Now()

	products, err := s.source.ListProducts(ctx)
	if err != nil {
		Refreshes.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Msg("Catalog refresh failed")
		return fmt.Errorf("refresh products: %w", err)
	}
	s.products.Set(ctx, products)
	s.newArrivals.Set(ctx, selectNewArrivals(products, s.newArrivalsLimit))

	sale, err := s.source.CurrentTimeSale(ctx)
	switch {
	case errors.Is(err, ErrNoTimeSale):
		s.timeSale.Invalidate(ctx)
	case err != nil:
		Refreshes.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Msg("Time sale refresh failed")
		return fmt.Errorf("refresh time sale: %w", err)
	default:
		s.timeSale.Set(ctx, sale)
	}

	Refreshes.WithLabelValues("ok").Inc()
	s.logger.Info().
		Int("products", len(products)).
		Dur("duration", time.Since(start)).
		Msg("Catalog refreshed")
	return nil
}

// Invalidate drops every cached catalog value.
func (s *Service) Invalidate(ctx context.Context) {
	s.products.Invalidate(ctx)
	s.newArrivals.Invalidate(ctx)
	s.timeSale.Invalidate(ctx)
	s.logger.Info().Msg("Catalog cache invalidated")
}

// fetchThrough implements the cached read. Concurrent misses on the same key
// share one fetch. The fetch runs detached from the caller that started it, so
// one reader giving up does not fail the others; each caller still returns as
// soon as its own context is done.
func fetchThrough[T any](ctx context.Context, s *Service, slot cache.Slot[T], fetch cache.FetchFn[T]) (T, error) {
	var zero T
	if value, ok := slot.Get(ctx); ok {
		return value, nil
	}

	resource := slot.Key().String()
	ch := s.group.DoChan(resource, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()

		value, err := fetch(fetchCtx)
		if err != nil {
			SourceFetches.WithLabelValues(resource, "error").Inc()
			return nil, err
		}
		SourceFetches.WithLabelValues(resource, "ok").Inc()
		slot.Set(fetchCtx, value)
		return value, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			SharedFetches.WithLabelValues(resource).Inc()
		}
		if res.Err != nil {
			if !errors.Is(res.Err, ErrNoTimeSale) {
				s.logger.Error().Err(res.Err).Str("key", resource).Msg("Catalog fetch failed")
			}
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// selectNewArrivals picks products flagged new, newest first, at most limit.
func selectNewArrivals(products []Product, limit int) []Product {
	arrivals := make([]Product, 0, limit)
	for _, p := range products {
		if p.IsNew {
			arrivals = append(arrivals, p)
		}
	}
	sort.SliceStable(arrivals, func(i, j int) bool {
		return arrivals[i].CreatedAt.After(arrivals[j].CreatedAt)
	})
	if limit > 0 && len(arrivals) > limit {
		arrivals = arrivals[:limit]
	}
	return arrivals
}
