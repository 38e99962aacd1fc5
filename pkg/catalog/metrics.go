package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourceFetches tracks source of truth reads after a cache miss
	SourceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_catalog_source_fetches_total",
			Help: "Total number of catalog source fetches by resource and result",
		},
		[]string{"resource", "result"}, // result: "ok", "error"
	)

	// SharedFetches tracks callers that waited on an in-flight fetch instead of starting one
	SharedFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_catalog_shared_fetches_total",
			Help: "Total number of catalog fetches served by an in-flight fetch",
		},
		[]string{"resource"},
	)

	// Refreshes tracks explicit catalog refreshes
	Refreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_catalog_refreshes_total",
			Help: "Total number of catalog refreshes by result",
		},
		[]string{"result"},
	)
)
