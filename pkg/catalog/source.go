package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sternrassler/storefront-cache/pkg/docstore"
)

// Document store layout.
const (
	ProductsCollection  = "products"
	TimeSalesCollection = "time_sales"
	CurrentTimeSaleID   = "current"
)

// ErrNoTimeSale is returned when no time sale is scheduled.
var ErrNoTimeSale = errors.New("no time sale scheduled")

// Source is the source of truth for catalog data.
type Source interface {
	ListProducts(ctx context.Context) ([]Product, error)
	CurrentTimeSale(ctx context.Context) (TimeSale, error)
}

// DocumentReader reads raw documents. *docstore.Client implements it.
type DocumentReader interface {
	ListDocuments(ctx context.Context, collection string) ([]json.RawMessage, error)
	GetDocument(ctx context.Context, collection, id string) (json.RawMessage, error)
}

var _ DocumentReader = (*docstore.Client)(nil)

// DocumentSource reads the catalog from the document store.
type DocumentSource struct {
	reader DocumentReader
}

var _ Source = (*DocumentSource)(nil)

// NewDocumentSource creates a Source backed by reader.
func NewDocumentSource(reader DocumentReader) *DocumentSource {
	if reader == nil {
		panic("document reader cannot be nil")
	}
	return &DocumentSource{reader: reader}
}

// ListProducts returns every product document, in store order.
func (d *DocumentSource) ListProducts(ctx context.Context) ([]Product, error) {
	docs, err := d.reader.ListDocuments(ctx, ProductsCollection)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	products := make([]Product, 0, len(docs))
	for i, raw := range docs {
		var p Product
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode product %d: %w", i, err)
		}
		products = append(products, p)
	}
	return products, nil
}

// CurrentTimeSale returns the scheduled time sale, or ErrNoTimeSale.
func (d *DocumentSource) CurrentTimeSale(ctx context.Context) (TimeSale, error) {
	raw, err := d.reader.GetDocument(ctx, TimeSalesCollection, CurrentTimeSaleID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return TimeSale{}, ErrNoTimeSale
		}
		return TimeSale{}, fmt.Errorf("get time sale: %w", err)
	}

	var sale TimeSale
	if err := json.Unmarshal(raw, &sale); err != nil {
		return TimeSale{}, fmt.Errorf("decode time sale: %w", err)
	}
	return sale, nil
}
