package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/storefront-cache/internal/testutil"
	"github.com/Sternrassler/storefront-cache/pkg/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDocumentSource(t *testing.T, mock *testutil.MockDocStore) *DocumentSource {
	t.Helper()
	cfg := docstore.DefaultConfig(mock.URL(), "StorefrontTest/1.0")
	cfg.PageSize = 2
	cfg.Retry = docstore.RetryConfig{MaxAttempts: 2, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 20 * time.Millisecond, BackoffMultiplier: 2}

	client, err := docstore.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewDocumentSource(client)
}

func TestNewDocumentSource_Panic(t *testing.T) {
	assert.Panics(t, func() { NewDocumentSource(nil) })
}

func TestDocumentSource_ListProducts(t *testing.T) {
	mock := testutil.NewMockDocStore()
	defer mock.Close()

	want := sampleProducts()
	docs := make([]any, 0, len(want))
	for _, p := range want {
		docs = append(docs, p)
	}
	mock.SetCollection(ProductsCollection, docs...)

	source := newDocumentSource(t, mock)
	got, err := source.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 2, mock.PathCount("/v1/collections/products/documents"), "four products over pages of two")
}

func TestDocumentSource_ListProductsDecodeError(t *testing.T) {
	mock := testutil.NewMockDocStore()
	defer mock.Close()

	mock.SetCollection(ProductsCollection, map[string]any{"id": "p1", "price": "not a number"})

	source := newDocumentSource(t, mock)
	_, err := source.ListProducts(context.Background())
	assert.ErrorContains(t, err, "decode product 0")
}

func TestDocumentSource_CurrentTimeSale(t *testing.T) {
	mock := testutil.NewMockDocStore()
	defer mock.Close()

	mock.SetDocument(TimeSalesCollection, CurrentTimeSaleID, sampleSale())
	source := newDocumentSource(t, mock)

	sale, err := source.CurrentTimeSale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, *sampleSale(), sale)

	mock.DeleteDocument(TimeSalesCollection, CurrentTimeSaleID)
	_, err = source.CurrentTimeSale(context.Background())
	assert.ErrorIs(t, err, ErrNoTimeSale)
}

func TestDocumentSource_CurrentTimeSaleServerError(t *testing.T) {
	mock := testutil.NewMockDocStore()
	defer mock.Close()

	mock.SetResponse("/v1/collections/time_sales/documents/current", testutil.NewServerErrorResponse())
	source := newDocumentSource(t, mock)

	_, err := source.CurrentTimeSale(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoTimeSale)
	assert.ErrorIs(t, err, docstore.ErrRetryExhausted)
}

func TestTimeSale_Active(t *testing.T) {
	sale := sampleSale()

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "before start", now: sale.StartsAt.Add(-time.Second), want: false},
		{name: "at start", now: sale.StartsAt, want: true},
		{name: "running", now: baseTime, want: true},
		{name: "at end", now: sale.EndsAt, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sale.Active(tt.now))
		})
	}
}

func TestProduct_OnSale(t *testing.T) {
	assert.False(t, Product{Price: 1000}.OnSale())
	assert.True(t, Product{Price: 1000, SalePrice: 800}.OnSale())
	assert.False(t, Product{Price: 1000, SalePrice: 1200}.OnSale())
}
