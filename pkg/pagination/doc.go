// Package pagination provides parallel batch fetching for paginated document
// store collections.
//
// The document store reports the total page count in the X-Total-Pages header
// of every page. The batch fetcher reads page 1, then spreads the remaining
// pages across a small worker pool.
//
// Example usage:
//
//	fetcher := pagination.NewBatchFetcher(docClient, pagination.DefaultConfig())
//	pages, err := fetcher.FetchAllPages(ctx, "products")
//
// The batch fetcher:
//   - Fetches the first page to determine total pages
//   - Spawns a worker pool (default 4 workers)
//   - Returns page bodies in page order
//   - Fails the whole fetch on the first failed page
package pagination
