package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel page requests
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
}

// DefaultConfig returns safe default configuration for the document store
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// PageFetcher fetches a single page of a collection.
type PageFetcher interface {
	// FetchPage fetches one page and returns its raw body plus the total page count
	FetchPage(ctx context.Context, collection string, pageNum int) (data []byte, totalPages int, err error)
}

// PageResult represents the result of fetching a single page
type PageResult struct {
	PageNumber int
	Data       []byte
	Error      error
}

// BatchFetcher handles parallel fetching of multiple pages
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	if fetcher == nil {
		panic("page fetcher cannot be nil")
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "pagination").Logger(),
	}
}

// FetchAllPages fetches every page of a collection using a worker pool and
// returns the page bodies in page order. The first failed page cancels the
// remaining work and fails the whole fetch; partial results are never returned.
func (bf *BatchFetcher) FetchAllPages(ctx context.Context, collection string) ([][]byte, error) {
	start := time.Now()

	// Fetch first page to get total page count
	firstPageData, totalPages, err := bf.fetcher.FetchPage(ctx, collection, 1)
	if err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}
	if totalPages < 1 {
		totalPages = 1
	}

	if totalPages == 1 {
		bf.logger.Debug().
			Str("collection", collection).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return [][]byte{firstPageData}, nil
	}

	bf.logger.Debug().
		Str("collection", collection).
		Int("total_pages", totalPages).
		Msg("Starting parallel page fetch")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pages := make([][]byte, totalPages)
	pages[0] = firstPageData

	pageQueue := make(chan int, totalPages-1)
	pageResults := make(chan PageResult, totalPages-1)

	// Page 1 is already fetched
	for page := 2; page <= totalPages; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	workers := bf.config.MaxConcurrency
	if workers > totalPages-1 {
		workers = totalPages - 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, collection, pageQueue, pageResults, &wg, i)
	}

	go func() {
		wg.Wait()
		close(pageResults)
	}()

	var firstErr error
	fetched := 1
	for result := range pageResults {
		if result.Error != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("fetch page %d: %w", result.PageNumber, result.Error)
				cancel()
			}
			continue
		}
		pages[result.PageNumber-1] = result.Data
		fetched++
	}

	if firstErr != nil {
		bf.logger.Warn().
			Err(firstErr).
			Str("collection", collection).
			Int("fetched_pages", fetched).
			Int("total_pages", totalPages).
			Msg("Page fetch failed")
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil && fetched < totalPages {
		return nil, fmt.Errorf("fetch pages of %s: %w", collection, err)
	}

	bf.logger.Debug().
		Str("collection", collection).
		Int("pages", fetched).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return pages, nil
}

// worker processes pages from the queue
func (bf *BatchFetcher) worker(ctx context.Context, collection string, pageQueue <-chan int, results chan<- PageResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for pageNum := range pageQueue {
		if ctx.Err() != nil {
			bf.logger.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return
		}

		pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		data, _, err := bf.fetcher.FetchPage(pageCtx, collection, pageNum)
		cancel()

		// results is buffered for every queued page, so sends never block
		results <- PageResult{PageNumber: pageNum, Data: data, Error: err}
		if err != nil {
			return
		}
		pagesProcessed++
	}
}
