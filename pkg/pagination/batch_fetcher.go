package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/pagefeed/pkg/client"
	"github.com/Sternrassler/pagefeed/pkg/logging"
	"github.com/rs/zerolog"
)

// BatchConfig holds batch fetcher configuration.
type BatchConfig struct {
	// MaxConcurrency is the number of pages requested in parallel per window
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
	// MaxPages stops the walk on collections that never return a short page
	MaxPages int
	// Logger overrides the component logger (optional)
	Logger *zerolog.Logger
}

// DefaultBatchConfig returns a conservative configuration.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
		MaxPages:       500,
	}
}

// PageResult is the outcome of fetching a single page.
type PageResult struct {
	PageNumber int
	Items      []client.Item
	Error      error
}

// BatchFetcher walks a whole collection by requesting windows of pages in
// parallel. The collection size is unknown up front, so each window is
// checked for a short page before the next one starts.
type BatchFetcher struct {
	fetcher PageFetcher
	config  BatchConfig
	logger  zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher(fetcher PageFetcher, config BatchConfig) *BatchFetcher {
	defaults := DefaultBatchConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxPages <= 0 {
		config.MaxPages = defaults.MaxPages
	}

	logger := logging.NewLogger("pagefeed-batch")
	if config.Logger != nil {
		logger = *config.Logger
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
		logger:  logger,
	}
}

// FetchAll fetches every page of resource in order. On failure it returns the
// items of the pages before the failed one together with the error.
func (bf *BatchFetcher) FetchAll(ctx context.Context, resource string, pageSize int) ([]client.Item, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	start := time.Now()

	var all []client.Item
	for first := 1; first <= bf.config.MaxPages; first += bf.config.MaxConcurrency {
		last := first + bf.config.MaxConcurrency - 1
		if last > bf.config.MaxPages {
			last = bf.config.MaxPages
		}

		results := bf.fetchWindow(ctx, resource, pageSize, first, last)

		for page := first; page <= last; page++ {
			result, ok := results[page]
			if !ok {
				// Pages are only skipped once the context is cancelled.
				return all, fmt.Errorf("fetch page %d: %w", page, client.ErrCancelled)
			}
			if result.Error != nil {
				bf.logger.Warn().
					Err(result.Error).
					Str("resource", resource).
					Int("page", page).
					Int("items", len(all)).
					Msg("Batch fetch stopped - returning partial results")
				return all, fmt.Errorf("fetch page %d: %w", page, result.Error)
			}

			all = append(all, result.Items...)
			if len(result.Items) < pageSize {
				bf.logger.Info().
					Str("resource", resource).
					Int("pages", page).
					Int("items", len(all)).
					Dur("duration", time.Since(start)).
					Msg("Batch fetch complete")
				return all, nil
			}
		}

		bf.logger.Debug().
			Str("resource", resource).
			Int("fetched_pages", last).
			Int("items", len(all)).
			Msg("Batch fetch progress")
	}

	bf.logger.Warn().
		Str("resource", resource).
		Int("max_pages", bf.config.MaxPages).
		Int("items", len(all)).
		Msg("Batch fetch hit page limit")

	return all, nil
}

// fetchWindow fetches pages first..last with a worker pool. Pages are missing
// from the result only when ctx is cancelled.
func (bf *BatchFetcher) fetchWindow(ctx context.Context, resource string, pageSize, first, last int) map[int]PageResult {
	pageQueue := make(chan int, last-first+1)
	for page := first; page <= last; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	pageResults := make(chan PageResult, last-first+1)

	var wg sync.WaitGroup
	for i := 0; i < bf.config.MaxConcurrency; i++ {
		wg.Add(1)
		go bf.worker(ctx, resource, pageSize, pageQueue, pageResults, &wg, i)
	}

	go func() {
		wg.Wait()
		close(pageResults)
	}()

	results := make(map[int]PageResult, last-first+1)
	for result := range pageResults {
		if result.Error != nil {
			batchPagesTotal.WithLabelValues("error").Inc()
		} else {
			batchPagesTotal.WithLabelValues("success").Inc()
		}
		results[result.PageNumber] = result
	}
	return results
}

// worker processes pages from the queue.
func (bf *BatchFetcher) worker(ctx context.Context, resource string, pageSize int, pageQueue <-chan int, results chan<- PageResult, wg *sync.WaitGroup, workerID int) {
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
		items, err := bf.fetcher.FetchPage(pageCtx, resource, client.PageRequest{Page: pageNum, Size: pageSize})
		if err != nil && ctx.Err() == nil && errors.Is(pageCtx.Err(), context.DeadlineExceeded) {
			// Only the page deadline fired; the caller is still waiting.
			err = &client.FetchError{
				Kind: client.KindTransport,
				Err:  fmt.Errorf("page timed out after %s: %w", bf.config.Timeout, context.DeadlineExceeded),
			}
		}
		cancel()

		results <- PageResult{PageNumber: pageNum, Items: items, Error: err}
		pagesProcessed++
	}

	if pagesProcessed > 0 {
		bf.logger.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", pagesProcessed).
			Msg("Worker completed")
	}
}
