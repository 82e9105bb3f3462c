package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/binance-klines/pkg/kline"
	"github.com/rs/zerolog/log"
)

// BatchConfig holds batch fetcher configuration.
type BatchConfig struct {
	// MaxConcurrency is the number of symbols walked in parallel. Each walk
	// is itself serial. Binance weight is shared per IP, so keep this low.
	MaxConcurrency int
}

// DefaultBatchConfig returns a serial batch configuration.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{MaxConcurrency: 1}
}

// HistoryRequest names one history walk.
type HistoryRequest struct {
	Symbol   string
	Interval string
	Limit    int
	Days     int
}

// HistoryResult is the outcome of one history walk. Series may be non-empty
// even when Err is set.
type HistoryResult struct {
	Request HistoryRequest
	Series  kline.Series
	Err     error
}

// BatchFetcher runs history walks for several symbols through a worker pool.
type BatchFetcher struct {
	walker *Walker
	config BatchConfig
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher(walker *Walker, config BatchConfig) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	return &BatchFetcher{
		walker: walker,
		config: config,
	}
}

// FetchAll walks every request and returns results in request order. The
// returned error summarizes failed walks; partial series are still returned.
func (bf *BatchFetcher) FetchAll(ctx context.Context, reqs []HistoryRequest) ([]HistoryResult, error) {
	start := time.Now()
	results := make([]HistoryResult, len(reqs))

	queue := make(chan int, len(reqs))
	for i := range reqs {
		queue <- i
	}
	close(queue)

	workers := bf.config.MaxConcurrency
	if workers > len(reqs) {
		workers = len(reqs)
	}

	var wg sync.WaitGroup
	for id := 0; id < workers; id++ {
		wg.Add(1)
		go bf.worker(ctx, reqs, queue, results, &wg, id)
	}
	wg.Wait()

	failed := 0
	var firstErr error
	for _, r := range results {
		if r.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = r.Err
			}
		}
	}

	log.Info().
		Int("symbols", len(reqs)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	if failed > 0 {
		return results, fmt.Errorf("%d of %d history walks failed (partial data kept): %w", failed, len(reqs), firstErr)
	}
	return results, nil
}

// worker processes requests from the queue. Each worker writes only the
// result slots of the indices it receives.
func (bf *BatchFetcher) worker(ctx context.Context, reqs []HistoryRequest, queue <-chan int, results []HistoryResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for i := range queue {
		req := reqs[i]
		series, err := bf.walker.FetchHistory(ctx, req.Symbol, req.Interval, req.Limit, req.Days)
		results[i] = HistoryResult{Request: req, Series: series, Err: err}
		processed++
	}

	log.Debug().
		Int("worker_id", workerID).
		Int("walks_processed", processed).
		Msg("Worker completed")
}
