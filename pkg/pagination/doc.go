// Package pagination assembles kline histories from single pages.
//
// The exchange caps a klines response at 1000 rows, so a history longer than
// one page is collected by walking backward: each request ends at the oldest
// open time of the previous page, until the oldest row reaches the aligned
// window start or the exchange returns an empty page. Overlapping boundary
// rows are removed when the pages are merged.
//
// Example usage:
//
//	walker := pagination.NewWalker(klineClient, pagination.DefaultConfig())
//	series, err := walker.FetchHistory(ctx, "BTCUSDT", "1h", 1000, 30)
//
// The walker:
//   - Issues one request at a time with a 500ms pause between pages
//   - Stops early and keeps the partial series when a page is unavailable
//   - Returns terminal errors (ban, region block, cancellation) together with
//     whatever was collected
//
// BatchFetcher runs walks for several symbols through a small worker pool.
package pagination
