// Command klines downloads Binance spot kline history and writes it as CSV.
//
// Usage:
//
//	klines -symbol BTCUSDT -interval 1h -days 30 -out btc_1h.csv
//	klines -symbol BTCUSDT,ETHUSDT -interval 1d -days 365 -out ./data
//
// Settings that outlive a single run (endpoints, timeouts, cache, logging,
// metrics) come from the environment or a .env file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Sternrassler/binance-klines/internal/config"
	"github.com/Sternrassler/binance-klines/pkg/client"
	"github.com/Sternrassler/binance-klines/pkg/endpoint"
	"github.com/Sternrassler/binance-klines/pkg/interval"
	"github.com/Sternrassler/binance-klines/pkg/kline"
	"github.com/Sternrassler/binance-klines/pkg/logging"
	"github.com/Sternrassler/binance-klines/pkg/metrics"
	"github.com/Sternrassler/binance-klines/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// options are the per-run flags.
type options struct {
	symbols  []string
	interval string
	limit    int
	days     int
	out      string
	envFile  string
	parallel int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Error().Err(err).Msg("klines failed")
		fmt.Fprintln(os.Stderr, "klines:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("klines", flag.ContinueOnError)
	symbols := fs.String("symbol", "BTCUSDT", "trading pair, or a comma-separated list")
	opts := options{}
	fs.StringVar(&opts.interval, "interval", "1h", "kline interval (1m, 4h, 1d, 1w, 1M, ...)")
	fs.IntVar(&opts.limit, "limit", client.MaxLimit, "rows per page (1-1000)")
	fs.IntVar(&opts.days, "days", 7, "days of history to fetch")
	fs.StringVar(&opts.out, "out", "", "output file (one symbol) or directory (several); stdout when empty")
	fs.StringVar(&opts.envFile, "env", ".env", "optional .env file")
	fs.IntVar(&opts.parallel, "parallel", 1, "symbols fetched concurrently")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	for _, s := range strings.Split(*symbols, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			opts.symbols = append(opts.symbols, s)
		}
	}
	if len(opts.symbols) == 0 {
		return opts, fmt.Errorf("%w: -symbol is required", client.ErrInvalidRequest)
	}
	if _, err := interval.Parse(opts.interval); err != nil {
		return opts, err
	}
	if opts.limit < client.MinLimit || opts.limit > client.MaxLimit {
		return opts, fmt.Errorf("%w: -limit %d outside %d..%d", client.ErrInvalidRequest, opts.limit, client.MinLimit, client.MaxLimit)
	}
	if opts.days < 0 {
		return opts, fmt.Errorf("%w: -days cannot be negative", client.ErrInvalidRequest)
	}
	if len(opts.symbols) > 1 && opts.out == "" {
		return opts, fmt.Errorf("-out directory is required for several symbols")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return err
	}

	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("klines")

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Warn().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	clientCfg := cfg.ClientConfig()
	if cfg.Geolocate {
		eps := endpoint.Resolve(ctx, endpoint.Options{})
		clientCfg.PrimaryEndpoint = eps.Primary
		clientCfg.FallbackEndpoint = eps.Fallback
	}

	if cfg.Redis != nil {
		redisClient := redis.NewClient(cfg.Redis)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable - running without page cache")
		} else {
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
			clientCfg.Redis = redisClient
		}
	}

	klineClient, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create kline client: %w", err)
	}
	defer klineClient.Close()

	walker := pagination.NewWalker(klineClient, pagination.DefaultConfig())
	batch := pagination.NewBatchFetcher(walker, pagination.BatchConfig{MaxConcurrency: opts.parallel})

	reqs := make([]pagination.HistoryRequest, 0, len(opts.symbols))
	for _, s := range opts.symbols {
		reqs = append(reqs, pagination.HistoryRequest{
			Symbol:   s,
			Interval: opts.interval,
			Limit:    opts.limit,
			Days:     opts.days,
		})
	}

	results, fetchErr := batch.FetchAll(ctx, reqs)

	for _, r := range results {
		if err := writeResult(r, opts, stdout); err != nil {
			return err
		}
		if r.Err != nil {
			ev := logger.Error().Err(r.Err).Str("symbol", r.Request.Symbol).Int("records", r.Series.Len())
			if status := client.StatusCode(r.Err); status != 0 {
				ev = ev.Int("status", status)
			}
			ev.Msg("History incomplete")
			continue
		}
		logger.Info().
			Str("symbol", r.Request.Symbol).
			Int("records", r.Series.Len()).
			Msg("History written")
	}

	if fetchErr != nil && errors.Is(fetchErr, client.ErrContextCancelled) {
		return fmt.Errorf("interrupted, partial history written: %w", fetchErr)
	}
	return fetchErr
}

// writeResult writes one series to stdout, the -out file or a file inside
// the -out directory.
func writeResult(r pagination.HistoryResult, opts options, stdout io.Writer) error {
	if opts.out == "" {
		return kline.WriteCSV(stdout, r.Series)
	}

	path := opts.out
	if len(opts.symbols) > 1 {
		if err := os.MkdirAll(opts.out, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		path = filepath.Join(opts.out, fmt.Sprintf("%s_%s.csv", r.Request.Symbol, r.Request.Interval))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := kline.WriteCSV(f, r.Series); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
