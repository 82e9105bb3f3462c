package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/binance-klines/internal/testutil"
	"github.com/Sternrassler/binance-klines/pkg/client"
	"github.com/Sternrassler/binance-klines/pkg/interval"
	"github.com/Sternrassler/binance-klines/pkg/kline"
)

// setupEnv points the CLI at the mock exchange.
func setupEnv(t *testing.T, mock *testutil.MockBinance) string {
	t.Helper()
	t.Setenv("BINANCE_PRIMARY_ENDPOINT", mock.URL())
	t.Setenv("BINANCE_FALLBACK_ENDPOINT", mock.URL())
	t.Setenv("BINANCE_GEOLOCATE", "false")
	t.Setenv("REDIS_URL", "")
	t.Setenv("METRICS_ADDR", "")
	t.Setenv("LOG_LEVEL", "error")
	return filepath.Join(t.TempDir(), "none.env")
}

// coveringPage returns 30 hourly rows whose oldest row predates a one-day
// window, so a walk stops after a single page.
func coveringPage() testutil.MockResponse {
	start := time.Now().Add(-48 * time.Hour).Truncate(time.Hour).UnixMilli()
	return testutil.NewPageResponse(testutil.KlineRows(start, time.Hour, 30))
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"defaults", nil, nil},
		{"bad interval", []string{"-interval", "1x"}, interval.ErrInvalidInterval},
		{"limit too large", []string{"-limit", "1001"}, client.ErrInvalidRequest},
		{"limit zero", []string{"-limit", "0"}, client.ErrInvalidRequest},
		{"negative days", []string{"-days", "-1"}, client.ErrInvalidRequest},
		{"blank symbol", []string{"-symbol", " , "}, client.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("parseFlags() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("parseFlags() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseFlags_Symbols(t *testing.T) {
	opts, err := parseFlags([]string{"-symbol", "btcusdt, ethusdt", "-out", "dir"})
	if err != nil {
		t.Fatalf("parseFlags() = %v", err)
	}
	if len(opts.symbols) != 2 || opts.symbols[0] != "BTCUSDT" || opts.symbols[1] != "ETHUSDT" {
		t.Errorf("symbols = %v", opts.symbols)
	}

	if _, err := parseFlags([]string{"-symbol", "BTCUSDT,ETHUSDT"}); err == nil {
		t.Error("several symbols without -out should fail")
	}
}

func TestRun_WritesCSVToStdout(t *testing.T) {
	mock := testutil.NewMockBinance()
	defer mock.Close()
	mock.Enqueue(coveringPage())
	envFile := setupEnv(t, mock)

	var out bytes.Buffer
	err := run(context.Background(), []string{"-symbol", "BTCUSDT", "-interval", "1h", "-days", "1", "-env", envFile}, &out)
	if err != nil {
		t.Fatalf("run() = %v", err)
	}

	rows, err := csv.NewReader(&out).ReadAll()
	if err != nil {
		t.Fatalf("read CSV: %v", err)
	}
	if len(rows) != 31 {
		t.Fatalf("rows = %d, want header + 30", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(kline.TableColumns, ",") {
		t.Errorf("header = %v", rows[0])
	}
	if mock.RequestCount() != 1 {
		t.Errorf("requests = %d, want 1", mock.RequestCount())
	}

	q := mock.Requests()[0]
	if q.Get("symbol") != "BTCUSDT" || q.Get("limit") != "1000" {
		t.Errorf("unexpected query %v", q)
	}
}

func TestRun_SeveralSymbolsToDirectory(t *testing.T) {
	mock := testutil.NewMockBinance()
	defer mock.Close()
	mock.SetFallback(coveringPage())
	envFile := setupEnv(t, mock)

	dir := filepath.Join(t.TempDir(), "out")
	err := run(context.Background(), []string{"-symbol", "BTCUSDT,ETHUSDT", "-days", "1", "-out", dir, "-env", envFile}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("run() = %v", err)
	}

	for _, name := range []string{"BTCUSDT_1h.csv", "ETHUSDT_1h.csv"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if lines := strings.Count(string(data), "\n"); lines != 31 {
			t.Errorf("%s has %d lines, want 31", name, lines)
		}
	}
}

func TestRun_AccessDeniedFails(t *testing.T) {
	mock := testutil.NewMockBinance()
	defer mock.Close()
	mock.EnqueueStatus(http.StatusTeapot)
	envFile := setupEnv(t, mock)

	var out bytes.Buffer
	err := run(context.Background(), []string{"-days", "1", "-env", envFile}, &out)
	if !errors.Is(err, client.ErrAccessDenied) {
		t.Fatalf("run() = %v, want ErrAccessDenied", err)
	}
	if got := client.StatusCode(err); got != http.StatusTeapot {
		t.Errorf("StatusCode(run()) = %d, want %d", got, http.StatusTeapot)
	}
	// Header is still written for the empty partial series.
	if !strings.HasPrefix(out.String(), "openTime,") {
		t.Errorf("output = %q", out.String())
	}
	if mock.RequestCount() != 1 {
		t.Errorf("requests = %d, want 1", mock.RequestCount())
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	mock := testutil.NewMockBinance()
	defer mock.Close()
	envFile := setupEnv(t, mock)
	t.Setenv("BINANCE_MAX_ATTEMPTS", "zero")

	err := run(context.Background(), []string{"-env", envFile}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "BINANCE_MAX_ATTEMPTS") {
		t.Fatalf("run() = %v, want config error", err)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("requests = %d, want 0", mock.RequestCount())
	}
}
