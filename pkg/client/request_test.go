package client

import (
	"net/url"
	"testing"
	"time"
)

func TestFetchRequest_URL(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	end := time.UnixMilli(1_700_003_600_000)
	req := FetchRequest{Symbol: "ETHUSDT", Interval: "15m", Limit: 1000, Start: &start, End: &end}

	raw := req.URL("https://api.binance.com/")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}

	if u.Path != KlinesPath {
		t.Errorf("path = %q, want %q", u.Path, KlinesPath)
	}
	q := u.Query()
	want := map[string]string{
		"symbol":    "ETHUSDT",
		"interval":  "15m",
		"limit":     "1000",
		"startTime": "1700000000000",
		"endTime":   "1700003600000",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, q.Get(k), v)
		}
	}
}

func TestFetchRequest_Validate(t *testing.T) {
	early := time.UnixMilli(1000)
	late := time.UnixMilli(2000)

	tests := []struct {
		name    string
		req     FetchRequest
		wantErr bool
	}{
		{"minimal", FetchRequest{Symbol: "BTCUSDT", Interval: "1m", Limit: 1}, false},
		{"max limit", FetchRequest{Symbol: "BTCUSDT", Interval: "1M", Limit: 1000}, false},
		{"bounded", FetchRequest{Symbol: "BTCUSDT", Interval: "1d", Limit: 10, Start: &early, End: &late}, false},
		{"blank symbol", FetchRequest{Symbol: "  ", Interval: "1m", Limit: 1}, true},
		{"limit over", FetchRequest{Symbol: "BTCUSDT", Interval: "1m", Limit: 1001}, true},
		{"end before start", FetchRequest{Symbol: "BTCUSDT", Interval: "1d", Limit: 10, Start: &late, End: &early}, true},
		{"empty interval", FetchRequest{Symbol: "BTCUSDT", Limit: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFetchRequest_Millis(t *testing.T) {
	var req FetchRequest
	if req.StartMs() != 0 || req.EndMs() != 0 {
		t.Error("unset bounds should be 0")
	}
}
