package cache

import (
	"testing"
	"time"

	"github.com/Sternrassler/binance-klines/pkg/kline"
)

func TestPageEntry_IsExpired(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{"not expired", time.Now().Add(1 * time.Hour), false},
		{"expired", time.Now().Add(-1 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &PageEntry{Expires: tt.expires}
			if got := entry.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPageEntry_TTL(t *testing.T) {
	entry := NewPageEntry([]byte(`[]`), 0, 10*time.Minute)
	ttl := entry.TTL()
	if ttl < 9*time.Minute || ttl > 10*time.Minute {
		t.Errorf("TTL() = %v, want ~10m", ttl)
	}

	expired := &PageEntry{Expires: time.Now().Add(-time.Minute)}
	if got := expired.TTL(); got != 0 {
		t.Errorf("TTL() for expired entry = %v, want 0", got)
	}
}

func TestSkipReason(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	closed := kline.Record{OpenTime: now.Add(-2 * time.Hour), CloseTime: now.Add(-time.Hour - time.Millisecond)}
	live := kline.Record{OpenTime: now.Add(-30 * time.Minute), CloseTime: now.Add(30*time.Minute - time.Millisecond)}

	tests := []struct {
		name    string
		records []kline.Record
		want    string
	}{
		{"empty", nil, SkipEmpty},
		{"open candle", []kline.Record{closed, live}, SkipOpenCandle},
		{"closed", []kline.Record{closed}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SkipReason(tt.records, now); got != tt.want {
				t.Errorf("SkipReason() = %q, want %q", got, tt.want)
			}
		})
	}
}
