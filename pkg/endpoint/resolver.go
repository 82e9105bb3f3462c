// Package endpoint picks the primary and fallback Binance hosts for the
// region the process runs in.
package endpoint

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const (
	// GlobalHost serves most regions.
	GlobalHost = "https://api.binance.com"

	// RestrictedHost serves regions where GlobalHost is blocked.
	RestrictedHost = "https://api.binance.me"

	// DefaultGeoURL is the IP geolocation lookup.
	DefaultGeoURL = "https://ipapi.co/json/"

	// DefaultTimeout bounds the geolocation lookup.
	DefaultTimeout = 10 * time.Second
)

// restrictedCountries are served from RestrictedHost first.
var restrictedCountries = map[string]bool{
	"CN": true,
}

// Endpoints is a resolved primary/fallback pair.
type Endpoints struct {
	Primary  string
	Fallback string
	// Country is the ISO code reported by the lookup, empty if it failed.
	Country string
}

// Options configures Resolve.
type Options struct {
	GeoURL     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Restricted returns the layout used when the region blocks GlobalHost or
// cannot be determined.
func Restricted() Endpoints {
	return Endpoints{Primary: RestrictedHost, Fallback: GlobalHost}
}

// Global returns the layout for unrestricted regions.
func Global() Endpoints {
	return Endpoints{Primary: GlobalHost, Fallback: RestrictedHost}
}

// Resolve looks up the caller's country and returns the matching endpoint
// pair. It never fails: any lookup error yields the restricted layout.
func Resolve(ctx context.Context, opts Options) Endpoints {
	logger := log.With().Str("component", "endpoint-resolver").Logger()

	country, err := lookupCountry(ctx, opts)
	if err != nil {
		logger.Warn().Err(err).Msg("Geolocation failed - using restricted endpoint layout")
		return Restricted()
	}

	eps := Global()
	if restrictedCountries[country] {
		eps = Restricted()
	}
	eps.Country = country

	logger.Info().
		Str("country", country).
		Str("primary", eps.Primary).
		Str("fallback", eps.Fallback).
		Msg("Endpoints resolved")

	return eps
}

func lookupCountry(ctx context.Context, opts Options) (string, error) {
	geoURL := opts.GeoURL
	if geoURL == "" {
		geoURL = DefaultGeoURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, geoURL, nil)
	if err != nil {
		return "", fmt.Errorf("create geolocation request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("geolocation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geolocation status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read geolocation body: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("geolocation body is not valid JSON")
	}

	country := strings.ToUpper(strings.TrimSpace(gjson.GetBytes(body, "country").String()))
	if country == "" {
		return "", fmt.Errorf("geolocation response has no country")
	}
	return country, nil
}
