package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestURLUnknownResource(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://example.test"}, noopLogger())
	if _, err := c.URL("klines", "BTC"); err == nil {
		t.Fatal("unknown resource should be a configuration error")
	}
}

func TestURLAliasResolution(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://example.test"}, noopLogger())
	direct, err := c.URL("open-interest", "BTC")
	if err != nil {
		t.Fatalf("URL failed: %v", err)
	}
	alias, err := c.URL("oi", "BTC")
	if err != nil {
		t.Fatalf("URL failed for alias: %v", err)
	}
	if direct != alias {
		t.Fatalf("alias should build the same URL: %s vs %s", direct, alias)
	}
}

func TestFetchAttachesAPIKeyHeader(t *testing.T) {
	var gotKey, gotSymbol string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-MBX-APIKEY")
		gotSymbol = r.URL.Query().Get("symbol")
		_, _ = w.Write([]byte(`{"lastFundingRate":"0.0001"}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "secret", APIKeyHeader: "X-MBX-APIKEY"}, noopLogger())
	result, err := c.Fetch(context.Background(), "funding", "BTCUSDT")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotKey != "secret" {
		t.Fatalf("API key header not attached, got %q", gotKey)
	}
	if gotSymbol != "BTCUSDT" {
		t.Fatalf("symbol not propagated, got %q", gotSymbol)
	}
	if !result.Succeeded || result.Parsed == nil {
		t.Fatalf("expected parsed success, got %+v", result)
	}
}

func TestFetchParsesMislabeledJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(`{"fundingRate":0.0002}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL}, noopLogger())
	result, err := c.Fetch(context.Background(), "funding", "BTC")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.Parsed == nil {
		t.Fatal("body should be parsed despite text/plain content type")
	}
}

func TestFetchCapturesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL}, noopLogger())
	result, err := c.Fetch(context.Background(), "funding", "NOPE")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.Succeeded {
		t.Fatal("HTTP 400 should not be a success")
	}
	if result.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", result.Status)
	}
	if result.RawBody == "" {
		t.Fatal("error body should be captured for diagnostics")
	}
	if result.Parsed == nil {
		t.Fatal("JSON error body should still be parsed")
	}
}

func TestFetchNetworkFailureHasNoStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	result, err := c.Fetch(context.Background(), "funding", "BTC")
	if err != nil {
		t.Fatalf("network failures are results, not errors: %v", err)
	}
	if result.Succeeded || result.Status != 0 {
		t.Fatalf("expected network-level failure with no status, got %+v", result)
	}
	if !result.Transient() {
		t.Fatal("network failure should classify as transient")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc…(truncated)" {
		t.Fatalf("Truncate = %q", got)
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Fatalf("short strings must be untouched, got %q", got)
	}
}
