package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRetryBackoffDoublesOn503(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL}, noopLogger())
	var delays []time.Duration
	c.sleep = func(d time.Duration) { delays = append(delays, d) }

	result, err := c.FetchWithRetry(context.Background(), "funding", "BTC", 3, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("FetchWithRetry failed: %v", err)
	}

	if calls != 3 {
		t.Fatalf("attempts = %d, want 3", calls)
	}
	want := []time.Duration{500 * time.Millisecond, time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}
	if result.Succeeded || result.Status != http.StatusServiceUnavailable {
		t.Fatalf("final result should carry the 503, got %+v", result)
	}
}

func TestRetryTerminalOn404(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL}, noopLogger())
	c.sleep = func(time.Duration) { t.Fatal("terminal failures must not back off") }

	result, err := c.FetchWithRetry(context.Background(), "funding", "BTC", 3, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("FetchWithRetry failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("a 4xx must yield exactly one attempt, got %d", calls)
	}
	if result.Status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", result.Status)
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"lastFundingRate":"0.0001"}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL}, noopLogger())
	var delays []time.Duration
	c.sleep = func(d time.Duration) { delays = append(delays, d) }

	result, err := c.FetchWithRetry(context.Background(), "funding", "BTC", 5, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("FetchWithRetry failed: %v", err)
	}
	if calls != 2 {
		t.Fatalf("attempts = %d, want 2", calls)
	}
	if len(delays) != 1 || delays[0] != 100*time.Millisecond {
		t.Fatalf("delays = %v, want [100ms]", delays)
	}
	if !result.Succeeded {
		t.Fatalf("expected success, got %+v", result)
	}
}

func TestRetryUnknownResourceIsError(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://example.test"}, noopLogger())
	if _, err := c.FetchWithRetry(context.Background(), "klines", "BTC", 3, time.Millisecond); err == nil {
		t.Fatal("unknown resource should surface as an error, not a retried fetch")
	}
}
