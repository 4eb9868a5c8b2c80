// Package monitor runs the polling loop: fetch through the proxy the way an
// external client would, track consecutive failures, detect materially new
// data, and push deduplicated notifications to the webhook.
package monitor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"funding-rate-alerts/internal/upstream"
)

// proxyRoutes maps canonical resource names to the proxy's route paths.
var proxyRoutes = map[string]string{
	"funding":       "/funding",
	"open-interest": "/oi",
}

// Client issues the same requests an external consumer of the proxy would
// and normalizes the answers into upstream.Result. All resilience lives on
// the proxy side; the poller never retries.
type Client struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewClient constructs a poller-side proxy client.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "poll_client").Logger(),
	}
}

// Poll fetches one resource/symbol pair through the proxy.
func (c *Client) Poll(ctx context.Context, resource, symbol string) upstream.Result {
	route, ok := proxyRoutes[resource]
	if !ok {
		return upstream.Result{Succeeded: false, RawBody: "unknown resource: " + resource}
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	endpoint := c.baseURL + route + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return upstream.Result{Succeeded: false, RawBody: err.Error()}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("resource", resource).Str("symbol", symbol).Msg("poll request failed")
		return upstream.Result{Succeeded: false, Status: 0, RawBody: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return upstream.Result{Succeeded: false, Status: 0, RawBody: err.Error()}
	}

	result := upstream.Result{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		RawBody:     string(body),
		Succeeded:   resp.StatusCode >= 200 && resp.StatusCode < 300,
	}
	var parsed any
	if err := json.Unmarshal(body, &parsed); err == nil {
		result.Parsed = parsed
	}
	return result
}

// unwrapEnvelope strips the proxy's {fromCache, data} wrapper when present,
// returning the inner payload and whether it was served from cache.
func unwrapEnvelope(parsed any) (any, bool) {
	obj, ok := parsed.(map[string]any)
	if !ok {
		return parsed, false
	}
	data, hasData := obj["data"]
	_, hasFlag := obj["fromCache"]
	if !hasData || !hasFlag {
		return parsed, false
	}
	fromCache, _ := obj["fromCache"].(bool)
	return data, fromCache
}
