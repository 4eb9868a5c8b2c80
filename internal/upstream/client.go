package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnknownResource marks a resource name with no configured upstream path.
// It is a configuration error, not a network failure, and is never retried.
var ErrUnknownResource = errors.New("unknown upstream resource")

// resourcePaths maps logical resource names to upstream path templates.
// "oi" is accepted as a route alias for "open-interest".
var resourcePaths = map[string]string{
	"funding":       "/premiumIndex",
	"open-interest": "/openInterest",
}

// CanonicalResource resolves route aliases to the canonical resource name.
// Returns false when the name maps to nothing.
func CanonicalResource(name string) (string, bool) {
	if name == "oi" {
		name = "open-interest"
	}
	_, ok := resourcePaths[name]
	return name, ok
}

// Options parameterise the upstream client.
type Options struct {
	BaseURL      string
	APIKey       string
	APIKeyHeader string
	Timeout      time.Duration
	UserAgent    string
}

// Client resolves (resource, symbol) pairs to upstream URLs and normalizes
// whatever comes back into a Result.
type Client struct {
	opts    Options
	baseURL string
	client  *http.Client
	logger  zerolog.Logger

	// sleep is swapped out in tests to observe backoff without waiting.
	sleep func(time.Duration)
}

// NewClient constructs an upstream client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		opts:    opts,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "upstream").Logger(),
		sleep:   time.Sleep,
	}
}

// URL builds the deterministic upstream URL for a resource and symbol.
func (c *Client) URL(resource, symbol string) (string, error) {
	canonical, ok := CanonicalResource(resource)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}
	if c.baseURL == "" {
		return "", errors.New("upstream base URL is required")
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	return c.baseURL + resourcePaths[canonical] + "?" + q.Encode(), nil
}

// Fetch performs one upstream attempt and normalizes the outcome.
//
// The full body is read as text before any parse attempt, even on non-2xx
// responses, so error bodies stay available for diagnostics. The parse is
// attempted regardless of the declared content type because some upstreams
// label JSON as text/plain. A missing API key is not an error here; the
// upstream's own 401/403 surfaces as an ordinary failed Result.
func (c *Client) Fetch(ctx context.Context, resource, symbol string) (Result, error) {
	endpoint, err := c.URL(resource, symbol)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("create upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "fundingwatcher/1.0")
	}
	if c.opts.APIKey != "" {
		header := c.opts.APIKeyHeader
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, c.opts.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Timeouts and dial errors land here: no response was received.
		c.logger.Warn().Err(err).Str("resource", resource).Str("symbol", symbol).Msg("upstream request failed")
		return Result{Succeeded: false, Status: 0, RawBody: err.Error()}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn().Err(err).Str("resource", resource).Msg("reading upstream body failed")
		return Result{Succeeded: false, Status: 0, RawBody: err.Error()}, nil
	}

	result := Result{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		RawBody:     string(body),
		Succeeded:   resp.StatusCode >= 200 && resp.StatusCode < 300,
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err == nil {
		result.Parsed = parsed
	}

	return result, nil
}
