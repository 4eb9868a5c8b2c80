// Package proxy exposes the inbound HTTP surface: a small set of logical
// market-data routes forwarded to the upstream with retry, normalization,
// and a last-known-good cache fallback. Every response is JSON; no internal
// fault ever escapes as an opaque 500.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"funding-rate-alerts/internal/cache"
	"funding-rate-alerts/internal/upstream"
)

// maxFailureMessage caps the diagnostic excerpt embedded in failure bodies.
const maxFailureMessage = 1500

// Fetcher is the upstream dependency of the handler. Satisfied by
// *upstream.Client.
type Fetcher interface {
	FetchWithRetry(ctx context.Context, resource, symbol string, maxAttempts int, initialBackoff time.Duration) (upstream.Result, error)
}

// Options tune handler behaviour.
type Options struct {
	ListenAddr     string
	DefaultSymbol  string
	MaxAttempts    int
	InitialBackoff time.Duration
}

// Server routes proxy requests and owns the response cache.
type Server struct {
	opts    Options
	fetcher Fetcher
	cache   *cache.Cache
	logger  zerolog.Logger
	handler http.Handler
}

// NewServer constructs the proxy server.
func NewServer(opts Options, fetcher Fetcher, responseCache *cache.Cache, logger zerolog.Logger) *Server {
	if opts.DefaultSymbol == "" {
		opts.DefaultSymbol = "BTC"
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}

	s := &Server{
		opts:    opts,
		fetcher: fetcher,
		cache:   responseCache,
		logger:  logger.With().Str("component", "proxy").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /funding", s.handleResource("funding"))
	mux.HandleFunc("GET /oi", s.handleResource("open-interest"))
	mux.HandleFunc("GET /open-interest", s.handleResource("open-interest"))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("/", s.handleNotFound)

	s.handler = s.withRecovery(s.withRequestLog(mux))
	return s
}

// Handler returns the fully wrapped HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.ListenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info().Str("addr", s.opts.ListenAddr).Msg("proxy listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type successBody struct {
	FromCache bool   `json:"fromCache"`
	Data      any    `json:"data"`
	Note      string `json:"note,omitempty"`
}

type failureBody struct {
	Success        bool   `json:"success"`
	UpstreamStatus string `json:"upstream_status"`
	Stage          string `json:"stage"`
	Message        string `json:"message"`
}

func (s *Server) handleResource(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			// Single-tenant tool: a missing symbol falls back to the
			// configured default instead of rejecting the request.
			symbol = s.opts.DefaultSymbol
		}

		key := cache.Key(resource, symbol)
		result, err := s.fetcher.FetchWithRetry(r.Context(), resource, symbol, s.opts.MaxAttempts, s.opts.InitialBackoff)
		if err != nil {
			if errors.Is(err, upstream.ErrUnknownResource) {
				writeJSON(w, http.StatusNotFound, failureBody{
					UpstreamStatus: "none", Stage: "config", Message: err.Error(),
				})
				return
			}
			writeJSON(w, http.StatusBadGateway, failureBody{
				UpstreamStatus: "none", Stage: "config", Message: upstream.Truncate(err.Error(), maxFailureMessage),
			})
			return
		}

		if result.Succeeded && result.Parsed != nil {
			s.cache.Set(key, result.Parsed)
			writeJSON(w, http.StatusOK, successBody{FromCache: false, Data: result.Parsed})
			return
		}

		if payload, age, ok := s.cache.Get(key); ok {
			s.logger.Warn().
				Str("resource", resource).
				Str("symbol", symbol).
				Str("status", result.StatusClass()).
				Dur("cache_age", age).
				Msg("upstream failed; serving cached payload")
			writeJSON(w, http.StatusOK, successBody{
				FromCache: true,
				Data:      payload,
				Note:      "upstream failed: " + result.StatusClass(),
			})
			return
		}

		writeJSON(w, failureStatus(result), failureResponse(result))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ts": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, failureBody{
		UpstreamStatus: "none",
		Stage:          "config",
		Message:        "no such route: " + r.URL.Path,
	})
}

// failureStatus chooses the HTTP status relayed to the client: the
// upstream's own code when one was received, 502 otherwise.
func failureStatus(result upstream.Result) int {
	if result.Status > 0 && !result.Succeeded {
		return result.Status
	}
	return http.StatusBadGateway
}

func failureResponse(result upstream.Result) failureBody {
	stage := "upstream"
	message := result.RawBody
	switch {
	case result.Status == 0:
		stage = "network"
	case result.Succeeded && result.Parsed == nil:
		// Upstream said 2xx but the body was not valid JSON.
		stage = "parse"
		message = "upstream returned unparseable body"
	}
	return failureBody{
		UpstreamStatus: result.StatusClass(),
		Stage:          stage,
		Message:        upstream.Truncate(message, maxFailureMessage),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
