package monitor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"funding-rate-alerts/internal/alerting"
	"funding-rate-alerts/internal/upstream"
)

// maxNormalized bounds the normalized payload representation used for
// change detection and alert bodies.
const maxNormalized = 2000

// Poller classifies each fetched result and decides what, if anything, to
// notify about. All mutable state it owns (last-seen payloads, failure
// streaks, dedupe times) is instance state, never package globals, so tests
// can run pollers in isolation.
type Poller struct {
	client   *Client
	dedupe   *Deduplicator
	failures *FailureTracker
	notifier alerting.Notifier
	logger   zerolog.Logger

	resources []string
	symbols   []string
	threshold int

	// lastSeen is only touched from Tick, which the scheduler serializes.
	lastSeen map[string]string
}

// NewPoller constructs a poller over the given resource and symbol sets.
// failureThreshold is the consecutive-failure count at which an error alert
// is requested.
func NewPoller(client *Client, resources, symbols []string, failureThreshold int, dedupe *Deduplicator, failures *FailureTracker, notifier alerting.Notifier, logger zerolog.Logger) *Poller {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &Poller{
		client:    client,
		dedupe:    dedupe,
		failures:  failures,
		notifier:  notifier,
		logger:    logger.With().Str("component", "poller").Logger(),
		resources: resources,
		symbols:   symbols,
		threshold: failureThreshold,
		lastSeen:  make(map[string]string),
	}
}

// Tick polls every resource/symbol pair once. It is the scheduler's
// TickFunc; it never returns an error that should stop the loop.
func (p *Poller) Tick(ctx context.Context, at time.Time) error {
	for _, resource := range p.resources {
		for _, symbol := range p.symbols {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.pollOne(ctx, resource, symbol, at)
		}
	}
	return nil
}

func (p *Poller) pollOne(ctx context.Context, resource, symbol string, at time.Time) {
	key := resource + ":" + symbol
	result := p.client.Poll(ctx, resource, symbol)

	payload, fromCache := unwrapEnvelope(result.Parsed)
	class, failed := classify(result, payload)

	if failed {
		count := p.failures.Failure(key)
		p.logger.Warn().
			Str("resource", resource).
			Str("symbol", symbol).
			Str("class", class).
			Int("consecutive_failures", count).
			Msg("poll failed")

		if count >= p.threshold {
			p.notifyError(ctx, resource, symbol, class, count, result, at)
		}
		return
	}

	p.failures.Success(key)

	norm := normalize(payload)
	if norm == p.lastSeen[key] {
		p.logger.Debug().Str("resource", resource).Str("symbol", symbol).Msg("payload unchanged")
		return
	}
	p.lastSeen[key] = norm

	p.notifyUpdate(ctx, resource, symbol, payload, norm, fromCache, at)
}

// classify maps a poll result onto the failure taxonomy. An HTTP-200 body
// carrying an application-level error flag counts as a terminal failure and
// increments the streak.
func classify(result upstream.Result, payload any) (string, bool) {
	switch {
	case result.Status == 0:
		return "network", true
	case !result.Succeeded:
		return result.StatusClass(), true
	case result.Parsed == nil:
		return "parse", true
	case upstream.AppError(payload):
		return "app", true
	}
	return "", false
}

func (p *Poller) notifyError(ctx context.Context, resource, symbol, class string, count int, result upstream.Result, at time.Time) {
	dedupeKey := "error:" + resource + ":" + symbol + ":" + class
	if !p.dedupe.Allow(dedupeKey) {
		p.logger.Debug().Str("key", dedupeKey).Msg("error alert suppressed by dedupe window")
		return
	}

	note := alerting.Notification{
		Kind:     "error",
		Resource: resource,
		Symbol:   symbol,
		Title:    "fetch failing, class " + class,
		Body:     result.BodyExcerpt(),
		At:       at,
	}
	if err := p.notifier.Send(ctx, note); err != nil {
		// Best-effort only: a delivery failure never reaches the loop.
		p.logger.Error().Err(err).Str("key", dedupeKey).Msg("error alert delivery failed")
	}
}

func (p *Poller) notifyUpdate(ctx context.Context, resource, symbol string, payload any, norm string, fromCache bool, at time.Time) {
	valueTag := "payload"
	title := "new data"
	if rate, ok := upstream.ExtractRate(payload); ok {
		valueTag = rate.Round(8).String()
		title = "new value " + valueTag
	}

	dedupeKey := "update:" + resource + ":" + symbol + ":" + valueTag
	if !p.dedupe.Allow(dedupeKey) {
		p.logger.Debug().Str("key", dedupeKey).Msg("update suppressed by dedupe window")
		return
	}

	body := norm
	if fromCache {
		body = "(served from cache) " + body
	}
	note := alerting.Notification{
		Kind:     "update",
		Resource: resource,
		Symbol:   symbol,
		Title:    title,
		Body:     body,
		At:       at,
	}
	if err := p.notifier.Send(ctx, note); err != nil {
		p.logger.Error().Err(err).Str("key", dedupeKey).Msg("update delivery failed")
	}
}

// normalize renders a payload as compact JSON truncated to a fixed bound.
// Exact string equality on this representation is the change test; no
// semantic diffing.
func normalize(payload any) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return upstream.Truncate(string(raw), maxNormalized)
}
