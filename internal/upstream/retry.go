package upstream

import (
	"context"
	"time"
)

// FetchWithRetry attempts up to maxAttempts upstream calls, retrying only
// transient failures (no response received, or HTTP 5xx). A 4xx answer is
// terminal: repeating an unchanged request will not fix it.
//
// The delay before attempt n (n >= 2) is initialBackoff * 2^(n-2), doubling
// after each failed attempt. There is no delay before the first attempt.
// The last Result obtained is always returned; exhaustion of the attempt
// budget is communicated through Succeeded == false, never through an error.
// The only error return is a configuration problem (unknown resource) or a
// cancelled context.
func (c *Client) FetchWithRetry(ctx context.Context, resource, symbol string, maxAttempts int, initialBackoff time.Duration) (Result, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var result Result
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			c.logger.Debug().
				Str("resource", resource).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying upstream fetch")
			c.sleep(backoff)
			backoff *= 2
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}

		var err error
		result, err = c.Fetch(ctx, resource, symbol)
		if err != nil {
			return result, err
		}
		if result.Succeeded || !result.Transient() {
			return result, nil
		}
	}

	c.logger.Warn().
		Str("resource", resource).
		Str("symbol", symbol).
		Int("attempts", maxAttempts).
		Str("status", result.StatusClass()).
		Msg("upstream fetch attempts exhausted")
	return result, nil
}
