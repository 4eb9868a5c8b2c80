package upstream

import "fmt"

// maxEmbeddedBody caps RawBody excerpts when a result is rendered into
// log lines or alert messages.
const maxEmbeddedBody = 2000

// Result is the normalized outcome of a single upstream attempt.
//
// Status == 0 means no response was received at all (DNS, dial, timeout);
// Succeeded == false with Status set means the upstream answered with a
// non-success code. Parsed is non-nil only when RawBody was valid JSON,
// whatever the declared content type claimed.
type Result struct {
	Succeeded   bool
	Status      int
	ContentType string
	RawBody     string
	Parsed      any
}

// Transient reports whether the failure is worth retrying: either no
// response was received, or the upstream answered with a 5xx. Anything in
// [400, 499] is a request-shape problem that repeating will not fix.
func (r Result) Transient() bool {
	if r.Succeeded {
		return false
	}
	return r.Status == 0 || r.Status >= 500
}

// StatusClass renders the status for alert keys and failure payloads:
// "network" when no response was received, the numeric code otherwise.
func (r Result) StatusClass() string {
	if r.Status == 0 {
		return "network"
	}
	return fmt.Sprintf("%d", r.Status)
}

// BodyExcerpt returns RawBody truncated to maxEmbeddedBody characters.
func (r Result) BodyExcerpt() string {
	return Truncate(r.RawBody, maxEmbeddedBody)
}

// Truncate shortens s to at most n characters, marking the cut.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…(truncated)"
}
