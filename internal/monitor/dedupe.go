package monitor

import (
	"sync"
	"time"
)

// Deduplicator suppresses repeat notifications sharing a key within a
// minimum resend interval. A key with no recorded send always passes.
type Deduplicator struct {
	mu          sync.Mutex
	lastSent    map[string]time.Time
	minInterval time.Duration

	now func() time.Time
}

// NewDeduplicator constructs a deduplicator with the given resend interval.
func NewDeduplicator(minInterval time.Duration) *Deduplicator {
	return &Deduplicator{
		lastSent:    make(map[string]time.Time),
		minInterval: minInterval,
		now:         time.Now,
	}
}

// Allow reports whether a notification for key may be sent now. It records
// the send time only when it returns true; a suppressed duplicate leaves
// the recorded time untouched so the window is measured from the last
// message actually delivered.
func (d *Deduplicator) Allow(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if sentAt, ok := d.lastSent[key]; ok && now.Sub(sentAt) < d.minInterval {
		return false
	}
	d.lastSent[key] = now
	return true
}

// Prune drops keys untouched for an order of magnitude longer than the
// resend interval. Purely a memory bound, not a correctness requirement.
func (d *Deduplicator) Prune() {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := d.now().Add(-10 * d.minInterval)
	for key, sentAt := range d.lastSent {
		if sentAt.Before(cutoff) {
			delete(d.lastSent, key)
		}
	}
}
