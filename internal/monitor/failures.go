package monitor

import "sync"

// FailureTracker counts consecutive fetch failures per resource key.
// Any success resets the streak to zero regardless of its prior length.
type FailureTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewFailureTracker constructs an empty tracker.
func NewFailureTracker() *FailureTracker {
	return &FailureTracker{counts: make(map[string]int)}
}

// Failure increments the streak for key and returns the new count.
func (t *FailureTracker) Failure(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[key]++
	return t.counts[key]
}

// Success resets the streak for key.
func (t *FailureTracker) Success(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, key)
}

// Count returns the current streak for key.
func (t *FailureTracker) Count(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[key]
}
