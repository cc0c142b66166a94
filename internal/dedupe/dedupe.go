// Package dedupe rejects duplicate webhook deliveries within a retention window.
package dedupe

import (
	"log/slog"
	"sync"
	"time"
)

// Deduper remembers recently seen delivery IDs so redelivered webhooks are
// acknowledged without triggering a second review. Entries live for the
// retention window and are pruned lazily on access. The cache is in-process
// only: a restart forgets all deliveries, which is acceptable because GitHub
// redeliveries are rare and restart windows are short.
type Deduper struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewDeduper creates a deduper with the given retention window.
func NewDeduper(retention time.Duration, logger *slog.Logger) *Deduper {
	return &Deduper{
		seen:      make(map[string]time.Time),
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

// ShouldProcess reports whether the delivery has not been seen within the
// retention window. When it returns true the delivery is recorded, so a
// second call with the same ID inside the window returns false.
func (d *Deduper) ShouldProcess(deliveryID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.prune(now)

	if seenAt, ok := d.seen[deliveryID]; ok {
		d.logger.Info("duplicate delivery rejected", "delivery_id", deliveryID, "first_seen", seenAt)
		return false
	}

	d.seen[deliveryID] = now
	return true
}

// Forget removes a delivery ID from the cache. Callers use it when the job
// could not be enqueued after the ID was recorded, so GitHub's redelivery of
// the same ID is processed instead of rejected as a duplicate.
func (d *Deduper) Forget(deliveryID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, deliveryID)
}

// prune drops entries older than the retention window. Caller holds the lock.
func (d *Deduper) prune(now time.Time) {
	cutoff := now.Add(-d.retention)
	for id, seenAt := range d.seen {
		if seenAt.Before(cutoff) {
			delete(d.seen, id)
		}
	}
}
