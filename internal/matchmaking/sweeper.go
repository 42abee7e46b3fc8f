package matchmaking

import (
	"context"
	"log"
	"time"
)

// StartStaleSweep evicts queue entries older than ttl on a fixed interval.
// Abandoned entries (client crashed mid-wait) otherwise stay eligible for
// pairing until consumed; a zero ttl disables the sweep entirely.
func (m *Matchmaker) StartStaleSweep(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := m.queues.DeleteOlderThan(time.Now().Add(-ttl))
			if err != nil {
				log.Printf("Stale queue sweep failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("Stale queue sweep removed %d entries", removed)
			}
		}
	}
}
