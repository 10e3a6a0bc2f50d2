package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers operation keys so that at-least-once sweeps do
// not repeat side effects. The collections sweep uses it as the
// "already reminded today" guard: re-running the sweep within the TTL window
// must not double-increment reminder counts.
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL.
	// Returns true if the key was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig controls idempotent event handling
type IdempotencyConfig struct {
	// Enabled toggles the duplicate check; disabled handlers process every delivery
	Enabled bool
	// TTL is how long processed keys are remembered
	TTL time.Duration
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		Enabled: true,
		TTL:     24 * time.Hour,
	}
}
