package adapter

import (
	"context"
	"time"
)

// EventClaimer records which gateway events are being or have been processed.
type EventClaimer interface {
	// Claim returns false if key was already claimed and not released.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
