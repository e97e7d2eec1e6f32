package redis

import (
	"context"
	"fmt"
	"time"

	"payment-callbacks/internal/domain/ports/adapter"
)

var (
	_ adapter.EventClaimer = (*EventClaims)(nil)
	_ adapter.EventClaimer = NoopClaims{}
)

// EventClaims remembers processed gateway event ids with SET NX so a gateway
// retrying an already handled event does not trigger a second charge.
type EventClaims struct {
	cli    RedisClient
	prefix string
}

func NewEventClaims(cli RedisClient) *EventClaims {
	return &EventClaims{cli: cli, prefix: "callback:event:"}
}

func (c *EventClaims) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.cli.SetNX(ctx, c.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

func (c *EventClaims) Release(ctx context.Context, key string) error {
	return c.cli.Del(ctx, c.prefix+key)
}

// NoopClaims accepts every event. Used when redis is disabled.
type NoopClaims struct{}

func (NoopClaims) Claim(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (NoopClaims) Release(context.Context, string) error                     { return nil }
