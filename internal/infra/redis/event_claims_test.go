//go:build !integration

package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// memClient is an in-memory RedisClient; only the calls EventClaims makes are meaningful.
type memClient struct {
	mu     sync.Mutex
	data   map[string]string
	ttls   map[string]time.Duration
	setErr error
}

func newMemClient() *memClient {
	return &memClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memClient) Ping(ctx context.Context) error { return nil }

func (m *memClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	m.ttls[key] = expiration
	return true, nil
}

func (m *memClient) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memClient) Close() error { return nil }

func TestEventClaims(t *testing.T) {
	ctx := context.Background()

	t.Run("first claim wins, second is rejected", func(t *testing.T) {
		cli := newMemClient()
		claims := NewEventClaims(cli)

		ok, err := claims.Claim(ctx, "evt_1", time.Hour)
		if err != nil || !ok {
			t.Fatalf("expected first claim to succeed, got ok=%v err=%v", ok, err)
		}
		ok, err = claims.Claim(ctx, "evt_1", time.Hour)
		if err != nil || ok {
			t.Fatalf("expected duplicate claim to be rejected, got ok=%v err=%v", ok, err)
		}
		if cli.ttls["callback:event:evt_1"] != time.Hour {
			t.Errorf("expected ttl to be passed through, got %s", cli.ttls["callback:event:evt_1"])
		}
	})

	t.Run("released claim can be taken again", func(t *testing.T) {
		claims := NewEventClaims(newMemClient())
		_, _ = claims.Claim(ctx, "evt_2", time.Hour)
		if err := claims.Release(ctx, "evt_2"); err != nil {
			t.Fatalf("release: %v", err)
		}
		ok, _ := claims.Claim(ctx, "evt_2", time.Hour)
		if !ok {
			t.Fatal("expected claim after release to succeed")
		}
	})

	t.Run("client errors are wrapped", func(t *testing.T) {
		cli := newMemClient()
		cli.setErr = errors.New("connection refused")
		_, err := NewEventClaims(cli).Claim(ctx, "evt_3", time.Hour)
		if !errors.Is(err, cli.setErr) {
			t.Fatalf("expected wrapped client error, got %v", err)
		}
	})
}
