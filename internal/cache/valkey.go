package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyCache implements PlaceCache on a Valkey (Redis-compatible) server.
type ValkeyCache struct {
	client valkey.Client
	ttl    time.Duration
}

// NewValkeyCache connects to the Valkey server at addr. Entries expire after ttl
// (no expiry when ttl <= 0).
func NewValkeyCache(addr string, ttl time.Duration) (*ValkeyCache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &ValkeyCache{client: client, ttl: ttl}, nil
}

// Get implements PlaceCache.Get.
func (c *ValkeyCache) Get(ctx context.Context, key string) (string, bool, error) {
	name, err := c.client.Do(ctx, c.client.B().Get().Key(keyPrefix+key).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return name, true, nil
}

// Set implements PlaceCache.Set.
func (c *ValkeyCache) Set(ctx context.Context, key string, name string) error {
	if c.ttl <= 0 {
		return c.client.Do(ctx, c.client.B().Set().Key(keyPrefix+key).Value(name).Build()).Error()
	}
	return c.client.Do(ctx, c.client.B().Set().Key(keyPrefix+key).Value(name).Ex(c.ttl).Build()).Error()
}

// Ping checks if the server is reachable. Used for health checks.
func (c *ValkeyCache) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (c *ValkeyCache) Close() error {
	c.client.Close()
	return nil
}
