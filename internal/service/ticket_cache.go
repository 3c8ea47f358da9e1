package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/team-tickets/internal/domain"
)

// TicketCache is a read-through cache for single tickets. It is never
// consulted for workload or assignment decisions.
type TicketCache interface {
	Get(ctx context.Context, id int64) (*domain.Ticket, bool, error)
	Set(ctx context.Context, ticket *domain.Ticket) error
	Invalidate(ctx context.Context, id int64) error
}

// NopTicketCache caches nothing.
type NopTicketCache struct{}

func (NopTicketCache) Get(context.Context, int64) (*domain.Ticket, bool, error) { return nil, false, nil }
func (NopTicketCache) Set(context.Context, *domain.Ticket) error { return nil }
func (NopTicketCache) Invalidate(context.Context, int64) error { return nil }

// RedisTicketCache stores JSON encoded tickets under "<prefix>ticket:<id>".
type RedisTicketCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisTicketCache builds a cache. prefix namespaces keys per deployment.
func NewRedisTicketCache(client *redis.Client, prefix string, ttl time.Duration) *RedisTicketCache {
	return &RedisTicketCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisTicketCache) key(id int64) string {
	return c.prefix + "ticket:" + strconv.FormatInt(id, 10)
}

// Get returns the cached ticket. A miss is (nil, false, nil).
func (c *RedisTicketCache) Get(ctx context.Context, id int64) (*domain.Ticket, bool, error) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ticket domain.Ticket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		return nil, false, err
	}
	return &ticket, true, nil
}

// Set stores ticket with the configured TTL.
func (c *RedisTicketCache) Set(ctx context.Context, ticket *domain.Ticket) error {
	raw, err := json.Marshal(ticket)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(ticket.ID), raw, c.ttl).Err()
}

// Invalidate drops the cached ticket.
func (c *RedisTicketCache) Invalidate(ctx context.Context, id int64) error {
	return c.client.Del(ctx, c.key(id)).Err()
}
