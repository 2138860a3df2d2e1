package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quantumpay-core/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// QuoteCache implements ports.QuoteCache using Redis. Quotes live only
// here; there is no durable copy, so a cache flush simply forces clients
// to re-quote.
type QuoteCache struct {
	client *goredis.Client
	prefix string
}

// NewQuoteCache creates a new Redis-backed quote cache.
func NewQuoteCache(client *goredis.Client) *QuoteCache {
	return &QuoteCache{
		client: client,
		prefix: "quote:",
	}
}

// Put stores a quote under its id with the given TTL.
func (c *QuoteCache) Put(ctx context.Context, quote *domain.Quote, ttl time.Duration) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("marshal quote: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+quote.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis quote put: %w", err)
	}
	return nil
}

// Consume atomically fetches and deletes a quote. GETDEL guarantees a
// quote id can only ever be consumed by one caller, even under
// concurrent execution requests. Returns nil, nil when absent.
func (c *QuoteCache) Consume(ctx context.Context, quoteID string) (*domain.Quote, error) {
	val, err := c.client.GetDel(ctx, c.prefix+quoteID).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis quote consume: %w", err)
	}

	var quote domain.Quote
	if err := json.Unmarshal(val, &quote); err != nil {
		return nil, fmt.Errorf("unmarshal quote: %w", err)
	}
	return &quote, nil
}
