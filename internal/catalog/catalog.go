// Package catalog gives the ledger read-only access to security prices.
// Rows come from the securities table and are cached in Redis.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/models"
)

// SecuritySource loads catalog rows from the database
type SecuritySource interface {
	GetSecurity(ctx context.Context, id int64) (*models.Security, error)
}

// cacheClient is the subset of the Redis client used by the catalog
type cacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Catalog serves security rows and quotes
type Catalog struct {
	source SecuritySource
	cache  cacheClient
	ttl    time.Duration
	maxAge time.Duration
	now    func() time.Time
}

// New creates a Catalog. cache may be nil, in which case every read goes to source.
// maxAge is the freshness threshold after which a price is treated as unknown.
func New(source SecuritySource, cache cacheClient, ttl, maxAge time.Duration) *Catalog {
	return &Catalog{
		source: source,
		cache:  cache,
		ttl:    ttl,
		maxAge: maxAge,
		now:    time.Now,
	}
}

func cacheKey(id int64) string {
	return "ledger:security:" + strconv.FormatInt(id, 10)
}

// Security returns a catalog row, from cache when possible
func (c *Catalog) Security(ctx context.Context, id int64) (*models.Security, error) {
	if c.cache != nil {
		raw, err := c.cache.Get(ctx, cacheKey(id)).Result()
		switch {
		case err == nil:
			var s models.Security
			if jsonErr := json.Unmarshal([]byte(raw), &s); jsonErr == nil {
				return &s, nil
			}
			slog.Warn("discarding unreadable cached security", "security_id", id)
		case !errors.Is(err, redis.Nil):
			slog.Warn("security cache read failed", "security_id", id, "err", err)
		}
	}

	s, err := c.source.GetSecurity(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		data, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal security: %w", err)
		}
		if err := c.cache.Set(ctx, cacheKey(id), data, c.ttl).Err(); err != nil {
			slog.Warn("security cache write failed", "security_id", id, "err", err)
		}
	}
	return s, nil
}

// Invalidate drops a cached row, e.g. after the external catalog refreshes prices
func (c *Catalog) Invalidate(ctx context.Context, id int64) error {
	if c.cache == nil {
		return nil
	}
	if err := c.cache.Del(ctx, cacheKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate security %d: %w", id, err)
	}
	return nil
}

// Quote returns the security's last price as recorded in the catalog
func (c *Catalog) Quote(ctx context.Context, id int64) (models.Quote, error) {
	s, err := c.Security(ctx, id)
	if err != nil {
		return models.Quote{}, err
	}
	return models.QuoteFromSecurity(s), nil
}

// Price returns a usable last price. A missing price, or one older than the
// freshness threshold, comes back invalid together with a warning.
func (c *Catalog) Price(ctx context.Context, id int64) (decimal.NullDecimal, *apperrors.StaleDataWarning, error) {
	q, err := c.Quote(ctx, id)
	if err != nil {
		return decimal.NullDecimal{}, nil, err
	}
	if w := c.staleness(q); w != nil {
		return decimal.NullDecimal{}, w, nil
	}
	return q.Price, nil, nil
}

func (c *Catalog) staleness(q models.Quote) *apperrors.StaleDataWarning {
	if !q.Price.Valid {
		return &apperrors.StaleDataWarning{SecurityID: q.SecurityID, LastUpdated: q.AsOf}
	}
	if c.maxAge > 0 && (q.AsOf == nil || c.now().Sub(*q.AsOf) > c.maxAge) {
		return &apperrors.StaleDataWarning{SecurityID: q.SecurityID, LastUpdated: q.AsOf}
	}
	return nil
}
