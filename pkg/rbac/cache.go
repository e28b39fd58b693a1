package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/campusware/gatekeeper/pkg/observability"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const redisKeyPrefix = "gatekeeper:roletype:"

// Catalog caches role type rows. Role types change rarely and every state
// check reads them, so they get a two-level cache: an in-process LRU with TTL
// and an optional Redis tier shared across instances. Mutations to role
// types must call Invalidate.
type Catalog struct {
	store   *Store
	l1      *lru.LRU[uuid.UUID, *RoleType]
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCatalog creates a role type catalog. redisClient and metrics may be nil.
func NewCatalog(store *Store, l1Size int, ttl time.Duration, redisClient *redis.Client, metrics *observability.Metrics) *Catalog {
	return &Catalog{
		store:   store,
		l1:      lru.NewLRU[uuid.UUID, *RoleType](l1Size, nil, ttl),
		redis:   redisClient,
		ttl:     ttl,
		metrics: metrics,
	}
}

// RoleType returns a role type by id, from cache when possible.
func (c *Catalog) RoleType(ctx context.Context, id uuid.UUID) (*RoleType, error) {
	if rt, ok := c.l1.Get(id); ok {
		c.hit("l1")
		return rt, nil
	}
	c.miss("l1")

	if c.redis != nil {
		data, err := c.redis.Get(ctx, redisKeyPrefix+id.String()).Bytes()
		if err == nil {
			rt := &RoleType{}
			if err := json.Unmarshal(data, rt); err == nil {
				c.hit("l2")
				c.l1.Add(id, rt)
				return rt, nil
			}
		}
		c.miss("l2")
	}

	rt, err := c.store.GetRoleType(ctx, id)
	if err != nil {
		return nil, err
	}
	c.add(ctx, rt)
	return rt, nil
}

// RoleTypes returns role types for a set of ids, fetching uncached ids from
// the store in one query.
func (c *Catalog) RoleTypes(ctx context.Context, ids []uuid.UUID) ([]*RoleType, error) {
	result := make([]*RoleType, 0, len(ids))
	missing := make([]uuid.UUID, 0)
	for _, id := range ids {
		if rt, ok := c.l1.Get(id); ok {
			c.hit("l1")
			result = append(result, rt)
		} else {
			c.miss("l1")
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		fetched, err := c.store.RoleTypesByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, rt := range fetched {
			c.add(ctx, rt)
			result = append(result, rt)
		}
	}
	return result, nil
}

// Invalidate drops a role type from both cache tiers. Call after any role
// type mutation.
func (c *Catalog) Invalidate(ctx context.Context, id uuid.UUID) error {
	c.l1.Remove(id)
	if c.redis != nil {
		if err := c.redis.Del(ctx, redisKeyPrefix+id.String()).Err(); err != nil {
			return fmt.Errorf("failed to invalidate role type in redis: %w", err)
		}
	}
	return nil
}

func (c *Catalog) add(ctx context.Context, rt *RoleType) {
	c.l1.Add(rt.ID, rt)
	if c.redis != nil {
		if data, err := json.Marshal(rt); err == nil {
			// Best effort; a failed redis write only costs a later miss.
			c.redis.Set(ctx, redisKeyPrefix+rt.ID.String(), data, c.ttl)
		}
	}
}

func (c *Catalog) hit(tier string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(tier).Inc()
	}
}

func (c *Catalog) miss(tier string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(tier).Inc()
	}
}
