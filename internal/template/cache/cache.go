// Package cache provides a Redis read-through cache in front of the template
// repository. Match paths hit templates far more often than they change, so
// primaries are kept hot under biometric:template:* keys with a short TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"biogate/internal/template/models"
	"biogate/pkg/domain"
)

const (
	keyPrefix  = "biometric:template:"
	defaultTTL = 30 * time.Minute
)

// TemplateCache stores serialized templates in Redis. A nil *TemplateCache
// is a valid no-op cache so callers need no nil checks.
type TemplateCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New builds a cache over the given Redis client. Returns nil (no-op cache)
// when the client is nil, i.e. Redis is not configured.
func New(client *redis.Client) *TemplateCache {
	if client == nil {
		return nil
	}
	return &TemplateCache{client: client, ttl: defaultTTL}
}

// cacheEntry re-exposes the feature payload, which the model hides from its
// public JSON shape; a cached template must stay usable for matching.
type cacheEntry struct {
	*models.Template
	Payload []byte `json:"payload"`
}

// Get returns the cached template or (nil, nil) on a miss. Cache errors are
// returned so the caller can log and fall through to the repository.
func (c *TemplateCache) Get(ctx context.Context, id domain.TemplateID) (*models.Template, error) {
	if c == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, keyPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get template: %w", err)
	}

	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode cached template: %w", err)
	}
	if entry.Template == nil {
		return nil, nil
	}
	entry.Template.FeaturePayload = entry.Payload
	return entry.Template, nil
}

// Put caches a template under its ID.
func (c *TemplateCache) Put(ctx context.Context, t *models.Template) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(cacheEntry{Template: t, Payload: t.FeaturePayload})
	if err != nil {
		return fmt.Errorf("encode template for cache: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+t.ID.String(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put template: %w", err)
	}
	return nil
}

// Invalidate drops a template from the cache. Missing keys are not an error.
func (c *TemplateCache) Invalidate(ctx context.Context, id domain.TemplateID) error {
	if c == nil {
		return nil
	}
	if err := c.client.Del(ctx, keyPrefix+id.String()).Err(); err != nil {
		return fmt.Errorf("cache invalidate template: %w", err)
	}
	return nil
}
