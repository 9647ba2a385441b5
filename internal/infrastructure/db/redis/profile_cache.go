package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/auth-service/internal/core/ports"
	"github.com/99minutos/auth-service/internal/pkg/metrics"
)

const (
	defaultProfileTTL = 5 * time.Minute
	// generationTTL only has to outlive a single lookup; a day keeps
	// counters from piling up for usernames that are never seen again.
	generationTTL = 24 * time.Hour
)

var errStaleGeneration = errors.New("profile cache: generation changed")

// ProfileCache implements ports.ProfileCache on Redis.
// Key format: profile:<username>, generation counter profile-gen:<username>
type ProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProfileCache creates a ProfileCache wrapping the given Redis client.
func NewProfileCache(client *redis.Client, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = defaultProfileTTL
	}
	return &ProfileCache{client: client, ttl: ttl}
}

// Get returns the cached profile, or (nil, nil) on a miss.
func (c *ProfileCache) Get(ctx context.Context, username string) (*ports.UserProfile, error) {
	raw, err := c.client.Get(ctx, c.key(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.ProfileCacheTotal.WithLabelValues("miss").Inc()
			return nil, nil
		}
		metrics.ProfileCacheTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("profile cache get: %w", err)
	}

	var p ports.UserProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		metrics.ProfileCacheTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("profile cache decode: %w", err)
	}
	metrics.ProfileCacheTotal.WithLabelValues("hit").Inc()
	return &p, nil
}

// Generation returns the invalidation counter of username; 0 if never invalidated.
func (c *ProfileCache) Generation(ctx context.Context, username string) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey(username)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("profile cache generation: %w", err)
	}
	return gen, nil
}

// Set stores the profile (expires after the configured TTL) unless the
// username was invalidated after generation was read. The generation key is
// WATCHed, so an Invalidate racing with the write aborts it.
func (c *ProfileCache) Set(ctx context.Context, p *ports.UserProfile, generation int64) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("profile cache encode: %w", err)
	}

	genKey := c.generationKey(p.Username)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(p.Username), raw, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		metrics.ProfileCacheTotal.WithLabelValues("stale").Inc()
		return nil
	default:
		return fmt.Errorf("profile cache set: %w", err)
	}
}

// Invalidate removes the cached profiles of the given usernames and advances
// their generations so in-flight fills are discarded.
func (c *ProfileCache) Invalidate(ctx context.Context, usernames ...string) error {
	if len(usernames) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, u := range usernames {
			genKey := c.generationKey(u)
			pipe.Incr(ctx, genKey)
			pipe.Expire(ctx, genKey, generationTTL)
			pipe.Del(ctx, c.key(u))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("profile cache invalidate: %w", err)
	}
	return nil
}

func (c *ProfileCache) key(username string) string {
	return "profile:" + username
}

func (c *ProfileCache) generationKey(username string) string {
	return "profile-gen:" + username
}
