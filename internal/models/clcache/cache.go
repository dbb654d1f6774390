package clcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"qrcommerce/internal/clredis"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Prefix préfixe commun à toutes les clés du cache
const Prefix = "qrcode_"

// DefaultDuration durée de vie par défaut d'une entrée
const DefaultDuration = 3600 * time.Second

type Cache struct {
	store    clredis.Store
	duration atomic.Int64
	hits     atomic.Int64
	misses   atomic.Int64
}

type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Keys    int64   `json:"keys"`
	Backend string  `json:"backend"`
}

func New(store clredis.Store, duration time.Duration) *Cache {
	if duration <= 0 {
		duration = DefaultDuration
	}
	c := &Cache{store: store}
	c.duration.Store(int64(duration))
	return c
}

// SetDuration change la durée par défaut (réglage cache_duration)
func (c *Cache) SetDuration(d time.Duration) {
	if d > 0 {
		c.duration.Store(int64(d))
	}
}

func (c *Cache) Duration() time.Duration {
	return time.Duration(c.duration.Load())
}

// Get décode la valeur JSON de key dans dest, renvoie false si absente
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	raw, err := c.store.Get(ctx, Prefix+key)
	if err != nil {
		if !errors.Is(err, clredis.ErrNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		}
		c.misses.Add(1)
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("entrée de cache illisible")
		c.misses.Add(1)
		return false
	}
	c.hits.Add(1)
	return true
}

// Set encode value en JSON, ttl nul = durée par défaut
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = c.Duration()
	}
	return c.store.Set(ctx, Prefix+key, string(data), ttl)
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, Prefix+key)
}

// ClearAll supprime toutes les clés du cache
func (c *Cache) ClearAll(ctx context.Context) (int64, error) {
	n, err := c.store.DeletePrefix(ctx, Prefix)
	if err != nil {
		return n, err
	}
	log.Info().Int64("keys", n).Msg("Cache vidé")
	return n, nil
}

// Remember renvoie la valeur en cache ou la calcule avec fn puis la stocke
func Remember[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, nil
	}

	value, err := fn()
	if err != nil {
		return value, err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
	return value, nil
}

func (c *Cache) Stats(ctx context.Context) Stats {
	stats := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Backend: c.store.Backend(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	keys, err := c.store.CountPrefix(ctx, Prefix)
	if err != nil {
		log.Warn().Err(err).Msg("cache stats failed")
	}
	stats.Keys = keys
	return stats
}
