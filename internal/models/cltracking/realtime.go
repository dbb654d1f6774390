package cltracking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const realtimeTTL = 31 * 24 * time.Hour

// Realtime compteurs du jour : scans et visiteurs uniques
type Realtime interface {
	Hit(ctx context.Context, day time.Time, visitor string) error
	Today(ctx context.Context, day time.Time) (scans int64, visitors int64, err error)
}

// NewRealtime compteurs redis si un client est fourni, en mémoire sinon
func NewRealtime(client *redis.Client) Realtime {
	if client == nil {
		return &memoryRealtime{scans: map[string]int64{}, visitors: map[string]map[string]struct{}{}}
	}
	return &redisRealtime{client: client}
}

func dailyKey(day time.Time) string {
	return fmt.Sprintf("qr_analytics:daily:%s", day.Format("2006-01-02"))
}

func visitorsKey(day time.Time) string {
	return fmt.Sprintf("qr_analytics:visitors:%s", day.Format("2006-01-02"))
}

type redisRealtime struct {
	client *redis.Client
}

func (r *redisRealtime) Hit(ctx context.Context, day time.Time, visitor string) error {
	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, dailyKey(day), "scans", 1)
	pipe.Expire(ctx, dailyKey(day), realtimeTTL)
	pipe.SAdd(ctx, visitorsKey(day), visitor)
	pipe.Expire(ctx, visitorsKey(day), realtimeTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisRealtime) Today(ctx context.Context, day time.Time) (int64, int64, error) {
	scans, err := r.client.HGet(ctx, dailyKey(day), "scans").Int64()
	if err != nil && err != redis.Nil {
		return 0, 0, err
	}
	visitors, err := r.client.SCard(ctx, visitorsKey(day)).Result()
	if err != nil && err != redis.Nil {
		return 0, 0, err
	}
	return scans, visitors, nil
}

type memoryRealtime struct {
	mu       sync.Mutex
	scans    map[string]int64
	visitors map[string]map[string]struct{}
}

func (m *memoryRealtime) Hit(_ context.Context, day time.Time, visitor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := day.Format("2006-01-02")
	m.scans[d]++
	if m.visitors[d] == nil {
		m.visitors[d] = map[string]struct{}{}
	}
	m.visitors[d][visitor] = struct{}{}
	return nil
}

func (m *memoryRealtime) Today(_ context.Context, day time.Time) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := day.Format("2006-01-02")
	return m.scans[d], int64(len(m.visitors[d])), nil
}
