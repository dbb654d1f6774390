package clredis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound clé absente ou expirée
var ErrNotFound = errors.New("clé introuvable")

// Store stockage clé/valeur avec expiration
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
	CountPrefix(ctx context.Context, prefix string) (int64, error)
	Backend() string
}

// New renvoie un store redis si un client est fourni, mémoire sinon
func New(client *redis.Client) Store {
	if client == nil {
		return NewMemoryStore()
	}
	return &RedisStore{client: client}
}

// NewClient crée le client redis ou nil si aucune adresse n'est configurée
func NewClient(addr string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
}

type RedisStore struct {
	client *redis.Client
}

func (r *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return val, err
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	var deleted int64
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := r.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	return deleted, iter.Err()
}

func (r *RedisStore) CountPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count, iter.Err()
}

func (r *RedisStore) Backend() string {
	return "redis"
}

type memoryItem struct {
	value     string
	expiresAt time.Time
}

// MemoryStore remplace redis quand il n'est pas configuré
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = item
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return "", ErrNotFound
	}
	if m.expired(item) {
		delete(m.items, key)
		return "", ErrNotFound
	}
	return item.value, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStore) CountPrefix(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for key, item := range m.items {
		if strings.HasPrefix(key, prefix) && !m.expired(item) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) Backend() string {
	return "memory"
}

func (m *MemoryStore) expired(item memoryItem) bool {
	return !item.expiresAt.IsZero() && m.now().After(item.expiresAt)
}

// CaptchaStore adapte un Store à l'interface base64Captcha.Store
type CaptchaStore struct {
	store      Store
	expiration time.Duration
}

func NewCaptchaStore(store Store) *CaptchaStore {
	return &CaptchaStore{
		store:      store,
		expiration: 5 * time.Minute,
	}
}

func (r *CaptchaStore) Set(id string, value string) error {
	return r.store.Set(context.Background(), "captcha:"+id, value, r.expiration)
}

func (r *CaptchaStore) Get(id string, clear bool) string {
	ctx := context.Background()
	key := "captcha:" + id
	val, _ := r.store.Get(ctx, key)
	if clear {
		r.store.Delete(ctx, key)
	}
	return val
}

func (r *CaptchaStore) Verify(id, answer string, clear bool) bool {
	v := r.Get(id, clear)
	return v != "" && v == answer
}
