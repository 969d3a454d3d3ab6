package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned by backends for unknown or expired sessions
var ErrNotFound = errors.New("session not found")

// Backend stores encoded sessions
type Backend interface {
	Load(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, id string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

const redisKeyPrefix = "floratio:session:"

// RedisBackend keeps sessions in Redis with a TTL per key
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects to redisURL (redis://host:port/db)
func NewRedisBackend(ctx context.Context, redisURL string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Connected to Redis")
	return &RedisBackend{client: client}, nil
}

// NewRedisBackendFromClient wraps an existing client
func NewRedisBackendFromClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Load(ctx context.Context, id string) ([]byte, error) {
	data, err := b.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

func (b *RedisBackend) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	return b.client.Set(ctx, redisKeyPrefix+id, data, ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, id string) error {
	return b.client.Del(ctx, redisKeyPrefix+id).Err()
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// MemoryBackend keeps sessions in process memory
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry), now: time.Now}
}

func (b *MemoryBackend) Load(ctx context.Context, id string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expires.IsZero() && b.now().After(e.expires) {
		delete(b.entries, id)
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.data...), nil
}

func (b *MemoryBackend) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := memoryEntry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		e.expires = b.now().Add(ttl)
	}
	b.entries[id] = e
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, id)
	return nil
}

func (b *MemoryBackend) Ping(ctx context.Context) error {
	return nil
}

// Sweep drops expired sessions and returns how many were removed
func (b *MemoryBackend) Sweep() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	now := b.now()
	for id, e := range b.entries {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(b.entries, id)
			n++
		}
	}
	return n
}
