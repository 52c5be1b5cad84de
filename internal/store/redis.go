package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const redisOpTimeout = 5 * time.Second

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr      string // e.g. "localhost:6379"
	Password  string
	DB        int
	Namespace string // key prefix, e.g. "scout:cache"
}

// RedisStore keeps values as plain Redis strings under a namespace prefix.
// SET replaces a value in one command, which gives Put its atomicity.
type RedisStore struct {
	client *goredis.Client
	prefix string
}

// NewRedisClient connects and pings the server.
func NewRedisClient(cfg RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedisStore connects with its own client.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client, err := NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisStoreWithClient(client, cfg.Namespace), nil
}

// NewRedisStoreWithClient shares an existing client across namespaces.
func NewRedisStoreWithClient(client *goredis.Client, namespace string) *RedisStore {
	return &RedisStore{client: client, prefix: namespace + ":"}
}

func (r *RedisStore) key(k string) string { return r.prefix + k }

func (r *RedisStore) Get(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (r *RedisStore) Put(key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	n, err := r.client.Del(ctx, r.key(key)).Result()
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedisStore) Keys() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", r.prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the underlying client. Stores sharing a client should only close it once.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
