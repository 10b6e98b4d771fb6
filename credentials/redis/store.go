// Package redis provides a Redis-backed credential store, for clients that
// share one session between several processes.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/bluecollar-client/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var (
	_ credentials.Store   = (*Store)(nil)
	_ credentials.Batcher = (*Store)(nil)
)

// clientInterface abstracts the Redis operations the store uses
type clientInterface interface {
	get(ctx context.Context, key string) (string, bool, error)
	set(ctx context.Context, values map[string]string) error
	del(ctx context.Context, keys ...string) error
	ping(ctx context.Context) error
	close() error
}

// Config holds Redis connection configuration
type Config struct {
	Addr        string        // Redis server address
	Password    string        // Redis password
	DB          int           // Redis database number
	DialTimeout time.Duration // Connection timeout
	Prefix      string        // Key prefix for namespacing
}

// Store keeps credentials under prefixed Redis keys.
type Store struct {
	client clientInterface
	prefix string
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	client := &redisClientWrapper{client: redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.ping(pingCtx); err != nil {
		_ = client.close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	log.Debug().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Connected to Redis credential store")

	return newStore(client, cfg.Prefix), nil
}

func newStore(client clientInterface, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) buildKey(key string) string {
	return s.prefix + key
}

func (s *Store) Close() error {
	return s.client.close()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, ok, err := s.client.get(ctx, s.buildKey(key))
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return "", credentials.ErrNotFound
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.SetAll(ctx, map[string]string{key: value})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.DeleteAll(ctx, key)
}

// SetAll writes every value in a single MULTI/EXEC transaction.
func (s *Store) SetAll(ctx context.Context, values map[string]string) error {
	prefixed := make(map[string]string, len(values))
	for k, v := range values {
		prefixed[s.buildKey(k)] = v
	}
	if err := s.client.set(ctx, prefixed); err != nil {
		return fmt.Errorf("set credentials: %w", err)
	}
	return nil
}

// DeleteAll removes every key with one DEL.
func (s *Store) DeleteAll(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, k := range keys {
		prefixed = append(prefixed, s.buildKey(k))
	}
	if err := s.client.del(ctx, prefixed...); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

// redisClientWrapper wraps redis.Client to implement our interface
type redisClientWrapper struct {
	client *redis.Client
}

func (r *redisClientWrapper) get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *redisClientWrapper) set(ctx context.Context, values map[string]string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, k, v, 0)
		}
		return nil
	})
	return err
}

func (r *redisClientWrapper) del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisClientWrapper) ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisClientWrapper) close() error {
	return r.client.Close()
}
