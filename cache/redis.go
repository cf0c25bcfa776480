package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrUnavailable is returned by every operation when redis is not connected
var ErrUnavailable = errors.New("redis client not initialized")

// ErrMiss is returned by LocalStore for absent or expired keys
var ErrMiss = errors.New("cache miss")

// Store is the JSON key/value surface services cache through
type Store interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

// IsMiss reports whether err means the key was absent or the cache is down
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil) || errors.Is(err, ErrMiss) || errors.Is(err, ErrUnavailable)
}

// RedisClient wraps redis.Client.
// A nil *RedisClient is valid and behaves as an always-empty cache.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client, or returns nil when redis cannot be reached
func NewRedisClient(host, port, password string) *RedisClient {
	addr := fmt.Sprintf("%s:%s", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("⚠️  Failed to connect to Redis, caching disabled")
		_ = client.Close()
		return nil
	}

	log.Info().Str("addr", addr).Msg("✅ Connected to Redis")
	return &RedisClient{client: client}
}

func (r *RedisClient) ready() bool {
	return r != nil && r.client != nil
}

// Set stores a value in Redis as JSON with expiration
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if !r.ready() {
		return ErrUnavailable
	}

	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, key, jsonBytes, expiration).Err()
}

// Get retrieves a JSON value from Redis into dest
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	if !r.ready() {
		return ErrUnavailable
	}

	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}

	return json.Unmarshal(val, dest)
}

// Delete removes keys from Redis
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if !r.ready() {
		return ErrUnavailable
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Publish sends a JSON message to a channel
func (r *RedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	if !r.ready() {
		return ErrUnavailable
	}

	jsonBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, channel, jsonBytes).Err()
}

// Subscribe subscribes to a channel, nil when redis is unavailable
func (r *RedisClient) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	if !r.ready() {
		return nil
	}
	return r.client.Subscribe(ctx, channel)
}

// Ping checks the connection
func (r *RedisClient) Ping(ctx context.Context) error {
	if !r.ready() {
		return ErrUnavailable
	}
	return r.client.Ping(ctx).Err()
}

// Available reports whether redis is connected
func (r *RedisClient) Available() bool {
	return r.ready()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r.ready() {
		return r.client.Close()
	}
	return nil
}
