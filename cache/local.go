package cache

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// LocalStore is an in-process Store used when redis is not reachable.
// Values are kept as JSON so reads behave exactly like the redis store.
type LocalStore struct {
	c *gocache.Cache
}

// NewLocalStore creates a process-local store
func NewLocalStore(defaultTTL, cleanupInterval time.Duration) *LocalStore {
	return &LocalStore{c: gocache.New(defaultTTL, cleanupInterval)}
}

// Set stores value under key; a zero expiration uses the store default
func (l *LocalStore) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if expiration == 0 {
		expiration = gocache.DefaultExpiration
	}
	l.c.Set(key, b, expiration)
	return nil
}

// Get loads the value under key into dest
func (l *LocalStore) Get(_ context.Context, key string, dest interface{}) error {
	v, ok := l.c.Get(key)
	if !ok {
		return ErrMiss
	}
	return json.Unmarshal(v.([]byte), dest)
}

// Delete removes keys
func (l *LocalStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		l.c.Delete(k)
	}
	return nil
}

// Select picks redis when it is connected, otherwise a local store
func Select(r *RedisClient) Store {
	if r.Available() {
		return r
	}
	return NewLocalStore(10*time.Minute, 5*time.Minute)
}
