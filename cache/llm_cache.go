package cache

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NewsSearchTTL is how long an identical news search is answered from cache
const NewsSearchTTL = 30 * time.Minute

// LLMCache caches AI provider results so repeated questions skip the provider
type LLMCache struct {
	store Store
}

// NewLLMCache creates a new LLM cache instance. store may be a nil *RedisClient.
func NewLLMCache(store Store) *LLMCache {
	return &LLMCache{store: store}
}

func newsKey(symbol, dataHash string) string {
	return fmt.Sprintf("llm:news:%s:%s", strings.ToUpper(symbol), dataHash)
}

// GetNews loads a cached news search result into dest.
// Returns true on a hit.
func (c *LLMCache) GetNews(ctx context.Context, symbol, dataHash string, dest interface{}) bool {
	if c == nil || c.store == nil {
		return false
	}
	return c.store.Get(ctx, newsKey(symbol, dataHash), dest) == nil
}

// SetNews caches a news search result
func (c *LLMCache) SetNews(ctx context.Context, symbol, dataHash string, value interface{}, ttl time.Duration) error {
	if c == nil || c.store == nil {
		return ErrUnavailable
	}
	return c.store.Set(ctx, newsKey(symbol, dataHash), value, ttl)
}

// GenerateDataHash creates a short hash of data, used to tell identical requests apart
func GenerateDataHash(data interface{}) string {
	jsonData, _ := json.Marshal(data)
	hash := md5.Sum(jsonData)
	return fmt.Sprintf("%x", hash[:8])
}
