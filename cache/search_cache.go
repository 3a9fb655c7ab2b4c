package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TuneBay/logger"

	"github.com/redis/go-redis/v9"
)

// searchKeyPrefix 搜索结果缓存键前缀
const searchKeyPrefix = "tunebay:cache:search:"

// SearchCache 在 Redis 中缓存目录搜索结果。
// TTL 较短：采集流水线随时会写入新曲目，缓存以 TTL 为过期上限，
// 元数据修改与删除通过 Invalidate 立即失效。
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSearchCache 创建搜索缓存
func NewSearchCache(client *redis.Client, ttl time.Duration) *SearchCache {
	return &SearchCache{client: client, ttl: ttl}
}

func searchKey(query string) string {
	return fmt.Sprintf("%s%s", searchKeyPrefix, query)
}

// Get 查询缓存。未命中或缓存不可用时返回 (nil, false)。
func (c *SearchCache) Get(ctx context.Context, query string) (json.RawMessage, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, searchKey(query)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("读取搜索缓存失败", logger.ErrorField(err))
		}
		return nil, false
	}
	return json.RawMessage(data), true
}

// Set 写入缓存。缓存故障只记录日志，不影响搜索本身。
func (c *SearchCache) Set(ctx context.Context, query string, payload any) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("序列化搜索缓存失败", logger.ErrorField(err))
		return
	}
	if err := c.client.Set(ctx, searchKey(query), data, c.ttl).Err(); err != nil {
		logger.Warn("写入搜索缓存失败", logger.ErrorField(err))
	}
}

// Invalidate 清除全部搜索缓存，在曲目元数据变更或删除后调用
func (c *SearchCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}

	iter := c.client.Scan(ctx, 0, searchKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Warn("扫描搜索缓存失败", logger.ErrorField(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Warn("清除搜索缓存失败", logger.ErrorField(err))
	}
}
