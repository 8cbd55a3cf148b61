package cache

import (
	"container/list"
	"strconv"
	"strings"
	"sync"
	"time"

	"demonlist/internal/model"
)

// CacheItem 缓存项
type CacheItem struct {
	key        string
	value      interface{}
	expiration time.Time
}

// LocalCache 排行榜查询结果的本地 LRU 缓存
type LocalCache struct {
	mu       sync.RWMutex
	items    map[string]*list.Element
	lruList  *list.List
	capacity int
	ttl      time.Duration

	// 统计信息
	hits   int64
	misses int64
}

// NewLocalCache 创建新的本地缓存
func NewLocalCache(capacity int) *LocalCache {
	cache := &LocalCache{
		items:    make(map[string]*list.Element),
		lruList:  list.New(),
		capacity: capacity,
		ttl:      5 * time.Minute,
	}

	cache.StartCleanup(1 * time.Minute)

	return cache
}

// SetPlayerScore 缓存玩家总分
func (c *LocalCache) SetPlayerScore(playerID string, score *model.PlayerScore) {
	c.set("score:"+playerID, score)
}

// GetPlayerScore 获取缓存的玩家总分
func (c *LocalCache) GetPlayerScore(playerID string) (*model.PlayerScore, bool) {
	value, ok := c.get("score:" + playerID)
	if !ok {
		return nil, false
	}

	if score, ok := value.(*model.PlayerScore); ok {
		return score, true
	}

	return nil, false
}

// SetTopN 缓存排行榜前N名
func (c *LocalCache) SetTopN(n int, rankings []*model.RankInfo) {
	c.set("top:"+strconv.Itoa(n), rankings)
}

// GetTopN 获取缓存的排行榜前N名
func (c *LocalCache) GetTopN(n int) ([]*model.RankInfo, bool) {
	value, ok := c.get("top:" + strconv.Itoa(n))
	if !ok {
		return nil, false
	}

	if rankings, ok := value.([]*model.RankInfo); ok {
		return rankings, true
	}

	return nil, false
}

// ClearPlayerScore 清除玩家总分缓存
func (c *LocalCache) ClearPlayerScore(playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.delete("score:" + playerID)
}

// ClearTopN 清除排行榜缓存
func (c *LocalCache) ClearTopN() {
	c.clearPrefix("top:")
}

// ClearScores 清除全部玩家总分缓存（全量重算后使用）
func (c *LocalCache) ClearScores() {
	c.clearPrefix("score:")
}

func (c *LocalCache) clearPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keysToDelete := make([]string, 0)
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			keysToDelete = append(keysToDelete, key)
		}
	}

	for _, key := range keysToDelete {
		c.delete(key)
	}
}

// Clear 清除所有缓存
func (c *LocalCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lruList.Init()
	c.hits = 0
	c.misses = 0
}

// GetStats 获取缓存统计信息
func (c *LocalCache) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}

	return map[string]interface{}{
		"hits":     c.hits,
		"misses":   c.misses,
		"hit_rate": hitRate,
		"size":     len(c.items),
		"capacity": c.capacity,
		"usage":    float64(len(c.items)) / float64(c.capacity) * 100,
	}
}

// 内部方法
func (c *LocalCache) set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.lruList.MoveToFront(elem)
		item := elem.Value.(*CacheItem)
		item.value = value
		item.expiration = time.Now().Add(c.ttl)
		return
	}

	if len(c.items) >= c.capacity {
		c.evict()
	}

	item := &CacheItem{
		key:        key,
		value:      value,
		expiration: time.Now().Add(c.ttl),
	}

	elem := c.lruList.PushFront(item)
	c.items[key] = elem
}

func (c *LocalCache) get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		c.misses++
		return nil, false
	}

	item := elem.Value.(*CacheItem)

	if time.Now().After(item.expiration) {
		c.delete(key)
		c.misses++
		return nil, false
	}

	c.lruList.MoveToFront(elem)
	c.hits++

	return item.value, true
}

func (c *LocalCache) delete(key string) {
	if elem, exists := c.items[key]; exists {
		c.lruList.Remove(elem)
		delete(c.items, key)
	}
}

func (c *LocalCache) evict() {
	elem := c.lruList.Back()
	if elem != nil {
		item := elem.Value.(*CacheItem)
		c.lruList.Remove(elem)
		delete(c.items, item.key)
	}
}

// StartCleanup 启动定期清理过期缓存
func (c *LocalCache) StartCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			c.cleanup()
		}
	}()
}

func (c *LocalCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	keysToDelete := make([]string, 0)

	for key, elem := range c.items {
		item := elem.Value.(*CacheItem)
		if now.After(item.expiration) {
			keysToDelete = append(keysToDelete, key)
		}
	}

	for _, key := range keysToDelete {
		c.delete(key)
	}
}
