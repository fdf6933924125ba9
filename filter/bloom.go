package filter

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/rushteam/shoprec/core"
)

// StoreBloomChecker 是基于 core.Store 的布隆过滤器检查器。
// 过滤器按 key 序列化存放在 KV 后端（生产用 store.RedisStore），
// 反序列化结果本地缓存，同一请求内多次检查不重复读取。
type StoreBloomChecker struct {
	store core.Store

	// capacity 预期元素数量
	capacity uint
	// falsePositiveRate 期望误判率，例如 0.01
	falsePositiveRate float64

	mu    sync.RWMutex
	cache map[string]*bloom.BloomFilter
}

var _ BloomFilterChecker = (*StoreBloomChecker)(nil)

// NewStoreBloomChecker 创建布隆过滤器检查器。
func NewStoreBloomChecker(s core.Store, capacity uint, falsePositiveRate float64) *StoreBloomChecker {
	return &StoreBloomChecker{
		store:             s,
		capacity:          capacity,
		falsePositiveRate: falsePositiveRate,
		cache:             make(map[string]*bloom.BloomFilter),
	}
}

// CheckInBloomFilter 检查 productID 是否可能在 key 对应的过滤器中。
// key 不存在表示一定不在。
func (c *StoreBloomChecker) CheckInBloomFilter(ctx context.Context, key string, productID int64) (bool, error) {
	c.mu.RLock()
	cached := c.cache[key]
	c.mu.RUnlock()
	if cached != nil {
		return cached.Test(bloomItem(productID)), nil
	}

	data, err := c.store.Get(ctx, key)
	if core.IsStoreNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("读取布隆过滤器失败: %w", err)
	}

	bf := bloom.NewWithEstimates(c.capacity, c.falsePositiveRate)
	if _, err := bf.ReadFrom(bytes.NewReader(data)); err != nil {
		return false, fmt.Errorf("布隆过滤器反序列化失败: %w", err)
	}

	c.mu.Lock()
	c.cache[key] = bf
	c.mu.Unlock()
	return bf.Test(bloomItem(productID)), nil
}

// AddToBloomFilter 把 productID 写进 key 对应的过滤器并回写存储。
// 曝光采集侧使用；ttlSeconds <= 0 表示不过期。
func (c *StoreBloomChecker) AddToBloomFilter(ctx context.Context, key string, productID int64, ttlSeconds int) error {
	c.mu.Lock()
	bf := c.cache[key]
	if bf == nil {
		data, err := c.store.Get(ctx, key)
		switch {
		case core.IsStoreNotFound(err):
			bf = bloom.NewWithEstimates(c.capacity, c.falsePositiveRate)
		case err != nil:
			c.mu.Unlock()
			return fmt.Errorf("读取布隆过滤器失败: %w", err)
		default:
			bf = bloom.NewWithEstimates(c.capacity, c.falsePositiveRate)
			if _, err := bf.ReadFrom(bytes.NewReader(data)); err != nil {
				c.mu.Unlock()
				return fmt.Errorf("布隆过滤器反序列化失败: %w", err)
			}
		}
		c.cache[key] = bf
	}
	bf.Add(bloomItem(productID))

	var buf bytes.Buffer
	if _, err := bf.WriteTo(&buf); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("布隆过滤器序列化失败: %w", err)
	}
	c.mu.Unlock()

	if ttlSeconds > 0 {
		return c.store.Set(ctx, key, buf.Bytes(), ttlSeconds)
	}
	return c.store.Set(ctx, key, buf.Bytes())
}

func bloomItem(productID int64) []byte {
	return []byte(strconv.FormatInt(productID, 10))
}
