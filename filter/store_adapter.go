package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rushteam/shoprec/core"
)

// BloomFilterChecker 是布隆过滤器检查器接口。
// 可以通过实现此接口来提供自定义的布隆过滤器检查逻辑。
type BloomFilterChecker interface {
	// CheckInBloomFilter 检查 productID 是否在指定日期的布隆过滤器中
	// key 是布隆过滤器的存储 key，格式为 {keyPrefix}:bloom:{userID}:{date}
	// 返回 true 表示可能在布隆过滤器中（存在误判可能），false 表示一定不在
	CheckInBloomFilter(ctx context.Context, key string, productID int64) (bool, error)
}

// StoreAdapter 将 core.Store 适配为过滤器所需的存储接口。
type StoreAdapter struct {
	store core.Store

	// BloomFilterChecker 是可选的布隆过滤器检查器
	// 如果为 nil，CheckExposedInBloomFilter 将返回 false（未实现）
	BloomFilterChecker BloomFilterChecker
}

// NewStoreAdapter 创建一个 core.Store 适配器。
func NewStoreAdapter(s core.Store) *StoreAdapter {
	return &StoreAdapter{store: s}
}

// NewStoreAdapterWithBloomFilter 创建一个带布隆过滤器检查器的 core.Store 适配器。
func NewStoreAdapterWithBloomFilter(s core.Store, checker BloomFilterChecker) *StoreAdapter {
	return &StoreAdapter{
		store:              s,
		BloomFilterChecker: checker,
	}
}

// GetBlacklist 从 Store 读取黑名单。
func (a *StoreAdapter) GetBlacklist(ctx context.Context, key string) ([]int64, error) {
	data, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}

	return ids, nil
}

// GetUserBlocks 从 Store 读取用户拉黑列表。
func (a *StoreAdapter) GetUserBlocks(ctx context.Context, userID string, keyPrefix string) ([]int64, error) {
	key := keyPrefix + ":" + userID
	return a.GetBlacklist(ctx, key)
}

// GetExposedItems 从 Store 读取用户曝光历史。
func (a *StoreAdapter) GetExposedItems(ctx context.Context, userID string, keyPrefix string, timeWindow int64) ([]int64, error) {
	key := keyPrefix + ":" + userID
	data, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	cutoffTime := now - timeWindow

	// 尝试解析为简单 ID 列表
	var ids []int64
	if err := json.Unmarshal(data, &ids); err == nil {
		return ids, nil
	}

	// 尝试解析为带时间戳的列表
	var items []struct {
		ProductID int64 `json:"product_id"`
		Timestamp int64 `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &items); err == nil {
		ids = make([]int64, 0, len(items))
		for _, item := range items {
			if timeWindow > 0 && item.Timestamp < cutoffTime {
				continue
			}
			ids = append(ids, item.ProductID)
		}
		return ids, nil
	}

	return nil, err
}

// CheckExposedInBloomFilter 检查商品是否在布隆过滤器中（较长周期数据，按天维度）。
// dayWindow 是时间窗口（天数），检查最近 dayWindow 天内的布隆过滤器。
// 返回 true 表示可能在布隆过滤器中（存在误判可能），false 表示一定不在。
//
// 布隆过滤器的 key 格式：{keyPrefix}:bloom:{userID}:{date}，其中 date 为 YYYYMMDD 格式。
//
// 注意：此方法需要设置 BloomFilterChecker，否则返回 false（未实现）。
// 可以通过扩展包实现具体检查逻辑，例如基于 Redis 的布隆过滤器。
func (a *StoreAdapter) CheckExposedInBloomFilter(ctx context.Context, userID string, productID int64, keyPrefix string, dayWindow int) (bool, error) {
	if a.BloomFilterChecker == nil {
		return false, nil
	}

	if dayWindow <= 0 {
		return false, nil
	}

	now := time.Now()
	for i := 0; i < dayWindow; i++ {
		date := now.AddDate(0, 0, -i)
		dateStr := date.Format("20060102")
		key := fmt.Sprintf("%s:bloom:%s:%s", keyPrefix, userID, dateStr)

		exists, err := a.BloomFilterChecker.CheckInBloomFilter(ctx, key, productID)
		if err != nil {
			// 某个日期检查失败时继续检查其他日期
			continue
		}
		if exists {
			return true, nil
		}
	}

	return false, nil
}
