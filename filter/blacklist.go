package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// BlacklistFilter 是黑名单过滤器，过滤掉运营下架/投诉下线的商品。
type BlacklistFilter struct {
	// ProductIDs 是内存中的黑名单商品 ID 列表
	ProductIDs []int64

	// Store 用于从存储中读取黑名单（可选）
	Store BlacklistStore

	// Key 是 Store 中的黑名单 key（可选）
	Key string
}

// BlacklistStore 是黑名单存储接口。
type BlacklistStore interface {
	// GetBlacklist 获取黑名单商品 ID 列表
	GetBlacklist(ctx context.Context, key string) ([]int64, error)
}

// NewBlacklistFilter 创建一个黑名单过滤器。
func NewBlacklistFilter(productIDs []int64, storeAdapter *StoreAdapter, key string) *BlacklistFilter {
	var store BlacklistStore
	if storeAdapter != nil {
		store = storeAdapter
	}
	return &BlacklistFilter{
		ProductIDs: productIDs,
		Store:      store,
		Key:        key,
	}
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

func (f *BlacklistFilter) ShouldFilter(
	ctx context.Context,
	_ *core.RankContext,
	cand *core.Candidate,
) (bool, error) {
	if cand == nil {
		return true, nil
	}

	for _, id := range f.ProductIDs {
		if cand.ID == id {
			return true, nil
		}
	}

	if f.Store != nil && f.Key != "" {
		blacklist, err := f.Store.GetBlacklist(ctx, f.Key)
		if err == nil {
			for _, id := range blacklist {
				if cand.ID == id {
					return true, nil
				}
			}
		}
	}

	return false, nil
}
