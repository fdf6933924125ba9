package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// UserBlockFilter 是用户拉黑过滤器，过滤掉用户拉黑的商品。
// 用户标识取自请求参数 user_id。
type UserBlockFilter struct {
	// Store 用于从存储中读取用户拉黑列表
	Store UserBlockStore

	// KeyPrefix 是 Store 中的 key 前缀，实际 key 为 {KeyPrefix}:{UserID}
	KeyPrefix string
}

// UserBlockStore 是用户拉黑存储接口。
type UserBlockStore interface {
	// GetUserBlocks 获取用户拉黑的商品 ID 列表
	GetUserBlocks(ctx context.Context, userID string, keyPrefix string) ([]int64, error)
}

// NewUserBlockFilter 创建一个用户拉黑过滤器。
func NewUserBlockFilter(storeAdapter *StoreAdapter, keyPrefix string) *UserBlockFilter {
	var store UserBlockStore
	if storeAdapter != nil {
		store = storeAdapter
	}
	return &UserBlockFilter{
		Store:     store,
		KeyPrefix: keyPrefix,
	}
}

func (f *UserBlockFilter) Name() string {
	return "filter.user_block"
}

func (f *UserBlockFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RankContext,
	cand *core.Candidate,
) (bool, error) {
	userID := userIDOf(rctx)
	if cand == nil || userID == "" || f.Store == nil {
		return false, nil
	}

	keyPrefix := f.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "user:block"
	}

	blockedIDs, err := f.Store.GetUserBlocks(ctx, userID, keyPrefix)
	if err != nil {
		return false, nil
	}

	for _, id := range blockedIDs {
		if cand.ID == id {
			return true, nil
		}
	}

	return false, nil
}
