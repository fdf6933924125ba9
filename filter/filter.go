package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/conv"
)

// Filter 是过滤器的抽象接口，用于判断一个候选商品是否应该被过滤掉。
// 返回 true 表示应该过滤（移除），false 表示保留。
type Filter interface {
	// Name 返回过滤器名称
	Name() string

	// ShouldFilter 判断候选是否应该被过滤
	ShouldFilter(ctx context.Context, rctx *core.RankContext, cand *core.Candidate) (bool, error)
}

// userIDOf 从请求参数中取用户标识，未设置时返回空串。
func userIDOf(rctx *core.RankContext) string {
	if rctx == nil || rctx.Params == nil {
		return ""
	}
	if s, ok := conv.ToString(rctx.Params["user_id"]); ok {
		return s
	}
	return ""
}
