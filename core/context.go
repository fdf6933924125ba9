package core

import "github.com/rushteam/shoprec/pkg/utils"

// RankContext 承载一次排序请求的锚点/场景/购物车信息，贯穿召回与排序透传。
// 请求之间相互独立：上下文只读快照，无跨请求状态。
type RankContext struct {
	// Anchor 锚点商品（商品页请求）；场景请求可为 nil。
	Anchor *Product

	// Scenario 本次请求命中的场景；无场景时为 nil（走语义路径）。
	Scenario *Scenario

	// CartProducts 购物车商品快照，key 为商品 ID。
	CartProducts map[int64]*Product

	// UseRanker 是否允许学习排序模型重排（调用方可显式关闭）。
	UseRanker bool

	// Labels 请求级标签，可驱动过滤规则（pkg/dsl）。
	Labels map[string]utils.Label

	// Params 请求级上下文参数（限流标记、实验分桶等）。
	Params map[string]any
}

// CartCategoryIDs 返回购物车商品的类目 ID 列表（保留重复，顺序不保证）。
func (rctx *RankContext) CartCategoryIDs() []int64 {
	if len(rctx.CartProducts) == 0 {
		return nil
	}
	out := make([]int64, 0, len(rctx.CartProducts))
	for _, p := range rctx.CartProducts {
		out = append(out, p.CategoryID)
	}
	return out
}

// CartIDs 返回购物车商品 ID 列表。
func (rctx *RankContext) CartIDs() []int64 {
	if len(rctx.CartProducts) == 0 {
		return nil
	}
	out := make([]int64, 0, len(rctx.CartProducts))
	for id := range rctx.CartProducts {
		out = append(out, id)
	}
	return out
}

// PutLabel 写入请求级 Label。
func (rctx *RankContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RankContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
