package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// AvailabilityFilter 过滤不可售商品、锚点商品自身与购物车中已有的商品。
type AvailabilityFilter struct{}

func (f *AvailabilityFilter) Name() string {
	return "filter.availability"
}

func (f *AvailabilityFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RankContext,
	cand *core.Candidate,
) (bool, error) {
	if cand == nil || cand.Product == nil || !cand.Product.Available {
		return true, nil
	}
	if rctx == nil {
		return false, nil
	}
	if rctx.Anchor != nil && cand.ID == rctx.Anchor.ID {
		return true, nil
	}
	if _, inCart := rctx.CartProducts[cand.ID]; inCart {
		return true, nil
	}
	return false, nil
}
