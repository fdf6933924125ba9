package rerank

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
)

// Diversity 是一个类目多样性重排节点：限制同一类目最多出现
// MaxPerCategory 个候选，避免语义召回把整页刷成同一个类目。
// 保序：保留的候选维持传入的分数顺序。
type Diversity struct {
	// MaxPerCategory 每个类目保留的候选上限；<= 0 时取 2
	MaxPerCategory int
}

func (n *Diversity) Name() string {
	return "rerank.diversity"
}

func (n *Diversity) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RankContext,
	candidates []*core.Candidate,
) ([]*core.Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	maxPer := n.MaxPerCategory
	if maxPer <= 0 {
		maxPer = 2
	}

	seen := make(map[int64]int, 32)
	out := make([]*core.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c == nil {
			continue
		}
		// 没有类目信息的候选不参与限流
		if c.Product == nil || c.Product.CategoryID == 0 {
			out = append(out, c)
			continue
		}
		if seen[c.Product.CategoryID] >= maxPer {
			continue
		}
		seen[c.Product.CategoryID]++
		out = append(out, c)
	}
	return out, nil
}
