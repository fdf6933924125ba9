package rerank

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
)

// TopNNode 是一个 Top-N 截断节点，用于在排序后截取前 N 个候选。
// 通常在排序（Rank）节点之后使用，用于限制返回结果数量。
//
// 使用场景：
//   - 排序后只返回 Top 10/20/50 个结果
//   - 控制推荐结果数量，提升性能
//   - 配合多样性重排使用
type TopNNode struct {
	// N 要保留的候选数量（Top N）
	// 如果 N <= 0，则返回所有候选（不截断）
	// 如果 N > len(candidates)，则返回所有候选
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	_ *core.RankContext,
	candidates []*core.Candidate,
) ([]*core.Candidate, error) {
	if n.N <= 0 {
		return candidates, nil
	}
	if len(candidates) <= n.N {
		return candidates, nil
	}
	return candidates[:n.N], nil
}
