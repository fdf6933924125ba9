package rank

import (
	"context"
	"sort"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/embedding"
	"github.com/rushteam/shoprec/feedback"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/utils"
)

// FormulaNode 公式打分节点。对候选集批量读取反馈计数，
// 结合嵌入相似度与折扣算出 [0,1] 分数并降序排列。
// 没有模型制品时这就是最终排序；有模型时作为重排失败的兜底分。
type FormulaNode struct {
	scorer     *FormulaScorer
	feedback   *feedback.Service
	embeddings *embedding.Store
}

func NewFormulaNode(scorer *FormulaScorer, fb *feedback.Service, embeddings *embedding.Store) *FormulaNode {
	return &FormulaNode{scorer: scorer, feedback: fb, embeddings: embeddings}
}

func (n *FormulaNode) Name() string        { return "rank.formula" }
func (n *FormulaNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *FormulaNode) Process(ctx context.Context, rctx *core.RankContext, candidates []*core.Candidate) ([]*core.Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	candidateIDs := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		candidateIDs = append(candidateIDs, c.ID)
	}

	var anchorID int64
	var anchorVec []float64
	if rctx.Anchor != nil {
		anchorID = rctx.Anchor.ID
		anchorVec, _ = n.embeddings.Get(anchorID)
	}

	pairStats := map[int64]core.FeedbackStats{}
	if anchorID != 0 {
		var err error
		pairStats, err = n.feedback.PairStats(ctx, anchorID, candidateIDs)
		if err != nil {
			return nil, err
		}
	}

	scenarioStats := map[int64]core.FeedbackStats{}
	if rctx.Scenario != nil {
		// 场景反馈计数按 (场景, 分组) 维度存储，按候选的召回分组分批读取
		byGroup := make(map[string][]int64)
		for _, c := range candidates {
			byGroup[c.GroupName] = append(byGroup[c.GroupName], c.ID)
		}
		for groupName, ids := range byGroup {
			stats, err := n.feedback.ScenarioStats(ctx, rctx.Scenario.ID, groupName, ids)
			if err != nil {
				return nil, err
			}
			for id, st := range stats {
				scenarioStats[id] = st
			}
		}
	}

	vectors := n.embeddings.BatchGet(candidateIDs)
	for _, c := range candidates {
		in := ScoreInput{
			PairStats:     pairStats[c.ID],
			ScenarioStats: scenarioStats[c.ID],
		}
		if vec, ok := vectors[c.ID]; ok && anchorVec != nil {
			in.Cosine = embedding.Cosine(anchorVec, vec)
			in.HasCosine = true
		}
		if c.Product != nil {
			in.DiscountFraction = c.Product.DiscountFraction()
		}
		c.Score = n.scorer.Score(in)
		c.PutLabel("rank_formula", utils.Label{Value: "formula", Source: "rank"})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates, nil
}

var _ pipeline.Node = (*FormulaNode)(nil)
