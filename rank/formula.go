// Package rank 提供排序阶段的两种打分器与对应的 pipeline 节点：
// 公式打分（无模型兜底，始终可用）与学习排序重排（有模型制品时生效，
// 失败或超时回退公式分）。
package rank

import (
	"fmt"

	"github.com/rushteam/shoprec/core"
)

// ScoreInput 是公式打分的输入信号。缺失的信号不参与加分。
type ScoreInput struct {
	// Cosine 锚点与候选的嵌入余弦相似度；HasCosine 为 false 时忽略
	Cosine    float64
	HasCosine bool

	PairStats     core.FeedbackStats
	ScenarioStats core.FeedbackStats

	// DiscountFraction 折扣比例（0~1），无促销为 0
	DiscountFraction float64
}

// FormulaScorer 商品页公式打分器。
//
// score = base
//   - similarityW * cosine（有嵌入时）
//   - pairW * (pairApproval - 0.5)（有商品对反馈时）
//   - scenarioW * (scenarioApproval - 0.5)（有场景反馈时）
//   - discountW * discountFraction（有促销时）
//
// 通过率经 Laplace 平滑，无数据收敛于 0.5，对应加分项为零。
// 结果截断到 [0, 1]。
type FormulaScorer struct {
	cfg core.ScoringConfig
}

func NewFormulaScorer(cfg core.ScoringConfig) *FormulaScorer {
	return &FormulaScorer{cfg: cfg}
}

func (s *FormulaScorer) Score(in ScoreInput) float64 {
	score := s.cfg.FormulaBase
	if in.HasCosine {
		score += s.cfg.FormulaSimilarityW * in.Cosine
	}
	if in.PairStats.Total() > 0 {
		score += s.cfg.FormulaPairFeedbackW * (in.PairStats.ApprovalRate() - 0.5)
	}
	if in.ScenarioStats.Total() > 0 {
		score += s.cfg.FormulaScenarioW * (in.ScenarioStats.ApprovalRate() - 0.5)
	}
	score += s.cfg.FormulaDiscountW * in.DiscountFraction
	return clamp01(score)
}

// GroupScoreInput 是场景分组打分的输入信号。
type GroupScoreInput struct {
	// MaxCartCosine 候选与购物车商品嵌入的最大余弦相似度；无购物车嵌入时为 0
	MaxCartCosine float64

	// ScenarioStats 候选在 (场景, 分组) 维度的反馈计数
	ScenarioStats core.FeedbackStats

	DiscountFraction float64
}

// GroupScore 场景路径分组候选打分。
// score = base + similarityW*maxCartCos + feedbackW*(approval-0.5)（有反馈时）
// + discountW*discount，截断到 [0, 1]。
func (s *FormulaScorer) GroupScore(in GroupScoreInput) float64 {
	score := s.cfg.FormulaBase
	score += s.cfg.GroupSimilarityW * in.MaxCartCosine
	if in.ScenarioStats.Total() > 0 {
		score += s.cfg.GroupFeedbackW * (in.ScenarioStats.ApprovalRate() - 0.5)
	}
	score += s.cfg.GroupDiscountW * in.DiscountFraction
	return clamp01(score)
}

// GroupReason 场景分组候选的推荐理由文案：
// 有反馈时给出通过率，否则有折扣给折扣比例，再不然给场景文案。
func GroupReason(in GroupScoreInput) string {
	if in.ScenarioStats.Total() > 0 {
		return fmt.Sprintf("%d%% approval", int(in.ScenarioStats.ApprovalRate()*100))
	}
	if in.DiscountFraction > 0 {
		return fmt.Sprintf("Discount %d%%", int(in.DiscountFraction*100))
	}
	return "fits scenario"
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
