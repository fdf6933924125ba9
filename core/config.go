package core

import "time"

// ScoringConfig 集中管理打分相关的常量默认值。
// 这些系数来自线上长期使用的经验值，保持为配置默认而非重新调参。
type ScoringConfig struct {
	// 公式打分（rank.FormulaScorer）各项权重
	FormulaBase          float64 // 基准分
	FormulaSimilarityW   float64 // 余弦相似度权重
	FormulaPairFeedbackW float64 // 商品对反馈权重
	FormulaScenarioW     float64 // 场景反馈权重
	FormulaDiscountW     float64 // 折扣权重
	GroupSimilarityW     float64 // 场景分组打分：与购物车最大相似度权重
	GroupFeedbackW       float64 // 场景分组打分：反馈权重
	GroupDiscountW       float64 // 场景分组打分：折扣权重

	// 语义路径混合信号
	CopurchaseBoostStep float64 // 每次共购的加成
	CopurchaseBoostCap  float64 // 共购加成上限
	CrossRootPenalty    float64 // 跨根类目惩罚

	// 候选规模
	ScenarioGroupLimit int // 场景路径每分组候选上限
	SemanticTopK       int // 语义路径近邻数上限
	GroupCandidates    int // 场景补全每分组打分候选上限

	// RankTimeout 单次重排的超时，超时回退公式打分
	RankTimeout time.Duration
}

// DefaultScoringConfig 返回默认打分配置。
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		FormulaBase:          0.5,
		FormulaSimilarityW:   0.3,
		FormulaPairFeedbackW: 0.4,
		FormulaScenarioW:     0.2,
		FormulaDiscountW:     0.1,
		GroupSimilarityW:     0.3,
		GroupFeedbackW:       0.5,
		GroupDiscountW:       0.2,

		CopurchaseBoostStep: 0.15,
		CopurchaseBoostCap:  0.3,
		CrossRootPenalty:    0.15,

		ScenarioGroupLimit: 50,
		SemanticTopK:       500,
		GroupCandidates:    100,

		RankTimeout: 2 * time.Second,
	}
}
