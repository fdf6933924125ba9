package core

import "time"

// Polarity 用户反馈极性。
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
)

// ValidatePolarity 校验极性取值是否合法。
func ValidatePolarity(p Polarity) bool {
	return p == PolarityPositive || p == PolarityNegative
}

// FeedbackEvent 是一条追加写入、不可变更的反馈事件。
//
// 两种键形态：
//   - 商品对反馈：AnchorID + CandidateID（商品页场景）
//   - 场景反馈：ScenarioID + GroupName + CandidateID
//
// 事件写入与对应计数器的累加必须在同一事务内完成（全或无）。
type FeedbackEvent struct {
	AnchorID    int64 // 商品对反馈的锚点商品；场景反馈时为 0
	CandidateID int64
	ScenarioID  string // 场景反馈的场景 ID；商品对反馈时为空
	GroupName   string
	Polarity    Polarity
	UserID      int64 // 0 表示匿名
	Context     string
	CreatedAt   time.Time
}

// IsScenario 判断事件是否为场景反馈。
func (e *FeedbackEvent) IsScenario() bool {
	return e.ScenarioID != "" && e.GroupName != ""
}

// FeedbackStats 是某个键上的累计反馈计数，只增不减。
type FeedbackStats struct {
	Positive int64
	Negative int64
}

// Total 返回反馈总数。
func (s FeedbackStats) Total() int64 {
	return s.Positive + s.Negative
}

// ApprovalRate 返回 Laplace 平滑的通过率 (positive+1)/(total+2)。
// 无数据时收敛于 0.5，作为中性默认值贯穿特征抽取与公式打分。
func (s FeedbackStats) ApprovalRate() float64 {
	return float64(s.Positive+1) / float64(s.Total()+2)
}

// InteractionKind 原始交互事件类型（曝光/点击/加购）。
type InteractionKind string

const (
	InteractionImpression InteractionKind = "impression"
	InteractionClick      InteractionKind = "click"
	InteractionCartAdd    InteractionKind = "cart_add"
)

// InteractionEvent 原始交互事件，仅追加记录，用于离线分析与热度计数。
type InteractionEvent struct {
	ProductID int64
	AnchorID  int64 // 可选：曝光所在的锚点商品
	Kind      InteractionKind
	UserID    int64
	CreatedAt time.Time
}
